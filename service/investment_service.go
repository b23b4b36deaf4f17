package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fortune-max/invoicer/events"
	"github.com/fortune-max/invoicer/models"
)

// investmentService implements the InvestmentService interface
type investmentService struct {
	uowFactory UnitOfWorkFactory
	calculator *Calculator
}

// NewInvestmentService creates a new investment service
func NewInvestmentService(uowFactory UnitOfWorkFactory, calculator *Calculator) InvestmentService {
	return &investmentService{
		uowFactory: uowFactory,
		calculator: calculator,
	}
}

// CreateInvestment creates an investment and immediately issues its
// first instalment bill, pro-rated over the remainder of the creation
// year. The waived portion, if the discount schedule grants one, is
// credited to the investment up front.
func (s *investmentService) CreateInvestment(ctx context.Context, investment *models.Investment, today time.Time) (*models.Investment, error) {
	if investment.TotalInstalments < 1 {
		return nil, fmt.Errorf("investment must have at least one instalment, got %d", investment.TotalInstalments)
	}
	if investment.FeePercent.IsNegative() || investment.FeePercent.GreaterThan(oneHundred) {
		return nil, fmt.Errorf("fee percent must be between 0 and 100, got %s", investment.FeePercent)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	investor, err := uow.InvestorRepository().GetByID(ctx, investment.InvestorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get investor: %w", err)
	}
	if investor == nil {
		return nil, fmt.Errorf("%w: investor %d", models.ErrNotFound, investment.InvestorID)
	}

	if err := uow.InvestmentRepository().Create(ctx, investment); err != nil {
		return nil, fmt.Errorf("failed to create investment: %w", err)
	}

	toPay, toWaive, err := s.calculator.InvestmentInstalmentDue(investment, 1)
	if err != nil {
		return nil, err
	}

	cashcall, err := ResolveCashCall(ctx, uow.CashCallRepository(), investment.InvestorID, false)
	if err != nil {
		return nil, err
	}

	instalmentNo := 1
	bill := &models.Bill{
		Frequency:    models.FrequencyYearly,
		Type:         models.BillTypeInvestment,
		Amount:       toPay,
		InvestorID:   investment.InvestorID,
		CashCallID:   cashcall.ID,
		InvestmentID: &investment.ID,
		InstalmentNo: &instalmentNo,
		Date:         today,
	}
	if err := uow.BillRepository().Create(ctx, bill); err != nil {
		return nil, fmt.Errorf("failed to create first instalment bill: %w", err)
	}

	if toWaive.IsPositive() {
		if err := uow.InvestmentRepository().AddWaived(ctx, investment.ID, toWaive); err != nil {
			return nil, fmt.Errorf("failed to credit waived amount: %w", err)
		}
		investment.AmountWaived = investment.AmountWaived.Add(toWaive)
	}
	investment.AmountBilled = investment.AmountBilled.Add(toPay)
	investment.LastInstalment = instalmentNo

	uow.EventBus().Publish(events.BillCreatedEvent{
		BillID:     bill.ID,
		InvestorID: investment.InvestorID,
		CashCallID: cashcall.ID,
		BillType:   bill.Type,
		Amount:     bill.Amount.StringFixed(2),
		IssueDate:  bill.Date,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return investment, nil
}
