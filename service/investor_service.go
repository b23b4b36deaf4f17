package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fortune-max/invoicer/events"
	"github.com/fortune-max/invoicer/models"
)

// investorService implements the InvestorService interface
type investorService struct {
	uowFactory UnitOfWorkFactory
	calculator *Calculator
}

// NewInvestorService creates a new investor service
func NewInvestorService(uowFactory UnitOfWorkFactory, calculator *Calculator) InvestorService {
	return &investorService{
		uowFactory: uowFactory,
		calculator: calculator,
	}
}

// CreateInvestor creates an investor together with its zero-amount
// membership placeholder bill. The placeholder is pre-validated,
// pre-ignored and pre-fulfilled in its own already-sent cashcall; it
// marks the investor's join as already billed for year zero and anchors
// the membership recurrence chain.
func (s *investorService) CreateInvestor(ctx context.Context, name, email string, joinDate time.Time, activeMember bool) (*models.Investor, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	investor := &models.Investor{
		Name:         name,
		Email:        email,
		JoinDate:     joinDate,
		ActiveMember: activeMember,
	}
	if err := uow.InvestorRepository().Create(ctx, investor); err != nil {
		return nil, fmt.Errorf("failed to create investor: %w", err)
	}

	if err := createMembershipPlaceholder(ctx, uow, investor, joinDate); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return investor, nil
}

// SetActiveMember toggles the active flag. Deactivation synthesizes a
// pro-rata membership bill covering the days since the investor's most
// recent membership bill; reactivation synthesizes a fresh zero-amount
// placeholder, re-anchoring the recurrence chain at today. Setting the
// flag to its current value is a no-op.
func (s *investorService) SetActiveMember(ctx context.Context, investorID int64, active bool, today time.Time) (*models.Investor, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	investor, err := uow.InvestorRepository().GetByID(ctx, investorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get investor: %w", err)
	}
	if investor == nil {
		return nil, fmt.Errorf("%w: investor %d", models.ErrNotFound, investorID)
	}

	if investor.ActiveMember == active {
		return investor, nil
	}

	if active {
		if err := createMembershipPlaceholder(ctx, uow, investor, today); err != nil {
			return nil, err
		}
	} else {
		if err := s.billDeactivation(ctx, uow, investor, today); err != nil {
			return nil, err
		}
	}

	investor.ActiveMember = active
	if err := uow.InvestorRepository().Update(ctx, investor); err != nil {
		return nil, fmt.Errorf("failed to update investor: %w", err)
	}

	uow.EventBus().Publish(events.InvestorStatusChangedEvent{
		InvestorID:   investor.ID,
		ActiveMember: active,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return investor, nil
}

// billDeactivation issues the pro-rata membership bill owed for the days
// since the last membership bill.
func (s *investorService) billDeactivation(ctx context.Context, uow UnitOfWork, investor *models.Investor, today time.Time) error {
	last, err := uow.BillRepository().GetLatestMembership(ctx, investor.ID)
	if err != nil {
		return fmt.Errorf("failed to get latest membership bill: %w", err)
	}

	// Every investor gets a placeholder bill at creation; fall back to
	// the join date if it was removed out of band.
	anchorDate := investor.JoinDate
	if last != nil {
		anchorDate = last.Date
	}
	proRataDays := int(today.Sub(anchorDate).Hours() / 24)
	if proRataDays < 0 {
		proRataDays = 0
	}

	amount, err := s.calculator.MembershipDue(ctx, uow.BillRepository(), investor, today, proRataDays)
	if err != nil {
		return err
	}

	cashcall, err := ResolveCashCall(ctx, uow.CashCallRepository(), investor.ID, false)
	if err != nil {
		return err
	}

	bill := &models.Bill{
		Frequency:  models.FrequencyYearly,
		Type:       models.BillTypeMembership,
		Amount:     amount,
		InvestorID: investor.ID,
		CashCallID: cashcall.ID,
		Date:       today,
	}
	if err := uow.BillRepository().Create(ctx, bill); err != nil {
		return fmt.Errorf("failed to create deactivation bill: %w", err)
	}

	uow.EventBus().Publish(events.BillCreatedEvent{
		BillID:     bill.ID,
		InvestorID: investor.ID,
		CashCallID: cashcall.ID,
		BillType:   bill.Type,
		Amount:     bill.Amount.StringFixed(2),
		IssueDate:  bill.Date,
	})

	return nil
}

// createMembershipPlaceholder issues the zero-amount pre-validated,
// pre-ignored, pre-fulfilled membership bill in its own already-sent
// cashcall. Used at investor creation and on reactivation.
func createMembershipPlaceholder(ctx context.Context, uow UnitOfWork, investor *models.Investor, date time.Time) error {
	sentDate := date
	dueDate := date.AddDate(0, 0, models.DueDateGraceDays)
	cashcall := &models.CashCall{
		InvestorID: investor.ID,
		Sent:       true,
		SentDate:   &sentDate,
		DueDate:    &dueDate,
	}
	if err := uow.CashCallRepository().Create(ctx, cashcall); err != nil {
		return fmt.Errorf("failed to create placeholder cashcall: %w", err)
	}

	bill := &models.Bill{
		Frequency:  models.FrequencyYearly,
		Type:       models.BillTypeMembership,
		Amount:     decimal.Zero,
		InvestorID: investor.ID,
		CashCallID: cashcall.ID,
		Validated:  true,
		Ignore:     true,
		Fulfilled:  true,
		Date:       date,
	}
	if err := uow.BillRepository().Create(ctx, bill); err != nil {
		return fmt.Errorf("failed to create placeholder bill: %w", err)
	}

	uow.EventBus().Publish(events.BillCreatedEvent{
		BillID:     bill.ID,
		InvestorID: investor.ID,
		CashCallID: cashcall.ID,
		BillType:   bill.Type,
		Amount:     bill.Amount.StringFixed(2),
		IssueDate:  bill.Date,
	})

	return nil
}
