package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/fortune-max/invoicer/events"
	"github.com/fortune-max/invoicer/models"
)

// DefaultLookbackYears is the default window scanned for anchor bills.
// It must exceed the yearly recurrence period by a safety margin so a
// chain survives missed runs.
const DefaultLookbackYears = 2

// generationService implements the GenerationService interface
type generationService struct {
	uowFactory UnitOfWorkFactory
	calculator *Calculator
	policy     BillingPolicy
}

// NewGenerationService creates a new generation service
func NewGenerationService(uowFactory UnitOfWorkFactory, calculator *Calculator, policy BillingPolicy) GenerationService {
	return &generationService{
		uowFactory: uowFactory,
		calculator: calculator,
		policy:     policy,
	}
}

// GenerateBills walks every recurrence chain and issues the next
// period's bill where one is due. A chain is identified by the most
// recent yearly bill of its type within the lookback window (the
// anchor); a new bill is due when the anchor is at least a year old.
// Each emission runs in its own transactional unit of work, so one
// failure never blocks or rolls back the rest, and a crash cannot leave
// a half-created bill. Re-invoking is safe: the freshly created bill
// becomes the next run's anchor, so the same period is never billed
// twice.
func (s *generationService) GenerateBills(ctx context.Context, opts GenerateOptions) (*models.Report, error) {
	lookback := opts.LookbackYears
	if lookback <= 0 {
		lookback = DefaultLookbackYears
	}
	report := models.NewReport(opts.DryRun)

	billTypes := []models.BillType{models.BillTypeMembership, models.BillTypeInvestment}
	if opts.BillType != "" {
		billTypes = []models.BillType{opts.BillType}
	}

	for _, billType := range billTypes {
		anchors, err := s.collectAnchors(ctx, billType, opts, lookback)
		if err != nil {
			return nil, err
		}

		log.WithFields(log.Fields{
			"billType":      billType,
			"anchors":       len(anchors),
			"lookbackYears": lookback,
			"dryRun":        opts.DryRun,
		}).Info("Scanning recurrence chains")

		for _, anchor := range anchors {
			if err := ctx.Err(); err != nil {
				// Stop processing remaining chains, report partial results
				report.Failf("generation", "aborted: %v", err)
				return report, nil
			}
			if err := s.generateNext(ctx, anchor, opts.Today, opts.DryRun, report); err != nil {
				report.Failf(fmt.Sprintf("%s bill for investor %d", anchor.Type, anchor.InvestorID), "%v", err)
			}
		}
	}

	if len(report.Lines) == 0 {
		report.Addf("No bills due")
	}
	return report, nil
}

// collectAnchors reduces the lookback window's bills to the single most
// recent bill per recurrence chain: per investor for membership, per
// (investor, investment) for investments.
func (s *generationService) collectAnchors(ctx context.Context, billType models.BillType, opts GenerateOptions, lookback int) ([]*models.Bill, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	cutoff := opts.Today.AddDate(-lookback, 0, 0)
	bills, err := uow.BillRepository().GetRecent(ctx, billType, models.FrequencyYearly, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent %s bills: %w", billType, err)
	}

	type chainKey struct {
		investorID   int64
		investmentID int64
	}
	seen := make(map[chainKey]bool)
	var anchors []*models.Bill

	// Bills arrive newest first, so the first bill per chain is its anchor.
	for _, bill := range bills {
		if opts.InvestorID != 0 && bill.InvestorID != opts.InvestorID {
			continue
		}
		key := chainKey{investorID: bill.InvestorID}
		if bill.Type == models.BillTypeInvestment {
			if bill.InvestmentID == nil {
				continue
			}
			key.investmentID = *bill.InvestmentID
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		anchors = append(anchors, bill)
	}

	return anchors, nil
}

// generateNext emits the next period's bill for one chain if it is due,
// inside a single transactional unit of work.
func (s *generationService) generateNext(ctx context.Context, anchor *models.Bill, today time.Time, dryRun bool, report *models.Report) error {
	nextDue := anchor.Date.AddDate(1, 0, 0)
	if nextDue.After(today) {
		return nil
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	investor, err := uow.InvestorRepository().GetByID(ctx, anchor.InvestorID)
	if err != nil {
		return fmt.Errorf("failed to get investor: %w", err)
	}
	if investor == nil {
		return fmt.Errorf("%w: investor %d", models.ErrNotFound, anchor.InvestorID)
	}

	flags := s.policy.InitialFlags(investor)

	bill := &models.Bill{
		Frequency:  models.FrequencyYearly,
		Type:       anchor.Type,
		InvestorID: investor.ID,
		Validated:  flags.Validated,
		Ignore:     flags.Ignore,
		Fulfilled:  flags.Fulfilled,
		Date:       nextDue,
	}

	toWaive := decimal.Zero
	switch anchor.Type {
	case models.BillTypeMembership:
		if flags.Suppressed() {
			bill.Amount = decimal.Zero
		} else {
			amount, err := s.calculator.MembershipDue(ctx, uow.BillRepository(), investor, nextDue, FullYear)
			if err != nil {
				return err
			}
			bill.Amount = amount
		}

	case models.BillTypeInvestment:
		investment, err := uow.InvestmentRepository().GetByID(ctx, *anchor.InvestmentID)
		if err != nil {
			return fmt.Errorf("failed to get investment: %w", err)
		}
		if investment == nil {
			return fmt.Errorf("%w: investment %d", models.ErrNotFound, *anchor.InvestmentID)
		}
		if investment.FullyBilled() {
			return nil
		}

		instalmentNo := 1
		if anchor.InstalmentNo != nil {
			instalmentNo = *anchor.InstalmentNo + 1
		}
		toPay, waive, err := s.calculator.InvestmentInstalmentDue(investment, instalmentNo)
		if err != nil {
			return err
		}
		toWaive = waive

		bill.InvestmentID = &investment.ID
		bill.InstalmentNo = &instalmentNo
		bill.Amount = toPay
		if flags.Suppressed() {
			bill.Amount = decimal.Zero
		}

	default:
		return fmt.Errorf("unknown bill type %q", anchor.Type)
	}

	// Suppressed bills land in pre-validated cashcalls so they never
	// hold up validation of real billing.
	cashcall, err := ResolveCashCall(ctx, uow.CashCallRepository(), investor.ID, flags.Validated)
	if err != nil {
		return err
	}
	bill.CashCallID = cashcall.ID

	if err := uow.BillRepository().Create(ctx, bill); err != nil {
		return fmt.Errorf("failed to create bill: %w", err)
	}

	if bill.Type == models.BillTypeInvestment && toWaive.IsPositive() {
		if err := uow.InvestmentRepository().AddWaived(ctx, *bill.InvestmentID, toWaive); err != nil {
			return fmt.Errorf("failed to credit waived amount: %w", err)
		}
	}

	uow.EventBus().Publish(events.BillCreatedEvent{
		BillID:     bill.ID,
		InvestorID: investor.ID,
		CashCallID: cashcall.ID,
		BillType:   bill.Type,
		Amount:     bill.Amount.StringFixed(2),
		IssueDate:  bill.Date,
	})

	report.BillsCreated++
	report.Addf("Issued %s bill of %s for investor %d (period %s, cashcall %d)",
		bill.Type, bill.Amount.StringFixed(2), investor.ID, nextDue.Format("2006-01-02"), cashcall.ID)

	if dryRun {
		return uow.Rollback()
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
