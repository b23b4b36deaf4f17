package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fortune-max/invoicer/events"
	"github.com/fortune-max/invoicer/models"
)

// cashcallService implements the CashCallService interface
type cashcallService struct {
	uowFactory UnitOfWorkFactory
}

// NewCashCallService creates a new cashcall service
func NewCashCallService(uowFactory UnitOfWorkFactory) CashCallService {
	return &cashcallService{
		uowFactory: uowFactory,
	}
}

// ValidateCashCalls validates every bill of the given cashcall, moving
// it from draft to validated. With a zero cashcallID, all unsent
// cashcalls holding at least one bill are validated; empty ones are
// skipped. Validating an empty cashcall directly is an invariant
// violation. In batch mode one cashcall's failure does not block the
// rest.
func (s *cashcallService) ValidateCashCalls(ctx context.Context, cashcallID int64, dryRun bool) (*models.Report, error) {
	report := models.NewReport(dryRun)

	if cashcallID != 0 {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		cashcall, err := uow.CashCallRepository().GetByID(ctx, cashcallID)
		if err != nil {
			return nil, fmt.Errorf("failed to get cashcall: %w", err)
		}
		if cashcall == nil {
			return nil, fmt.Errorf("%w: cashcall %d", models.ErrNotFound, cashcallID)
		}
		if err := s.validateOne(ctx, uow, cashcall, report); err != nil {
			return nil, err
		}
		if err := s.finish(uow, dryRun); err != nil {
			return nil, err
		}
		return report, nil
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	unsent, err := uow.CashCallRepository().GetUnsent(ctx)
	uow.Rollback()
	if err != nil {
		return nil, fmt.Errorf("failed to list unsent cashcalls: %w", err)
	}

	for _, cashcall := range unsent {
		if cashcall.BillCount == 0 || cashcall.Validated {
			continue
		}
		if err := s.validateCashcallTx(ctx, cashcall, dryRun, report); err != nil {
			report.Failf(fmt.Sprintf("cashcall %d", cashcall.ID), "%v", err)
		}
	}
	if len(report.Lines) == 0 {
		report.Addf("No cashcalls pending validation")
	}
	return report, nil
}

// validateCashcallTx wraps the validation of one cashcall in its own
// unit of work so a failure rolls back only that cashcall.
func (s *cashcallService) validateCashcallTx(ctx context.Context, cashcall *models.CashCall, dryRun bool, report *models.Report) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := s.validateOne(ctx, uow, cashcall, report); err != nil {
		return err
	}
	return s.finish(uow, dryRun)
}

func (s *cashcallService) validateOne(ctx context.Context, uow UnitOfWork, cashcall *models.CashCall, report *models.Report) error {
	if cashcall.Sent {
		return fmt.Errorf("%w: cashcall %d has already been sent", models.ErrInvariantViolation, cashcall.ID)
	}

	bills, err := uow.BillRepository().GetByCashCall(ctx, cashcall.ID)
	if err != nil {
		return fmt.Errorf("failed to get bills for cashcall %d: %w", cashcall.ID, err)
	}
	if len(bills) == 0 {
		return fmt.Errorf("%w: cashcall %d has no bills to validate", models.ErrInvariantViolation, cashcall.ID)
	}

	validated := 0
	for _, bill := range bills {
		if bill.Validated {
			continue
		}
		bill.Validated = true
		if err := uow.BillRepository().Update(ctx, bill); err != nil {
			return fmt.Errorf("failed to validate bill %d: %w", bill.ID, err)
		}
		validated++
	}

	uow.EventBus().Publish(events.CashCallValidatedEvent{
		CashCallID: cashcall.ID,
		InvestorID: cashcall.InvestorID,
		BillCount:  len(bills),
	})

	report.Validated++
	report.Addf("Validated cashcall %d (%d bills, %d newly validated)", cashcall.ID, len(bills), validated)
	return nil
}

// SendCashCalls sends the given validated cashcall, stamping its sent
// date and its due date one grace period later. With a zero cashcallID,
// all unsent validated cashcalls are sent. Sending a non-validated
// cashcall is an invariant violation; sent is terminal for this engine.
func (s *cashcallService) SendCashCalls(ctx context.Context, cashcallID int64, dryRun bool, today time.Time) (*models.Report, error) {
	report := models.NewReport(dryRun)

	if cashcallID != 0 {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		cashcall, err := uow.CashCallRepository().GetByID(ctx, cashcallID)
		if err != nil {
			return nil, fmt.Errorf("failed to get cashcall: %w", err)
		}
		if cashcall == nil {
			return nil, fmt.Errorf("%w: cashcall %d", models.ErrNotFound, cashcallID)
		}
		if err := s.sendOne(ctx, uow, cashcall, today, report); err != nil {
			return nil, err
		}
		if err := s.finish(uow, dryRun); err != nil {
			return nil, err
		}
		return report, nil
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	unsent, err := uow.CashCallRepository().GetUnsent(ctx)
	uow.Rollback()
	if err != nil {
		return nil, fmt.Errorf("failed to list unsent cashcalls: %w", err)
	}

	for _, cashcall := range unsent {
		if !cashcall.Validated {
			continue
		}
		if err := s.sendCashcallTx(ctx, cashcall, dryRun, today, report); err != nil {
			report.Failf(fmt.Sprintf("cashcall %d", cashcall.ID), "%v", err)
		}
	}
	if len(report.Lines) == 0 {
		report.Addf("No validated cashcalls in queue to send")
	}
	return report, nil
}

func (s *cashcallService) sendCashcallTx(ctx context.Context, cashcall *models.CashCall, dryRun bool, today time.Time, report *models.Report) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := s.sendOne(ctx, uow, cashcall, today, report); err != nil {
		return err
	}
	return s.finish(uow, dryRun)
}

func (s *cashcallService) sendOne(ctx context.Context, uow UnitOfWork, cashcall *models.CashCall, today time.Time, report *models.Report) error {
	if err := cashcall.MarkSent(today); err != nil {
		return err
	}
	if err := uow.CashCallRepository().Update(ctx, cashcall); err != nil {
		return fmt.Errorf("failed to update cashcall %d: %w", cashcall.ID, err)
	}

	uow.EventBus().Publish(events.CashCallSentEvent{
		CashCallID: cashcall.ID,
		InvestorID: cashcall.InvestorID,
		SentDate:   *cashcall.SentDate,
		DueDate:    *cashcall.DueDate,
	})

	report.Sent++
	report.Addf("Successfully sent cashcall %d to investor %d (due %s, %s total)",
		cashcall.ID, cashcall.InvestorID, cashcall.DueDate.Format("2006-01-02"), cashcall.TotalAmount.StringFixed(2))
	return nil
}

// finish commits the unit of work, or rolls it back on a dry run so no
// side effects are persisted.
func (s *cashcallService) finish(uow UnitOfWork, dryRun bool) error {
	if dryRun {
		log.Debug("Dry run, rolling back cashcall transaction")
		return uow.Rollback()
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
