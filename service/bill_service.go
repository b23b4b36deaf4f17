package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fortune-max/invoicer/models"
)

// billService implements the BillService interface
type billService struct {
	uowFactory UnitOfWorkFactory
}

// NewBillService creates a new bill service
func NewBillService(uowFactory UnitOfWorkFactory) BillService {
	return &billService{
		uowFactory: uowFactory,
	}
}

// UpdateBill persists changes to a bill. When the ignore flag transitions
// from false to true, the amount is zeroed in the same transaction,
// overriding any amount carried in the update.
func (s *billService) UpdateBill(ctx context.Context, bill *models.Bill) (*models.Bill, error) {
	if bill.Amount.IsNegative() {
		return nil, fmt.Errorf("bill amount must not be negative, got %s", bill.Amount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	existing, err := uow.BillRepository().GetByID(ctx, bill.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: bill %d", models.ErrNotFound, bill.ID)
	}

	if bill.Ignore {
		// Ignored bills carry no amount. Enforced here rather than at
		// the call sites so the invariant survives any update path.
		bill.Amount = decimal.Zero
	}

	if err := uow.BillRepository().Update(ctx, bill); err != nil {
		return nil, fmt.Errorf("failed to update bill: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return bill, nil
}
