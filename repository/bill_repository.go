package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/fortune-max/invoicer/database"
	"github.com/fortune-max/invoicer/models"
)

// BillRepository implements the service.BillRepository interface
type BillRepository struct {
	q queryable
}

// NewBillRepository creates a new bill repository
func NewBillRepository(db *database.DB) *BillRepository {
	return &BillRepository{q: db.Pool}
}

// newBillRepositoryWithTx creates a new bill repository with a transaction
func newBillRepositoryWithTx(tx queryable) *BillRepository {
	return &BillRepository{q: tx}
}

const billColumns = `id, frequency, bill_type, amount, investor_id, cashcall_id, investment_id, instalment_no, validated, ignore, fulfilled, bill_date, created_at, updated_at`

func scanBill(row pgx.Row) (*models.Bill, error) {
	var bill models.Bill
	err := row.Scan(
		&bill.ID,
		&bill.Frequency,
		&bill.Type,
		&bill.Amount,
		&bill.InvestorID,
		&bill.CashCallID,
		&bill.InvestmentID,
		&bill.InstalmentNo,
		&bill.Validated,
		&bill.Ignore,
		&bill.Fulfilled,
		&bill.Date,
		&bill.CreatedAt,
		&bill.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// Create persists a new bill and fills in its ID
func (r *BillRepository) Create(ctx context.Context, bill *models.Bill) error {
	query := `
		INSERT INTO bills (frequency, bill_type, amount, investor_id, cashcall_id, investment_id, instalment_no, validated, ignore, fulfilled, bill_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		bill.Frequency,
		bill.Type,
		bill.Amount,
		bill.InvestorID,
		bill.CashCallID,
		bill.InvestmentID,
		bill.InstalmentNo,
		bill.Validated,
		bill.Ignore,
		bill.Fulfilled,
		bill.Date,
	).Scan(&bill.ID, &bill.CreatedAt, &bill.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create %s bill for investor %d: %w", bill.Type, bill.InvestorID, err)
	}

	return nil
}

// GetByID retrieves a bill by its ID
func (r *BillRepository) GetByID(ctx context.Context, id int64) (*models.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1`

	bill, err := scanBill(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill %d: %w", id, err)
	}

	return bill, nil
}

// Update persists changes to an existing bill
func (r *BillRepository) Update(ctx context.Context, bill *models.Bill) error {
	query := `
		UPDATE bills
		SET frequency = $1, bill_type = $2, amount = $3, cashcall_id = $4, investment_id = $5,
			instalment_no = $6, validated = $7, ignore = $8, fulfilled = $9, bill_date = $10, updated_at = NOW()
		WHERE id = $11
	`

	result, err := r.q.Exec(ctx, query,
		bill.Frequency,
		bill.Type,
		bill.Amount,
		bill.CashCallID,
		bill.InvestmentID,
		bill.InstalmentNo,
		bill.Validated,
		bill.Ignore,
		bill.Fulfilled,
		bill.Date,
		bill.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update bill %d: %w", bill.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("bill %d not found", bill.ID)
	}

	return nil
}

// GetByCashCall returns all bills attached to a cashcall
func (r *BillRepository) GetByCashCall(ctx context.Context, cashcallID int64) ([]*models.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE cashcall_id = $1 ORDER BY id`

	rows, err := r.q.Query(ctx, query, cashcallID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bills for cashcall %d: %w", cashcallID, err)
	}
	defer rows.Close()

	return collectBills(rows)
}

// GetRecent returns bills of a type and frequency dated strictly after
// the cutoff, newest first. The generation orchestrator reduces these to
// one anchor per recurrence chain.
func (r *BillRepository) GetRecent(ctx context.Context, billType models.BillType, frequency models.Frequency, after time.Time) ([]*models.Bill, error) {
	query := `
		SELECT ` + billColumns + `
		FROM bills
		WHERE bill_type = $1 AND frequency = $2 AND bill_date > $3
		ORDER BY bill_date DESC, id DESC
	`

	rows, err := r.q.Query(ctx, query, billType, frequency, after)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent %s bills: %w", billType, err)
	}
	defer rows.Close()

	return collectBills(rows)
}

// GetLatestMembership returns an investor's most recent membership bill
// by issue date, or nil when none exists
func (r *BillRepository) GetLatestMembership(ctx context.Context, investorID int64) (*models.Bill, error) {
	query := `
		SELECT ` + billColumns + `
		FROM bills
		WHERE investor_id = $1 AND bill_type = $2
		ORDER BY bill_date DESC, id DESC
		LIMIT 1
	`

	bill, err := scanBill(r.q.QueryRow(ctx, query, investorID, models.BillTypeMembership))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest membership bill for investor %d: %w", investorID, err)
	}

	return bill, nil
}

// SumFulfilledByInvestor sums the amounts of an investor's fulfilled
// bills dated in the open-closed interval (after, until]
func (r *BillRepository) SumFulfilledByInvestor(ctx context.Context, investorID int64, after, until time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM bills
		WHERE investor_id = $1 AND fulfilled AND bill_date > $2 AND bill_date <= $3
	`

	var total decimal.Decimal
	err := r.q.QueryRow(ctx, query, investorID, after, until).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum fulfilled bills for investor %d: %w", investorID, err)
	}

	return total, nil
}

func collectBills(rows pgx.Rows) ([]*models.Bill, error) {
	var bills []*models.Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}
