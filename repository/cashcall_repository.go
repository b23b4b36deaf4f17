package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fortune-max/invoicer/database"
	"github.com/fortune-max/invoicer/models"
)

// CashCallRepository implements the service.CashCallRepository
// interface. Loaded cashcalls carry bill-count, total, paid and
// validated fields derived from their attached bills.
type CashCallRepository struct {
	q queryable
}

// NewCashCallRepository creates a new cashcall repository
func NewCashCallRepository(db *database.DB) *CashCallRepository {
	return &CashCallRepository{q: db.Pool}
}

// newCashCallRepositoryWithTx creates a new cashcall repository with a transaction
func newCashCallRepositoryWithTx(tx queryable) *CashCallRepository {
	return &CashCallRepository{q: tx}
}

const cashcallSelect = `
	SELECT
		c.id,
		c.investor_id,
		c.sent,
		c.sent_date,
		c.due_date,
		c.created_at,
		c.updated_at,
		COALESCE(b.bill_count, 0) AS bill_count,
		COALESCE(b.total_amount, 0) AS total_amount,
		COALESCE(b.amount_paid, 0) AS amount_paid,
		COALESCE(b.bill_count, 0) > 0 AND COALESCE(b.all_validated, FALSE) AS validated
	FROM cashcalls c
	LEFT JOIN (
		SELECT
			cashcall_id,
			COUNT(*) AS bill_count,
			SUM(amount) AS total_amount,
			COALESCE(SUM(amount) FILTER (WHERE fulfilled), 0) AS amount_paid,
			BOOL_AND(validated) AS all_validated
		FROM bills
		GROUP BY cashcall_id
	) b ON b.cashcall_id = c.id
`

func scanCashCall(row pgx.Row) (*models.CashCall, error) {
	var cashcall models.CashCall
	err := row.Scan(
		&cashcall.ID,
		&cashcall.InvestorID,
		&cashcall.Sent,
		&cashcall.SentDate,
		&cashcall.DueDate,
		&cashcall.CreatedAt,
		&cashcall.UpdatedAt,
		&cashcall.BillCount,
		&cashcall.TotalAmount,
		&cashcall.AmountPaid,
		&cashcall.Validated,
	)
	if err != nil {
		return nil, err
	}
	return &cashcall, nil
}

// Create persists a new cashcall and fills in its ID
func (r *CashCallRepository) Create(ctx context.Context, cashcall *models.CashCall) error {
	query := `
		INSERT INTO cashcalls (investor_id, sent, sent_date, due_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		cashcall.InvestorID,
		cashcall.Sent,
		cashcall.SentDate,
		cashcall.DueDate,
	).Scan(&cashcall.ID, &cashcall.CreatedAt, &cashcall.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create cashcall for investor %d: %w", cashcall.InvestorID, err)
	}

	return nil
}

// GetByID retrieves a cashcall by its ID with calculated fields
func (r *CashCallRepository) GetByID(ctx context.Context, id int64) (*models.CashCall, error) {
	query := cashcallSelect + `WHERE c.id = $1`

	cashcall, err := scanCashCall(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cashcall %d: %w", id, err)
	}

	return cashcall, nil
}

// Update persists the sent flag and sent/due dates
func (r *CashCallRepository) Update(ctx context.Context, cashcall *models.CashCall) error {
	query := `
		UPDATE cashcalls
		SET sent = $1, sent_date = $2, due_date = $3, updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.q.Exec(ctx, query,
		cashcall.Sent,
		cashcall.SentDate,
		cashcall.DueDate,
		cashcall.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cashcall %d: %w", cashcall.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("cashcall %d not found", cashcall.ID)
	}

	return nil
}

// GetUnsentByInvestor returns an investor's unsent cashcalls ordered by
// bill count descending, then id ascending. The ordering makes the
// first matching cashcall the bucketing winner.
func (r *CashCallRepository) GetUnsentByInvestor(ctx context.Context, investorID int64) ([]*models.CashCall, error) {
	query := cashcallSelect + `
		WHERE c.investor_id = $1 AND NOT c.sent
		ORDER BY COALESCE(b.bill_count, 0) DESC, c.id ASC
	`

	rows, err := r.q.Query(ctx, query, investorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unsent cashcalls for investor %d: %w", investorID, err)
	}
	defer rows.Close()

	return collectCashCalls(rows)
}

// GetUnsent returns all unsent cashcalls ordered by id ascending
func (r *CashCallRepository) GetUnsent(ctx context.Context) ([]*models.CashCall, error) {
	query := cashcallSelect + `
		WHERE NOT c.sent
		ORDER BY c.id ASC
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get unsent cashcalls: %w", err)
	}
	defer rows.Close()

	return collectCashCalls(rows)
}

func collectCashCalls(rows pgx.Rows) ([]*models.CashCall, error) {
	var cashcalls []*models.CashCall
	for rows.Next() {
		cashcall, err := scanCashCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cashcall: %w", err)
		}
		cashcalls = append(cashcalls, cashcall)
	}
	return cashcalls, rows.Err()
}
