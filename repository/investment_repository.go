package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/fortune-max/invoicer/database"
	"github.com/fortune-max/invoicer/models"
)

// InvestmentRepository implements the service.InvestmentRepository
// interface. Loaded investments carry amount-paid, amount-billed and
// last-instalment fields derived from the bills referencing them.
type InvestmentRepository struct {
	q queryable
}

// NewInvestmentRepository creates a new investment repository
func NewInvestmentRepository(db *database.DB) *InvestmentRepository {
	return &InvestmentRepository{q: db.Pool}
}

// newInvestmentRepositoryWithTx creates a new investment repository with a transaction
func newInvestmentRepositoryWithTx(tx queryable) *InvestmentRepository {
	return &InvestmentRepository{q: tx}
}

const investmentSelect = `
	SELECT
		i.id,
		i.name,
		i.date_created,
		i.fee_percent,
		i.total_amount,
		i.amount_waived,
		i.total_instalments,
		i.investor_id,
		i.created_at,
		i.updated_at,
		COALESCE((SELECT SUM(b.amount) FROM bills b WHERE b.investment_id = i.id AND b.fulfilled), 0) AS amount_paid,
		COALESCE((SELECT SUM(b.amount) FROM bills b WHERE b.investment_id = i.id), 0) AS amount_billed,
		COALESCE((SELECT MAX(b.instalment_no) FROM bills b WHERE b.investment_id = i.id), 0) AS last_instalment
	FROM investments i
`

func scanInvestment(row pgx.Row) (*models.Investment, error) {
	var investment models.Investment
	err := row.Scan(
		&investment.ID,
		&investment.Name,
		&investment.DateCreated,
		&investment.FeePercent,
		&investment.TotalAmount,
		&investment.AmountWaived,
		&investment.TotalInstalments,
		&investment.InvestorID,
		&investment.CreatedAt,
		&investment.UpdatedAt,
		&investment.AmountPaid,
		&investment.AmountBilled,
		&investment.LastInstalment,
	)
	if err != nil {
		return nil, err
	}
	return &investment, nil
}

// Create persists a new investment and fills in its ID
func (r *InvestmentRepository) Create(ctx context.Context, investment *models.Investment) error {
	query := `
		INSERT INTO investments (name, date_created, fee_percent, total_amount, amount_waived, total_instalments, investor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		investment.Name,
		investment.DateCreated,
		investment.FeePercent,
		investment.TotalAmount,
		investment.AmountWaived,
		investment.TotalInstalments,
		investment.InvestorID,
	).Scan(&investment.ID, &investment.CreatedAt, &investment.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create investment %s: %w", investment.Name, err)
	}

	return nil
}

// GetByID retrieves an investment by its ID with calculated fields
func (r *InvestmentRepository) GetByID(ctx context.Context, id int64) (*models.Investment, error) {
	query := investmentSelect + `WHERE i.id = $1`

	investment, err := scanInvestment(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get investment %d: %w", id, err)
	}

	return investment, nil
}

// GetByInvestor returns all investments belonging to an investor
func (r *InvestmentRepository) GetByInvestor(ctx context.Context, investorID int64) ([]*models.Investment, error) {
	query := investmentSelect + `WHERE i.investor_id = $1 ORDER BY i.id`

	rows, err := r.q.Query(ctx, query, investorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get investments for investor %d: %w", investorID, err)
	}
	defer rows.Close()

	var investments []*models.Investment
	for rows.Next() {
		investment, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}
		investments = append(investments, investment)
	}

	return investments, rows.Err()
}

// AddWaived atomically increments the cumulative waived amount
func (r *InvestmentRepository) AddWaived(ctx context.Context, id int64, amount decimal.Decimal) error {
	query := `
		UPDATE investments
		SET amount_waived = amount_waived + $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to add waived amount to investment %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("investment %d not found", id)
	}

	return nil
}
