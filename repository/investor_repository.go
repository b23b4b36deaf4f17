package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fortune-max/invoicer/database"
	"github.com/fortune-max/invoicer/models"
)

// InvestorRepository implements the service.InvestorRepository interface
type InvestorRepository struct {
	q queryable
}

// NewInvestorRepository creates a new investor repository
func NewInvestorRepository(db *database.DB) *InvestorRepository {
	return &InvestorRepository{q: db.Pool}
}

// newInvestorRepositoryWithTx creates a new investor repository with a transaction
func newInvestorRepositoryWithTx(tx queryable) *InvestorRepository {
	return &InvestorRepository{q: tx}
}

// Create persists a new investor and fills in its ID
func (r *InvestorRepository) Create(ctx context.Context, investor *models.Investor) error {
	query := `
		INSERT INTO investors (name, email, join_date, active_member)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		investor.Name,
		investor.Email,
		investor.JoinDate,
		investor.ActiveMember,
	).Scan(&investor.ID, &investor.CreatedAt, &investor.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create investor %s: %w", investor.Email, err)
	}

	return nil
}

// GetByID retrieves an investor by its ID
func (r *InvestorRepository) GetByID(ctx context.Context, id int64) (*models.Investor, error) {
	query := `
		SELECT id, name, email, join_date, active_member, created_at, updated_at
		FROM investors
		WHERE id = $1
	`

	var investor models.Investor
	err := r.q.QueryRow(ctx, query, id).Scan(
		&investor.ID,
		&investor.Name,
		&investor.Email,
		&investor.JoinDate,
		&investor.ActiveMember,
		&investor.CreatedAt,
		&investor.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get investor %d: %w", id, err)
	}

	return &investor, nil
}

// Update persists changes to an existing investor
func (r *InvestorRepository) Update(ctx context.Context, investor *models.Investor) error {
	query := `
		UPDATE investors
		SET name = $1, email = $2, join_date = $3, active_member = $4, updated_at = NOW()
		WHERE id = $5
	`

	result, err := r.q.Exec(ctx, query,
		investor.Name,
		investor.Email,
		investor.JoinDate,
		investor.ActiveMember,
		investor.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update investor %d: %w", investor.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("investor %d not found", investor.ID)
	}

	return nil
}

// GetAll returns all investors ordered by id
func (r *InvestorRepository) GetAll(ctx context.Context) ([]*models.Investor, error) {
	query := `
		SELECT id, name, email, join_date, active_member, created_at, updated_at
		FROM investors
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get investors: %w", err)
	}
	defer rows.Close()

	var investors []*models.Investor
	for rows.Next() {
		var investor models.Investor
		err := rows.Scan(
			&investor.ID,
			&investor.Name,
			&investor.Email,
			&investor.JoinDate,
			&investor.ActiveMember,
			&investor.CreatedAt,
			&investor.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investor: %w", err)
		}
		investors = append(investors, &investor)
	}

	return investors, rows.Err()
}
