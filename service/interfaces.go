package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fortune-max/invoicer/events"
	"github.com/fortune-max/invoicer/models"
)

// InvestorRepository defines the interface for investor data access
type InvestorRepository interface {
	// Create persists a new investor and fills in its ID
	Create(ctx context.Context, investor *models.Investor) error

	// GetByID retrieves an investor, returning nil when not found
	GetByID(ctx context.Context, id int64) (*models.Investor, error)

	// Update persists changes to an existing investor
	Update(ctx context.Context, investor *models.Investor) error

	// GetAll returns all investors
	GetAll(ctx context.Context) ([]*models.Investor, error)
}

// InvestmentRepository defines the interface for investment data access.
// Loaded investments carry the calculated amount-paid, amount-billed and
// last-instalment fields derived from their bills.
type InvestmentRepository interface {
	// Create persists a new investment and fills in its ID
	Create(ctx context.Context, investment *models.Investment) error

	// GetByID retrieves an investment, returning nil when not found
	GetByID(ctx context.Context, id int64) (*models.Investment, error)

	// GetByInvestor returns all investments belonging to an investor
	GetByInvestor(ctx context.Context, investorID int64) ([]*models.Investment, error)

	// AddWaived atomically increments the cumulative waived amount
	AddWaived(ctx context.Context, id int64, amount decimal.Decimal) error
}

// CashCallRepository defines the interface for cashcall data access.
// Loaded cashcalls carry the calculated bill-count, total, paid and
// validated fields derived from their bills.
type CashCallRepository interface {
	// Create persists a new cashcall and fills in its ID
	Create(ctx context.Context, cashcall *models.CashCall) error

	// GetByID retrieves a cashcall, returning nil when not found
	GetByID(ctx context.Context, id int64) (*models.CashCall, error)

	// Update persists the sent flag and sent/due dates
	Update(ctx context.Context, cashcall *models.CashCall) error

	// GetUnsentByInvestor returns an investor's unsent cashcalls ordered
	// by bill count descending, then by id ascending
	GetUnsentByInvestor(ctx context.Context, investorID int64) ([]*models.CashCall, error)

	// GetUnsent returns all unsent cashcalls ordered by id ascending
	GetUnsent(ctx context.Context) ([]*models.CashCall, error)
}

// BillRepository defines the interface for bill data access
type BillRepository interface {
	// Create persists a new bill and fills in its ID
	Create(ctx context.Context, bill *models.Bill) error

	// GetByID retrieves a bill, returning nil when not found
	GetByID(ctx context.Context, id int64) (*models.Bill, error)

	// Update persists changes to an existing bill
	Update(ctx context.Context, bill *models.Bill) error

	// GetByCashCall returns all bills attached to a cashcall
	GetByCashCall(ctx context.Context, cashcallID int64) ([]*models.Bill, error)

	// GetRecent returns bills of a type and frequency dated strictly
	// after the cutoff, ordered by date descending then id descending
	GetRecent(ctx context.Context, billType models.BillType, frequency models.Frequency, after time.Time) ([]*models.Bill, error)

	// GetLatestMembership returns an investor's most recent membership
	// bill by issue date, or nil when none exists
	GetLatestMembership(ctx context.Context, investorID int64) (*models.Bill, error)

	// SumFulfilledByInvestor sums the amounts of an investor's fulfilled
	// bills dated in the open-closed interval (after, until]
	SumFulfilledByInvestor(ctx context.Context, investorID int64, after, until time.Time) (decimal.Decimal, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork provides transactional access to all repositories.
// Events published through its bus are flushed only on commit.
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events.
	// Safe to call after Commit as a no-op.
	Rollback() error

	InvestorRepository() InvestorRepository
	InvestmentRepository() InvestmentRepository
	CashCallRepository() CashCallRepository
	BillRepository() BillRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// InvestorService defines the interface for investor lifecycle operations
type InvestorService interface {
	// CreateInvestor creates an investor together with its zero-amount
	// membership placeholder bill and dedicated cashcall
	CreateInvestor(ctx context.Context, name, email string, joinDate time.Time, activeMember bool) (*models.Investor, error)

	// SetActiveMember toggles membership, billing pro-rata on
	// deactivation and re-anchoring the recurrence chain on reactivation
	SetActiveMember(ctx context.Context, investorID int64, active bool, today time.Time) (*models.Investor, error)
}

// InvestmentService defines the interface for investment lifecycle operations
type InvestmentService interface {
	// CreateInvestment creates an investment and immediately issues its
	// first instalment bill
	CreateInvestment(ctx context.Context, investment *models.Investment, today time.Time) (*models.Investment, error)
}

// BillService defines the interface for direct bill updates
type BillService interface {
	// UpdateBill persists bill changes, zeroing the amount when the
	// ignore flag transitions on
	UpdateBill(ctx context.Context, bill *models.Bill) (*models.Bill, error)
}

// CashCallService defines the interface for the validate and send
// operations of the cashcall lifecycle
type CashCallService interface {
	// ValidateCashCalls validates every bill of the given cashcall, or
	// of all unsent cashcalls when cashcallID is zero
	ValidateCashCalls(ctx context.Context, cashcallID int64, dryRun bool) (*models.Report, error)

	// SendCashCalls sends the given validated cashcall, or all unsent
	// validated cashcalls when cashcallID is zero
	SendCashCalls(ctx context.Context, cashcallID int64, dryRun bool, today time.Time) (*models.Report, error)
}

// GenerationService defines the interface for recurring bill generation
type GenerationService interface {
	// GenerateBills scans recent bills and issues the next period's bill
	// for every recurrence chain that has one due
	GenerateBills(ctx context.Context, opts GenerateOptions) (*models.Report, error)
}

// GenerateOptions scopes a generation run.
type GenerateOptions struct {
	// InvestorID limits the run to one investor when non-zero
	InvestorID int64

	// BillType limits the run to one bill type when non-empty
	BillType models.BillType

	// LookbackYears overrides the configured anchor lookback window when
	// positive. It must exceed the recurrence period plus a safety
	// margin so missed runs do not orphan chains.
	LookbackYears int

	// DryRun computes and reports without persisting anything
	DryRun bool

	// Today is the reference date for deciding due periods
	Today time.Time
}
