package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/fortune-max/invoicer/events"
	"github.com/fortune-max/invoicer/models"
)

// MockInvestorRepository is a mock implementation of InvestorRepository
type MockInvestorRepository struct {
	mock.Mock
}

func (m *MockInvestorRepository) Create(ctx context.Context, investor *models.Investor) error {
	args := m.Called(ctx, investor)
	return args.Error(0)
}

func (m *MockInvestorRepository) GetByID(ctx context.Context, id int64) (*models.Investor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Investor), args.Error(1)
}

func (m *MockInvestorRepository) Update(ctx context.Context, investor *models.Investor) error {
	args := m.Called(ctx, investor)
	return args.Error(0)
}

func (m *MockInvestorRepository) GetAll(ctx context.Context) ([]*models.Investor, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Investor), args.Error(1)
}

// MockInvestmentRepository is a mock implementation of InvestmentRepository
type MockInvestmentRepository struct {
	mock.Mock
}

func (m *MockInvestmentRepository) Create(ctx context.Context, investment *models.Investment) error {
	args := m.Called(ctx, investment)
	return args.Error(0)
}

func (m *MockInvestmentRepository) GetByID(ctx context.Context, id int64) (*models.Investment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Investment), args.Error(1)
}

func (m *MockInvestmentRepository) GetByInvestor(ctx context.Context, investorID int64) ([]*models.Investment, error) {
	args := m.Called(ctx, investorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Investment), args.Error(1)
}

func (m *MockInvestmentRepository) AddWaived(ctx context.Context, id int64, amount decimal.Decimal) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

// MockCashCallRepository is a mock implementation of CashCallRepository
type MockCashCallRepository struct {
	mock.Mock
}

func (m *MockCashCallRepository) Create(ctx context.Context, cashcall *models.CashCall) error {
	args := m.Called(ctx, cashcall)
	return args.Error(0)
}

func (m *MockCashCallRepository) GetByID(ctx context.Context, id int64) (*models.CashCall, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CashCall), args.Error(1)
}

func (m *MockCashCallRepository) Update(ctx context.Context, cashcall *models.CashCall) error {
	args := m.Called(ctx, cashcall)
	return args.Error(0)
}

func (m *MockCashCallRepository) GetUnsentByInvestor(ctx context.Context, investorID int64) ([]*models.CashCall, error) {
	args := m.Called(ctx, investorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CashCall), args.Error(1)
}

func (m *MockCashCallRepository) GetUnsent(ctx context.Context) ([]*models.CashCall, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CashCall), args.Error(1)
}

// MockBillRepository is a mock implementation of BillRepository
type MockBillRepository struct {
	mock.Mock
}

func (m *MockBillRepository) Create(ctx context.Context, bill *models.Bill) error {
	args := m.Called(ctx, bill)
	return args.Error(0)
}

func (m *MockBillRepository) GetByID(ctx context.Context, id int64) (*models.Bill, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bill), args.Error(1)
}

func (m *MockBillRepository) Update(ctx context.Context, bill *models.Bill) error {
	args := m.Called(ctx, bill)
	return args.Error(0)
}

func (m *MockBillRepository) GetByCashCall(ctx context.Context, cashcallID int64) ([]*models.Bill, error) {
	args := m.Called(ctx, cashcallID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bill), args.Error(1)
}

func (m *MockBillRepository) GetRecent(ctx context.Context, billType models.BillType, frequency models.Frequency, after time.Time) ([]*models.Bill, error) {
	args := m.Called(ctx, billType, frequency, after)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bill), args.Error(1)
}

func (m *MockBillRepository) GetLatestMembership(ctx context.Context, investorID int64) (*models.Bill, error) {
	args := m.Called(ctx, investorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bill), args.Error(1)
}

func (m *MockBillRepository) SumFulfilledByInvestor(ctx context.Context, investorID int64, after, until time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, investorID, after, until)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// NoopEventPublisher discards events
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(event events.Event) {}

// MockUnitOfWork is a mock implementation of UnitOfWork that hands out
// the repositories configured via SetRepositories
type MockUnitOfWork struct {
	mock.Mock
	investorRepo   InvestorRepository
	investmentRepo InvestmentRepository
	cashcallRepo   CashCallRepository
	billRepo       BillRepository
	eventBus       EventPublisher
}

// SetRepositories configures the repositories returned by the accessors
func (m *MockUnitOfWork) SetRepositories(investors InvestorRepository, investments InvestmentRepository, cashcalls CashCallRepository, bills BillRepository) {
	m.investorRepo = investors
	m.investmentRepo = investments
	m.cashcallRepo = cashcalls
	m.billRepo = bills
	m.eventBus = NoopEventPublisher{}
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) InvestorRepository() InvestorRepository     { return m.investorRepo }
func (m *MockUnitOfWork) InvestmentRepository() InvestmentRepository { return m.investmentRepo }
func (m *MockUnitOfWork) CashCallRepository() CashCallRepository     { return m.cashcallRepo }
func (m *MockUnitOfWork) BillRepository() BillRepository             { return m.billRepo }
func (m *MockUnitOfWork) EventBus() EventPublisher                   { return m.eventBus }

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
