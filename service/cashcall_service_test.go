package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fortune-max/invoicer/models"
)

func TestCashCallService_ValidateCashCalls_Single(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockCashCallRepo := new(MockCashCallRepository)
	mockBillRepo := new(MockBillRepository)

	mockUoW.SetRepositories(nil, nil, mockCashCallRepo, mockBillRepo)

	service := NewCashCallService(mockFactory)

	cashcall := &models.CashCall{ID: 42, InvestorID: 7, BillCount: 2}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockCashCallRepo.On("GetByID", ctx, int64(42)).Return(cashcall, nil)
	mockBillRepo.On("GetByCashCall", ctx, int64(42)).Return([]*models.Bill{
		{ID: 1, CashCallID: 42, Validated: false},
		{ID: 2, CashCallID: 42, Validated: true},
	}, nil)

	// Only the not-yet-validated bill is written back
	mockBillRepo.On("Update", ctx, mock.MatchedBy(func(b *models.Bill) bool {
		return b.ID == 1 && b.Validated
	})).Return(nil)

	report, err := service.ValidateCashCalls(ctx, 42, false)

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Validated)

	mockUoW.AssertExpectations(t)
	mockBillRepo.AssertExpectations(t)
}

func TestCashCallService_ValidateCashCalls_EmptyCashCallIsAnError(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockCashCallRepo := new(MockCashCallRepository)
	mockBillRepo := new(MockBillRepository)

	mockUoW.SetRepositories(nil, nil, mockCashCallRepo, mockBillRepo)

	service := NewCashCallService(mockFactory)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockCashCallRepo.On("GetByID", ctx, int64(42)).
		Return(&models.CashCall{ID: 42, InvestorID: 7, BillCount: 0}, nil)
	mockBillRepo.On("GetByCashCall", ctx, int64(42)).Return([]*models.Bill{}, nil)

	_, err := service.ValidateCashCalls(ctx, 42, false)
	assert.ErrorIs(t, err, models.ErrInvariantViolation)
}

func TestCashCallService_ValidateCashCalls_SentCashCallIsAnError(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockCashCallRepo := new(MockCashCallRepository)
	mockBillRepo := new(MockBillRepository)

	mockUoW.SetRepositories(nil, nil, mockCashCallRepo, mockBillRepo)

	service := NewCashCallService(mockFactory)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockCashCallRepo.On("GetByID", ctx, int64(42)).
		Return(&models.CashCall{ID: 42, Sent: true, BillCount: 1}, nil)

	_, err := service.ValidateCashCalls(ctx, 42, false)
	assert.ErrorIs(t, err, models.ErrInvariantViolation)
	mockBillRepo.AssertNotCalled(t, "Update")
}

func TestCashCallService_ValidateCashCalls_NotFound(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockCashCallRepo := new(MockCashCallRepository)

	mockUoW.SetRepositories(nil, nil, mockCashCallRepo, nil)

	service := NewCashCallService(mockFactory)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockCashCallRepo.On("GetByID", ctx, int64(404)).Return(nil, nil)

	_, err := service.ValidateCashCalls(ctx, 404, false)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCashCallService_ValidateCashCalls_BatchSkipsEmptyAndValidated(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockCashCallRepo := new(MockCashCallRepository)
	mockBillRepo := new(MockBillRepository)

	mockUoW.SetRepositories(nil, nil, mockCashCallRepo, mockBillRepo)

	service := NewCashCallService(mockFactory)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockCashCallRepo.On("GetUnsent", ctx).Return([]*models.CashCall{
		{ID: 1, InvestorID: 7, BillCount: 0},                  // empty, skipped
		{ID: 2, InvestorID: 7, BillCount: 2, Validated: true}, // already validated, skipped
		{ID: 3, InvestorID: 8, BillCount: 1},
	}, nil)

	mockBillRepo.On("GetByCashCall", ctx, int64(3)).Return([]*models.Bill{
		{ID: 10, CashCallID: 3, Validated: false},
	}, nil)
	mockBillRepo.On("Update", ctx, mock.MatchedBy(func(b *models.Bill) bool {
		return b.ID == 10 && b.Validated
	})).Return(nil)

	report, err := service.ValidateCashCalls(ctx, 0, false)

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Validated)

	mockBillRepo.AssertNotCalled(t, "GetByCashCall", ctx, int64(1))
	mockBillRepo.AssertNotCalled(t, "GetByCashCall", ctx, int64(2))
}

func TestCashCallService_ValidateCashCalls_DryRunRollsBack(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockCashCallRepo := new(MockCashCallRepository)
	mockBillRepo := new(MockBillRepository)

	mockUoW.SetRepositories(nil, nil, mockCashCallRepo, mockBillRepo)

	service := NewCashCallService(mockFactory)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockCashCallRepo.On("GetByID", ctx, int64(42)).
		Return(&models.CashCall{ID: 42, InvestorID: 7, BillCount: 1}, nil)
	mockBillRepo.On("GetByCashCall", ctx, int64(42)).Return([]*models.Bill{
		{ID: 1, CashCallID: 42},
	}, nil)
	mockBillRepo.On("Update", ctx, mock.Anything).Return(nil)

	report, err := service.ValidateCashCalls(ctx, 42, true)

	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Validated)

	mockUoW.AssertNotCalled(t, "Commit")
}

func TestCashCallService_SendCashCalls_Single(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockCashCallRepo := new(MockCashCallRepository)

	mockUoW.SetRepositories(nil, nil, mockCashCallRepo, nil)

	service := NewCashCallService(mockFactory)

	today := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)
	cashcall := &models.CashCall{
		ID:          42,
		InvestorID:  7,
		BillCount:   2,
		Validated:   true,
		TotalAmount: decimal.NewFromInt(6000),
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockCashCallRepo.On("GetByID", ctx, int64(42)).Return(cashcall, nil)
	mockCashCallRepo.On("Update", ctx, mock.MatchedBy(func(c *models.CashCall) bool {
		return c.ID == 42 && c.Sent &&
			c.SentDate != nil && c.SentDate.Equal(today) &&
			c.DueDate != nil && c.DueDate.Equal(today.AddDate(0, 0, models.DueDateGraceDays))
	})).Return(nil)

	report, err := service.SendCashCalls(ctx, 42, false, today)

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Sent)

	mockUoW.AssertExpectations(t)
	mockCashCallRepo.AssertExpectations(t)
}

func TestCashCallService_SendCashCalls_RejectsNonValidated(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockCashCallRepo := new(MockCashCallRepository)

	mockUoW.SetRepositories(nil, nil, mockCashCallRepo, nil)

	service := NewCashCallService(mockFactory)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockCashCallRepo.On("GetByID", ctx, int64(42)).
		Return(&models.CashCall{ID: 42, BillCount: 2, Validated: false}, nil)

	_, err := service.SendCashCalls(ctx, 42, false, time.Now())
	assert.ErrorIs(t, err, models.ErrInvariantViolation)
	mockCashCallRepo.AssertNotCalled(t, "Update")
}

func TestCashCallService_SendCashCalls_BatchSendsOnlyValidated(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockCashCallRepo := new(MockCashCallRepository)

	mockUoW.SetRepositories(nil, nil, mockCashCallRepo, nil)

	service := NewCashCallService(mockFactory)

	today := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockCashCallRepo.On("GetUnsent", ctx).Return([]*models.CashCall{
		{ID: 1, InvestorID: 7, BillCount: 1, Validated: false}, // draft, stays in queue
		{ID: 2, InvestorID: 8, BillCount: 2, Validated: true},
	}, nil)
	mockCashCallRepo.On("Update", ctx, mock.MatchedBy(func(c *models.CashCall) bool {
		return c.ID == 2 && c.Sent
	})).Return(nil)

	report, err := service.SendCashCalls(ctx, 0, false, today)

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Sent)

	mockCashCallRepo.AssertExpectations(t)
}
