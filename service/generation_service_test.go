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

func intPtr(n int) *int       { return &n }
func int64Ptr(n int64) *int64 { return &n }

func TestGenerationService_GenerateBills_MembershipChainDue(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockInvestorRepo := new(MockInvestorRepository)
	mockInvestmentRepo := new(MockInvestmentRepository)
	mockCashCallRepo := new(MockCashCallRepository)
	mockBillRepo := new(MockBillRepository)

	mockUoW.SetRepositories(mockInvestorRepo, mockInvestmentRepo, mockCashCallRepo, mockBillRepo)

	service := NewGenerationService(mockFactory, newTestCalculator(), NewActiveMemberPolicy())

	today := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	anchorDate := time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)
	nextDue := anchorDate.AddDate(1, 0, 0)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockBillRepo.On("GetRecent", ctx, models.BillTypeMembership, models.FrequencyYearly,
		today.AddDate(-2, 0, 0)).Return([]*models.Bill{
		{ID: 5, Type: models.BillTypeMembership, Frequency: models.FrequencyYearly,
			InvestorID: 7, Date: anchorDate},
	}, nil)

	mockInvestorRepo.On("GetByID", ctx, int64(7)).
		Return(&models.Investor{ID: 7, ActiveMember: true}, nil)

	// Fee is computed as of the period being billed, not as of today
	mockBillRepo.On("SumFulfilledByInvestor", ctx, int64(7),
		nextDue.AddDate(-1, 0, 0), nextDue).Return(decimal.Zero, nil)

	mockCashCallRepo.On("GetUnsentByInvestor", ctx, int64(7)).
		Return([]*models.CashCall{{ID: 42, InvestorID: 7, BillCount: 1}}, nil)

	mockBillRepo.On("Create", ctx, mock.MatchedBy(func(b *models.Bill) bool {
		return b.Type == models.BillTypeMembership &&
			b.Frequency == models.FrequencyYearly &&
			b.InvestorID == 7 && b.CashCallID == 42 &&
			b.Amount.StringFixed(2) == "3000.00" &&
			!b.Validated && !b.Ignore && !b.Fulfilled &&
			b.Date.Equal(nextDue)
	})).Return(nil)

	report, err := service.GenerateBills(ctx, GenerateOptions{
		BillType: models.BillTypeMembership,
		Today:    today,
	})

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.BillsCreated)

	mockUoW.AssertExpectations(t)
	mockBillRepo.AssertExpectations(t)
}

func TestGenerationService_GenerateBills_NothingDue(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockBillRepo := new(MockBillRepository)

	mockUoW.SetRepositories(nil, nil, nil, mockBillRepo)

	service := NewGenerationService(mockFactory, newTestCalculator(), NewActiveMemberPolicy())

	today := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	// Anchor less than a year old: its next period is still in the future
	mockBillRepo.On("GetRecent", ctx, models.BillTypeMembership, models.FrequencyYearly,
		today.AddDate(-2, 0, 0)).Return([]*models.Bill{
		{ID: 5, Type: models.BillTypeMembership, InvestorID: 7,
			Date: time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)},
	}, nil)

	report, err := service.GenerateBills(ctx, GenerateOptions{
		BillType: models.BillTypeMembership,
		Today:    today,
	})

	require.NoError(t, err)
	assert.Zero(t, report.BillsCreated)
	assert.Equal(t, []string{"No bills due"}, report.Lines)

	mockBillRepo.AssertNotCalled(t, "Create")
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestGenerationService_GenerateBills_OnlyNewestBillAnchorsAChain(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockBillRepo := new(MockBillRepository)

	mockUoW.SetRepositories(nil, nil, nil, mockBillRepo)

	service := NewGenerationService(mockFactory, newTestCalculator(), NewActiveMemberPolicy())

	today := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	// Newest first: the fresh bill from a previous run shadows the old
	// anchor, so re-invoking generates nothing. This is what makes the
	// operation idempotent.
	mockBillRepo.On("GetRecent", ctx, models.BillTypeMembership, models.FrequencyYearly,
		today.AddDate(-2, 0, 0)).Return([]*models.Bill{
		{ID: 9, Type: models.BillTypeMembership, InvestorID: 7,
			Date: time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)},
		{ID: 5, Type: models.BillTypeMembership, InvestorID: 7,
			Date: time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)},
	}, nil)

	report, err := service.GenerateBills(ctx, GenerateOptions{
		BillType: models.BillTypeMembership,
		Today:    today,
	})

	require.NoError(t, err)
	assert.Zero(t, report.BillsCreated)
	mockBillRepo.AssertNotCalled(t, "Create")
}

func TestGenerationService_GenerateBills_InactiveMemberGetsSuppressedBill(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockInvestorRepo := new(MockInvestorRepository)
	mockCashCallRepo := new(MockCashCallRepository)
	mockBillRepo := new(MockBillRepository)

	mockUoW.SetRepositories(mockInvestorRepo, nil, mockCashCallRepo, mockBillRepo)

	service := NewGenerationService(mockFactory, newTestCalculator(), NewActiveMemberPolicy())

	today := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	anchorDate := time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)
	nextDue := anchorDate.AddDate(1, 0, 0)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockBillRepo.On("GetRecent", ctx, models.BillTypeMembership, models.FrequencyYearly,
		today.AddDate(-2, 0, 0)).Return([]*models.Bill{
		{ID: 5, Type: models.BillTypeMembership, InvestorID: 7, Date: anchorDate},
	}, nil)

	mockInvestorRepo.On("GetByID", ctx, int64(7)).
		Return(&models.Investor{ID: 7, ActiveMember: false}, nil)

	// Suppressed bills go to a pre-validated bucket; none exists yet
	mockCashCallRepo.On("GetUnsentByInvestor", ctx, int64(7)).
		Return([]*models.CashCall{}, nil)
	mockCashCallRepo.On("Create", ctx, mock.MatchedBy(func(c *models.CashCall) bool {
		return c.InvestorID == 7
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.CashCall).ID = 99
	}).Return(nil)

	// The chain continues with a zero bill so reactivation picks up the
	// yearly cadence without a gap
	mockBillRepo.On("Create", ctx, mock.MatchedBy(func(b *models.Bill) bool {
		return b.Type == models.BillTypeMembership &&
			b.CashCallID == 99 &&
			b.Amount.IsZero() && b.Validated && b.Ignore && b.Fulfilled &&
			b.Date.Equal(nextDue)
	})).Return(nil)

	report, err := service.GenerateBills(ctx, GenerateOptions{
		BillType: models.BillTypeMembership,
		Today:    today,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, report.BillsCreated)

	// No fee lookup happens for suppressed bills
	mockBillRepo.AssertNotCalled(t, "SumFulfilledByInvestor")
	mockBillRepo.AssertExpectations(t)
	mockCashCallRepo.AssertExpectations(t)
}

func TestGenerationService_GenerateBills_InvestmentNextInstalment(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockInvestorRepo := new(MockInvestorRepository)
	mockInvestmentRepo := new(MockInvestmentRepository)
	mockCashCallRepo := new(MockCashCallRepository)
	mockBillRepo := new(MockBillRepository)

	mockUoW.SetRepositories(mockInvestorRepo, mockInvestmentRepo, mockCashCallRepo, mockBillRepo)

	service := NewGenerationService(mockFactory, newTestCalculator(), NewActiveMemberPolicy())

	today := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	anchorDate := time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)
	nextDue := anchorDate.AddDate(1, 0, 0)

	investment := &models.Investment{
		ID:               3,
		DateCreated:      time.Date(2021, 12, 7, 0, 0, 0, 0, time.UTC),
		FeePercent:       decimal.NewFromInt(25),
		TotalAmount:      decimal.NewFromInt(12000),
		TotalInstalments: 10,
		InvestorID:       7,
		AmountBilled:     decimal.NewFromInt(6000),
		LastInstalment:   3,
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockBillRepo.On("GetRecent", ctx, models.BillTypeInvestment, models.FrequencyYearly,
		today.AddDate(-2, 0, 0)).Return([]*models.Bill{
		{ID: 5, Type: models.BillTypeInvestment, InvestorID: 7,
			InvestmentID: int64Ptr(3), InstalmentNo: intPtr(3), Date: anchorDate},
	}, nil)

	mockInvestorRepo.On("GetByID", ctx, int64(7)).
		Return(&models.Investor{ID: 7, ActiveMember: true}, nil)
	mockInvestmentRepo.On("GetByID", ctx, int64(3)).Return(investment, nil)

	mockCashCallRepo.On("GetUnsentByInvestor", ctx, int64(7)).
		Return([]*models.CashCall{{ID: 42, InvestorID: 7, BillCount: 1}}, nil)

	// Instalment 4 falls back to the 5% default discount:
	// pay 20% of 12000, waive 5% of 12000
	mockBillRepo.On("Create", ctx, mock.MatchedBy(func(b *models.Bill) bool {
		return b.Type == models.BillTypeInvestment &&
			b.InvestmentID != nil && *b.InvestmentID == 3 &&
			b.InstalmentNo != nil && *b.InstalmentNo == 4 &&
			b.Amount.StringFixed(2) == "2400.00" &&
			b.Date.Equal(nextDue)
	})).Return(nil)
	mockInvestmentRepo.On("AddWaived", ctx, int64(3), mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.StringFixed(2) == "600.00"
	})).Return(nil)

	report, err := service.GenerateBills(ctx, GenerateOptions{
		BillType: models.BillTypeInvestment,
		Today:    today,
	})

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.BillsCreated)

	mockInvestmentRepo.AssertExpectations(t)
	mockBillRepo.AssertExpectations(t)
}

func TestGenerationService_GenerateBills_FullyBilledInvestmentIsSkipped(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockInvestorRepo := new(MockInvestorRepository)
	mockInvestmentRepo := new(MockInvestmentRepository)
	mockBillRepo := new(MockBillRepository)

	mockUoW.SetRepositories(mockInvestorRepo, mockInvestmentRepo, nil, mockBillRepo)

	service := NewGenerationService(mockFactory, newTestCalculator(), NewActiveMemberPolicy())

	today := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	anchorDate := time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockBillRepo.On("GetRecent", ctx, models.BillTypeInvestment, models.FrequencyYearly,
		today.AddDate(-2, 0, 0)).Return([]*models.Bill{
		{ID: 5, Type: models.BillTypeInvestment, InvestorID: 7,
			InvestmentID: int64Ptr(3), InstalmentNo: intPtr(10), Date: anchorDate},
	}, nil)

	mockInvestorRepo.On("GetByID", ctx, int64(7)).
		Return(&models.Investor{ID: 7, ActiveMember: true}, nil)
	mockInvestmentRepo.On("GetByID", ctx, int64(3)).Return(&models.Investment{
		ID:               3,
		DateCreated:      time.Date(2021, 12, 7, 0, 0, 0, 0, time.UTC),
		FeePercent:       decimal.NewFromInt(25),
		TotalAmount:      decimal.NewFromInt(12000),
		TotalInstalments: 10,
		InvestorID:       7,
		LastInstalment:   10,
	}, nil)

	report, err := service.GenerateBills(ctx, GenerateOptions{
		BillType: models.BillTypeInvestment,
		Today:    today,
	})

	require.NoError(t, err)
	assert.Zero(t, report.BillsCreated)
	mockBillRepo.AssertNotCalled(t, "Create")
}

func TestGenerationService_GenerateBills_ScopedToOneInvestor(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockInvestorRepo := new(MockInvestorRepository)
	mockCashCallRepo := new(MockCashCallRepository)
	mockBillRepo := new(MockBillRepository)

	mockUoW.SetRepositories(mockInvestorRepo, nil, mockCashCallRepo, mockBillRepo)

	service := NewGenerationService(mockFactory, newTestCalculator(), NewActiveMemberPolicy())

	today := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	anchorDate := time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)
	nextDue := anchorDate.AddDate(1, 0, 0)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockBillRepo.On("GetRecent", ctx, models.BillTypeMembership, models.FrequencyYearly,
		today.AddDate(-2, 0, 0)).Return([]*models.Bill{
		{ID: 5, Type: models.BillTypeMembership, InvestorID: 7, Date: anchorDate},
		{ID: 6, Type: models.BillTypeMembership, InvestorID: 8, Date: anchorDate},
	}, nil)

	mockInvestorRepo.On("GetByID", ctx, int64(7)).
		Return(&models.Investor{ID: 7, ActiveMember: true}, nil)
	mockBillRepo.On("SumFulfilledByInvestor", ctx, int64(7),
		nextDue.AddDate(-1, 0, 0), nextDue).Return(decimal.Zero, nil)
	mockCashCallRepo.On("GetUnsentByInvestor", ctx, int64(7)).
		Return([]*models.CashCall{{ID: 42, InvestorID: 7, BillCount: 1}}, nil)
	mockBillRepo.On("Create", ctx, mock.MatchedBy(func(b *models.Bill) bool {
		return b.InvestorID == 7
	})).Return(nil)

	report, err := service.GenerateBills(ctx, GenerateOptions{
		InvestorID: 7,
		BillType:   models.BillTypeMembership,
		Today:      today,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, report.BillsCreated)

	mockInvestorRepo.AssertNotCalled(t, "GetByID", ctx, int64(8))
}

func TestGenerationService_GenerateBills_DryRunRollsBack(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockInvestorRepo := new(MockInvestorRepository)
	mockCashCallRepo := new(MockCashCallRepository)
	mockBillRepo := new(MockBillRepository)

	mockUoW.SetRepositories(mockInvestorRepo, nil, mockCashCallRepo, mockBillRepo)

	service := NewGenerationService(mockFactory, newTestCalculator(), NewActiveMemberPolicy())

	today := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	anchorDate := time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)
	nextDue := anchorDate.AddDate(1, 0, 0)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockBillRepo.On("GetRecent", ctx, models.BillTypeMembership, models.FrequencyYearly,
		today.AddDate(-2, 0, 0)).Return([]*models.Bill{
		{ID: 5, Type: models.BillTypeMembership, InvestorID: 7, Date: anchorDate},
	}, nil)
	mockInvestorRepo.On("GetByID", ctx, int64(7)).
		Return(&models.Investor{ID: 7, ActiveMember: true}, nil)
	mockBillRepo.On("SumFulfilledByInvestor", ctx, int64(7),
		nextDue.AddDate(-1, 0, 0), nextDue).Return(decimal.Zero, nil)
	mockCashCallRepo.On("GetUnsentByInvestor", ctx, int64(7)).
		Return([]*models.CashCall{{ID: 42, InvestorID: 7, BillCount: 1}}, nil)
	mockBillRepo.On("Create", ctx, mock.Anything).Return(nil)

	report, err := service.GenerateBills(ctx, GenerateOptions{
		BillType: models.BillTypeMembership,
		DryRun:   true,
		Today:    today,
	})

	require.NoError(t, err)
	assert.True(t, report.DryRun)
	// The report still shows what would have been created
	assert.Equal(t, 1, report.BillsCreated)

	mockUoW.AssertNotCalled(t, "Commit")
}

func TestGenerationService_GenerateBills_OneFailureDoesNotBlockTheRest(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockInvestorRepo := new(MockInvestorRepository)
	mockCashCallRepo := new(MockCashCallRepository)
	mockBillRepo := new(MockBillRepository)

	mockUoW.SetRepositories(mockInvestorRepo, nil, mockCashCallRepo, mockBillRepo)

	service := NewGenerationService(mockFactory, newTestCalculator(), NewActiveMemberPolicy())

	today := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	anchorDate := time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)
	nextDue := anchorDate.AddDate(1, 0, 0)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockBillRepo.On("GetRecent", ctx, models.BillTypeMembership, models.FrequencyYearly,
		today.AddDate(-2, 0, 0)).Return([]*models.Bill{
		{ID: 5, Type: models.BillTypeMembership, InvestorID: 7, Date: anchorDate},
		{ID: 6, Type: models.BillTypeMembership, InvestorID: 8, Date: anchorDate},
	}, nil)

	// Investor 7 was deleted out of band; its chain fails
	mockInvestorRepo.On("GetByID", ctx, int64(7)).Return(nil, nil)

	// Investor 8 still bills normally
	mockInvestorRepo.On("GetByID", ctx, int64(8)).
		Return(&models.Investor{ID: 8, ActiveMember: true}, nil)
	mockBillRepo.On("SumFulfilledByInvestor", ctx, int64(8),
		nextDue.AddDate(-1, 0, 0), nextDue).Return(decimal.Zero, nil)
	mockCashCallRepo.On("GetUnsentByInvestor", ctx, int64(8)).
		Return([]*models.CashCall{{ID: 43, InvestorID: 8, BillCount: 1}}, nil)
	mockBillRepo.On("Create", ctx, mock.MatchedBy(func(b *models.Bill) bool {
		return b.InvestorID == 8
	})).Return(nil)

	report, err := service.GenerateBills(ctx, GenerateOptions{
		BillType: models.BillTypeMembership,
		Today:    today,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, report.BillsCreated)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Reason, "not found")
}
