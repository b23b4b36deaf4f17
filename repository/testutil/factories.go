package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fortune-max/invoicer/models"
)

// CreateTestInvestor creates a test investor with default values
func CreateTestInvestor(name, email string) *models.Investor {
	return &models.Investor{
		Name:         name,
		Email:        email,
		JoinDate:     time.Date(2021, 12, 7, 0, 0, 0, 0, time.UTC),
		ActiveMember: true,
	}
}

// CreateTestInvestment creates a test investment with default values
func CreateTestInvestment(investorID int64) *models.Investment {
	return &models.Investment{
		Name:             "Test Fund",
		DateCreated:      time.Date(2021, 12, 7, 0, 0, 0, 0, time.UTC),
		FeePercent:       decimal.NewFromInt(25),
		TotalAmount:      decimal.NewFromInt(12000),
		TotalInstalments: 10,
		InvestorID:       investorID,
	}
}

// CreateTestCashCall creates an unsent test cashcall
func CreateTestCashCall(investorID int64) *models.CashCall {
	return &models.CashCall{
		InvestorID: investorID,
	}
}

// CreateTestBill creates a test membership bill with default values
func CreateTestBill(investorID, cashcallID int64, date time.Time) *models.Bill {
	return &models.Bill{
		Frequency:  models.FrequencyYearly,
		Type:       models.BillTypeMembership,
		Amount:     decimal.NewFromInt(3000),
		InvestorID: investorID,
		CashCallID: cashcallID,
		Date:       date,
	}
}

// CreateTestInvestmentBill creates a test investment bill for an instalment
func CreateTestInvestmentBill(investorID, cashcallID, investmentID int64, instalmentNo int, date time.Time) *models.Bill {
	bill := CreateTestBill(investorID, cashcallID, date)
	bill.Type = models.BillTypeInvestment
	bill.InvestmentID = &investmentID
	bill.InstalmentNo = &instalmentNo
	return bill
}
