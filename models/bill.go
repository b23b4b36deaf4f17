package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillType distinguishes the two recurring obligations the engine bills.
type BillType string

const (
	BillTypeMembership BillType = "MEMBERSHIP"
	BillTypeInvestment BillType = "INVESTMENT"
)

// Frequency is a short recurrence code carried on each bill.
// Recurring generation operates on yearly bills.
type Frequency string

const (
	FrequencyYearly  Frequency = "Y1"
	FrequencyMonthly Frequency = "M1"
	FrequencyOneOff  Frequency = "O1"
)

// Bill is a single charge issued to an investor. Investment bills
// additionally reference the investment and carry an instalment number.
type Bill struct {
	ID           int64           `db:"id"`
	Frequency    Frequency       `db:"frequency"`
	Type         BillType        `db:"bill_type"`
	Amount       decimal.Decimal `db:"amount"`
	InvestorID   int64           `db:"investor_id"`
	CashCallID   int64           `db:"cashcall_id"`
	InvestmentID *int64          `db:"investment_id"`
	InstalmentNo *int            `db:"instalment_no"`
	Validated    bool            `db:"validated"`
	Ignore       bool            `db:"ignore"`
	Fulfilled    bool            `db:"fulfilled"`
	Date         time.Time       `db:"bill_date"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// SetIgnore transitions the ignore flag. Flipping it on zeroes the
// amount, overriding any amount set in the same update.
func (b *Bill) SetIgnore(ignore bool) {
	if ignore {
		b.Amount = decimal.Zero
	}
	b.Ignore = ignore
}
