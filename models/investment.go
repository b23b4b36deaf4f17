package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Investment represents an investor's committed position. The fee for an
// investment is billed in yearly instalments until the total committed
// fee is either paid or waived.
type Investment struct {
	ID               int64           `db:"id"`
	Name             string          `db:"name"`
	DateCreated      time.Time       `db:"date_created"`
	FeePercent       decimal.Decimal `db:"fee_percent"`
	TotalAmount      decimal.Decimal `db:"total_amount"`
	AmountWaived     decimal.Decimal `db:"amount_waived"`
	TotalInstalments int             `db:"total_instalments"`
	InvestorID       int64           `db:"investor_id"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`

	// Calculated fields: derived from the bills referencing this investment
	AmountPaid     decimal.Decimal `db:"-"` // Sum of fulfilled bill amounts
	AmountBilled   decimal.Decimal `db:"-"` // Sum of all bill amounts
	LastInstalment int             `db:"-"` // Highest instalment number billed so far
}

// AmountLeft returns the outstanding payable amount, floored at zero.
func (i *Investment) AmountLeft() decimal.Decimal {
	left := i.TotalAmount.Sub(i.AmountWaived).Sub(i.AmountPaid)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// AmountNotBilled returns the portion of the total that has not yet been
// billed or waived, floored at zero. Instalment amounts are clamped at
// this value so a final instalment never bills more than what remains.
func (i *Investment) AmountNotBilled() decimal.Decimal {
	left := i.TotalAmount.Sub(i.AmountWaived).Sub(i.AmountBilled)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// Fulfilled reports whether the committed total has been fully covered
// by payments and waivers.
func (i *Investment) Fulfilled() bool {
	return i.AmountPaid.Add(i.AmountWaived).GreaterThanOrEqual(i.TotalAmount)
}

// FullyBilled reports whether no further instalments should be generated,
// either because nothing remains unbilled or because the last contracted
// instalment has already been issued.
func (i *Investment) FullyBilled() bool {
	return !i.AmountNotBilled().IsPositive() || i.LastInstalment >= i.TotalInstalments
}
