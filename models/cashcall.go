package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DueDateGraceDays is the fixed grace period between sending a cashcall
// and its payment due date.
const DueDateGraceDays = 62

// CashCall groups one or more bills sent together to an investor as a
// single payment request. It is a grouping bucket and is never billed
// directly; all monetary truth lives in its bills.
type CashCall struct {
	ID         int64      `db:"id"`
	InvestorID int64      `db:"investor_id"`
	Sent       bool       `db:"sent"`
	SentDate   *time.Time `db:"sent_date"`
	DueDate    *time.Time `db:"due_date"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`

	// Calculated fields: derived from the bills attached to this cashcall
	TotalAmount decimal.Decimal `db:"-"` // Sum of all bill amounts
	AmountPaid  decimal.Decimal `db:"-"` // Sum of fulfilled bill amounts
	BillCount   int             `db:"-"`
	Validated   bool            `db:"-"` // True only if it has >=1 bill and every bill is validated
}

// Fulfilled reports whether the attached bills have been paid in full.
func (c *CashCall) Fulfilled() bool {
	return c.AmountPaid.GreaterThanOrEqual(c.TotalAmount)
}

// Overdue reports whether the cashcall was sent, remains unpaid and is
// past its due date.
func (c *CashCall) Overdue(today time.Time) bool {
	if c.Fulfilled() || !c.Sent || c.DueDate == nil {
		return false
	}
	return today.After(*c.DueDate)
}

// MarkSent transitions the cashcall to sent, stamping the sent date and
// the due date. A cashcall cannot be sent unless it is validated, which
// requires at least one bill.
func (c *CashCall) MarkSent(today time.Time) error {
	if c.Sent {
		return fmt.Errorf("%w: cashcall %d has already been sent", ErrInvariantViolation, c.ID)
	}
	if !c.Validated {
		return fmt.Errorf("%w: cashcall %d is not validated, validate it first", ErrInvariantViolation, c.ID)
	}
	sentDate := today
	dueDate := today.AddDate(0, 0, DueDateGraceDays)
	c.Sent = true
	c.SentDate = &sentDate
	c.DueDate = &dueDate
	return nil
}
