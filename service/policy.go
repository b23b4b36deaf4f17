package service

import (
	"github.com/fortune-max/invoicer/models"
)

// BillFlags is the initial validated/ignore/fulfilled combination a
// newly generated bill is issued with.
type BillFlags struct {
	Validated bool
	Ignore    bool
	Fulfilled bool
}

// Suppressed reports whether billing is suppressed, in which case the
// bill is issued with a zero amount purely to keep the recurrence chain
// unbroken.
func (f BillFlags) Suppressed() bool {
	return f.Ignore
}

// BillingPolicy decides how investor state shapes a generated bill.
// The generation loop consults it instead of hard-coding activity
// checks, so new investor states can be added without touching the loop.
type BillingPolicy interface {
	// InitialFlags returns the flags a new bill for this investor is
	// issued with
	InitialFlags(investor *models.Investor) BillFlags
}

// activeMemberPolicy suppresses billing for inactive members: their
// bills are issued pre-validated, pre-ignored and pre-fulfilled at zero
// amount, keeping a record for continuity of the recurrence chain.
type activeMemberPolicy struct{}

// NewActiveMemberPolicy returns the default billing policy.
func NewActiveMemberPolicy() BillingPolicy {
	return activeMemberPolicy{}
}

func (activeMemberPolicy) InitialFlags(investor *models.Investor) BillFlags {
	if !investor.ActiveMember {
		return BillFlags{Validated: true, Ignore: true, Fulfilled: true}
	}
	return BillFlags{}
}
