package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Effective-dated rate schedules. Each schedule is an ordered list of
// eras sorted descending by effective date; resolution scans for the
// first era whose effective date is on or before the reference date.
// Changing a schedule never retroactively changes bills already issued;
// only computations made after the change pick up the new tiers.

// MembershipTier holds the annual membership fee and the trailing-year
// spend threshold above which the fee is waived.
type MembershipTier struct {
	Fee             decimal.Decimal
	WaiverThreshold decimal.Decimal
}

// MembershipEra is a membership tier effective from a given date onward.
type MembershipEra struct {
	EffectiveFrom time.Time
	MembershipTier
}

// MembershipSchedule is the fee/waiver table, sorted descending by
// effective date. It is resolved against the current date.
type MembershipSchedule []MembershipEra

// EffectiveAt returns the tier in force at the reference date.
func (s MembershipSchedule) EffectiveAt(ref time.Time) (MembershipTier, error) {
	for _, era := range s {
		if !era.EffectiveFrom.After(ref) {
			return era.MembershipTier, nil
		}
	}
	return MembershipTier{}, fmt.Errorf("%w: membership schedule has no era at %s", ErrNoScheduleTier, ref.Format("2006-01-02"))
}

// DiscountTier maps instalment numbers to the discount percentage waived
// off the investment fee. Instalments beyond the explicitly listed ones
// fall back to Default.
type DiscountTier struct {
	ByInstalment map[int]decimal.Decimal
	Default      decimal.Decimal
}

// Discount returns the discount percentage for an instalment number.
func (t DiscountTier) Discount(instalmentNo int) decimal.Decimal {
	if d, ok := t.ByInstalment[instalmentNo]; ok {
		return d
	}
	return t.Default
}

// DiscountEra is a discount tier effective from a given date onward.
type DiscountEra struct {
	EffectiveFrom time.Time
	DiscountTier
}

// DiscountSchedule is the instalment discount table, sorted descending
// by effective date. It is resolved against the investment's creation
// date, so all instalments of one investment use the same tier.
type DiscountSchedule []DiscountEra

// EffectiveAt returns the tier in force at the reference date.
func (s DiscountSchedule) EffectiveAt(ref time.Time) (DiscountTier, error) {
	for _, era := range s {
		if !era.EffectiveFrom.After(ref) {
			return era.DiscountTier, nil
		}
	}
	return DiscountTier{}, fmt.Errorf("%w: discount schedule has no era at %s", ErrNoScheduleTier, ref.Format("2006-01-02"))
}
