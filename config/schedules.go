package config

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fortune-max/invoicer/models"
)

// Default rate schedules. Schedules are configuration data, not engine
// truth: deployments replace these with their own eras, and adding an
// era never retroactively changes bills already issued. Each schedule
// must keep an open-ended floor era so every date resolves.

// DefaultMembershipSchedule returns the membership fee and waiver
// threshold eras, sorted descending by effective date.
func DefaultMembershipSchedule() models.MembershipSchedule {
	return models.MembershipSchedule{
		{
			EffectiveFrom: time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC),
			MembershipTier: models.MembershipTier{
				Fee:             decimal.NewFromInt(3000),
				WaiverThreshold: decimal.NewFromInt(50_000),
			},
		},
	}
}

// DefaultDiscountSchedule returns the investment instalment discount
// eras, sorted descending by effective date. Discounts are resolved by
// the investment's creation date, so investments opened before an era
// keep their original terms for every instalment.
func DefaultDiscountSchedule() models.DiscountSchedule {
	return models.DiscountSchedule{
		{
			EffectiveFrom: time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC),
			DiscountTier: models.DiscountTier{
				ByInstalment: map[int]decimal.Decimal{
					1: decimal.Zero,
					2: decimal.NewFromFloat(1.00),
					3: decimal.NewFromFloat(2.00),
				},
				Default: decimal.NewFromFloat(5.00),
			},
		},
		{
			EffectiveFrom: time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC),
			DiscountTier: models.DiscountTier{
				Default: decimal.Zero,
			},
		},
	}
}
