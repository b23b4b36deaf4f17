package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fortune-max/invoicer/models"
)

var oneHundred = decimal.NewFromInt(100)

// Calculator computes payable and waived amounts from the effective-dated
// rate schedules. All arithmetic is exact decimal arithmetic; results are
// rounded to 2 decimal places at the boundary, matching the stored
// precision of the schedules.
type Calculator struct {
	membership models.MembershipSchedule
	discounts  models.DiscountSchedule
}

// NewCalculator creates a calculator over the given schedules. Schedules
// are configuration data; changing them never retroactively changes bills
// already issued.
func NewCalculator(membership models.MembershipSchedule, discounts models.DiscountSchedule) *Calculator {
	return &Calculator{
		membership: membership,
		discounts:  discounts,
	}
}

// InvestmentInstalmentDue computes the payable and waived portions of one
// instalment. The discount tier is resolved from the investment's
// creation date. The first instalment is pro-rated by the remaining
// calendar days in the creation year, inclusive of both the creation date
// and December 31. Both results are clamped at the investment's remaining
// unbilled balance so a final instalment never bills more than what
// remains.
func (c *Calculator) InvestmentInstalmentDue(investment *models.Investment, instalmentNo int) (toPay, toWaive decimal.Decimal, err error) {
	tier, err := c.discounts.EffectiveAt(investment.DateCreated)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to resolve discount tier for investment %d: %w", investment.ID, err)
	}
	discount := tier.Discount(instalmentNo)

	proRata := decimal.NewFromInt(1)
	if instalmentNo == 1 {
		proRata = firstYearFraction(investment.DateCreated)
	}

	notBilled := investment.AmountNotBilled()

	toPay = investment.FeePercent.Sub(discount).Div(oneHundred).
		Mul(investment.TotalAmount).Mul(proRata).Round(2)
	if toPay.GreaterThan(notBilled) {
		toPay = notBilled
	}

	toWaive = discount.Div(oneHundred).
		Mul(investment.TotalAmount).Mul(proRata).Round(2)
	if remainder := notBilled.Sub(toPay); toWaive.GreaterThan(remainder) {
		toWaive = remainder
	}

	return toPay, toWaive, nil
}

// FullYear selects the full annual fee in MembershipDue, as opposed to a
// pro-rated fraction.
const FullYear = -1

// MembershipDue computes the membership fee owed at the reference date.
// The fee is waived entirely once the investor's fulfilled spend in the
// trailing one-year window reaches the schedule's threshold. A
// non-negative proRataDays (the deactivation case) bills only that
// fraction of the year, with the denominator taken from the year in
// which the pro-rated span began; pass FullYear for the full annual fee.
func (c *Calculator) MembershipDue(ctx context.Context, bills BillRepository, investor *models.Investor, referenceDate time.Time, proRataDays int) (decimal.Decimal, error) {
	tier, err := c.membership.EffectiveAt(referenceDate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to resolve membership tier for investor %d: %w", investor.ID, err)
	}

	spend, err := YearlySpend(ctx, bills, investor.ID, referenceDate, 1)
	if err != nil {
		return decimal.Zero, err
	}
	if spend.GreaterThanOrEqual(tier.WaiverThreshold) {
		return decimal.Zero, nil
	}

	if proRataDays >= 0 {
		spanStart := referenceDate.AddDate(0, 0, -proRataDays)
		days := decimal.NewFromInt(int64(daysInYear(spanStart.Year())))
		return tier.Fee.Mul(decimal.NewFromInt(int64(proRataDays))).Div(days).Round(2), nil
	}

	return tier.Fee, nil
}

// YearlySpend sums an investor's fulfilled billed amounts in the
// open-closed interval (referenceDate - yearsBack, referenceDate].
//
// The window start is shifted with time.Time.AddDate, which normalizes
// out-of-range dates: a Feb 29 reference shifted into a non-leap year
// resolves to Mar 1 of that year.
func YearlySpend(ctx context.Context, bills BillRepository, investorID int64, referenceDate time.Time, yearsBack int) (decimal.Decimal, error) {
	windowStart := referenceDate.AddDate(-yearsBack, 0, 0)
	spend, err := bills.SumFulfilledByInvestor(ctx, investorID, windowStart, referenceDate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum yearly spend for investor %d: %w", investorID, err)
	}
	return spend, nil
}

// firstYearFraction returns the fraction of the creation year remaining
// at the creation date, counting both the creation date and December 31.
func firstYearFraction(created time.Time) decimal.Decimal {
	yearEnd := time.Date(created.Year(), 12, 31, 0, 0, 0, 0, created.Location())
	remaining := int(yearEnd.Sub(created).Hours()/24) + 1
	return decimal.NewFromInt(int64(remaining)).Div(decimal.NewFromInt(int64(daysInYear(created.Year()))))
}

func daysInYear(year int) int {
	if isLeapYear(year) {
		return 366
	}
	return 365
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
