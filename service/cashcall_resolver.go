package service

import (
	"context"
	"fmt"

	"github.com/fortune-max/invoicer/models"
)

// ResolveCashCall returns the open cashcall a new bill for the investor
// should be attached to, creating one when no unsent cashcall matches.
//
// Among the investor's unsent cashcalls, those whose validated status
// equals desiredValidated are candidates, as are empty cashcalls, which
// have no opinion on validation and can be repurposed either way. The
// candidate with the most bills wins so bills pack into existing
// cashcalls instead of fragmenting; ties break on lowest id. The result
// is never a sent cashcall.
func ResolveCashCall(ctx context.Context, cashcalls CashCallRepository, investorID int64, desiredValidated bool) (*models.CashCall, error) {
	unsent, err := cashcalls.GetUnsentByInvestor(ctx, investorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsent cashcalls for investor %d: %w", investorID, err)
	}

	// Repository ordering is bill count descending, id ascending, so the
	// first match is the winner.
	for _, cashcall := range unsent {
		if cashcall.Validated == desiredValidated || cashcall.BillCount == 0 {
			return cashcall, nil
		}
	}

	cashcall := &models.CashCall{InvestorID: investorID}
	if err := cashcalls.Create(ctx, cashcall); err != nil {
		return nil, fmt.Errorf("failed to create cashcall for investor %d: %w", investorID, err)
	}
	return cashcall, nil
}
