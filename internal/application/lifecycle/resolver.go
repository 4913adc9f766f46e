// Package lifecycle derives lot and car statuses from approval flags, the
// bidding window and the current instant. Everything here is pure.
package lifecycle

import (
	"time"

	"autolot-backend/internal/domain"
)

// LotInput is everything a lot status depends on.
type LotInput struct {
	Approved    bool
	EarlyClosed bool
	Start       *time.Time
	End         *time.Time
}

// LotInputOf extracts the resolver inputs from a stored lot.
func LotInputOf(l domain.Lot) LotInput {
	return LotInput{
		Approved:    l.Approved,
		EarlyClosed: l.EarlyClosed,
		Start:       l.BiddingStartDate,
		End:         l.BiddingEndDate,
	}
}

// ResolveLot returns the lot status at now. First matching rule wins:
//
//	early closed, window not superseded -> Early Closed
//	not approved                        -> Pending
//	start <= now <= end                 -> Active
//	now > end (both bounds set)         -> Closed
//	otherwise                           -> Approved
func ResolveLot(in LotInput, now time.Time) domain.LotStatus {
	if in.EarlyClosed && !windowSupersedes(in, now) {
		return domain.LotEarlyClosed
	}
	if !in.Approved {
		return domain.LotPending
	}
	if in.Start == nil || in.End == nil {
		return domain.LotApproved
	}
	if inWindow(*in.Start, *in.End, now) {
		return domain.LotActive
	}
	if now.After(*in.End) {
		return domain.LotClosed
	}
	return domain.LotApproved
}

// windowSupersedes reports whether the stored window reopens an early-closed
// lot: its start is still ahead, or now sits inside it.
func windowSupersedes(in LotInput, now time.Time) bool {
	if in.Start == nil {
		return false
	}
	if now.Before(*in.Start) {
		return true
	}
	return in.End != nil && inWindow(*in.Start, *in.End, now)
}

func inWindow(start, end, now time.Time) bool {
	return !now.Before(start) && !now.After(end)
}
