package lifecycle

import (
	"time"

	"autolot-backend/internal/domain"
)

// CarStatusFor maps a lot status onto the label written to every car of the lot.
func CarStatusFor(lot domain.LotStatus) domain.CarStatus {
	switch lot {
	case domain.LotActive:
		return domain.CarActive
	case domain.LotClosed, domain.LotEarlyClosed:
		return domain.CarClosed
	default:
		return domain.CarUpcoming
	}
}

// CarInput carries the per-car override inputs.
type CarInput struct {
	Start          *time.Time
	End            *time.Time
	BiddingEnabled bool
}

func CarInputOf(c domain.Car) CarInput {
	return CarInput{Start: c.BiddingStartDate, End: c.BiddingEndDate, BiddingEnabled: c.BiddingEnabled}
}

// ResolveCar refines CarStatusFor with the car's own flags. A terminal lot
// always closes its cars. A disabled car is never Active. A re-enabled car whose
// own window contains now is Active while its lot is still only Approved.
func ResolveCar(lot domain.LotStatus, in CarInput, now time.Time) domain.CarStatus {
	base := CarStatusFor(lot)
	switch {
	case lot.Terminal():
		return domain.CarClosed
	case !in.BiddingEnabled:
		if base == domain.CarActive {
			return domain.CarClosed
		}
		return base
	case lot == domain.LotApproved && in.Start != nil && in.End != nil && inWindow(*in.Start, *in.End, now):
		return domain.CarActive
	}
	return base
}

// CanBid reports whether a new bid on the car is accepted at now.
func CanBid(lot domain.Lot, car domain.Car, now time.Time) bool {
	lotStatus := ResolveLot(LotInputOf(lot), now)
	return ResolveCar(lotStatus, CarInputOf(car), now) == domain.CarActive
}
