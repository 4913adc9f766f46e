package domain

// LotStatus is the persisted lot label. The strings are read by every UI
// screen and export sheet and must not change.
type LotStatus string

const (
	LotPending     LotStatus = "Pending"
	LotApproved    LotStatus = "Approved"
	LotActive      LotStatus = "Active"
	LotClosed      LotStatus = "Closed"
	LotEarlyClosed LotStatus = "Early Closed"
)

// Terminal reports whether bidding on the lot is over.
func (s LotStatus) Terminal() bool {
	return s == LotClosed || s == LotEarlyClosed
}

// Valid reports whether s is one of the known lot labels.
func (s LotStatus) Valid() bool {
	switch s {
	case LotPending, LotApproved, LotActive, LotClosed, LotEarlyClosed:
		return true
	}
	return false
}

// CarStatus is the persisted car label. Cars never carry Pending, Approved or Early Closed.
type CarStatus string

const (
	CarUpcoming CarStatus = "Upcoming"
	CarActive   CarStatus = "Active"
	CarClosed   CarStatus = "Closed"
)

func (s CarStatus) Valid() bool {
	switch s {
	case CarUpcoming, CarActive, CarClosed:
		return true
	}
	return false
}
