package lots

import "autolot-backend/internal/pkg/apperr"

var (
	ErrLotNumberRequired  = apperr.InvalidInput("Lot number is required")
	ErrLotNumberFormat    = apperr.InvalidInput("Lot number may contain letters, digits, spaces, '-', '_' and '/' (max 64)")
	ErrWindowOrder        = apperr.InvalidInput("Bidding end must not be before bidding start")
	ErrLotNumberTaken     = apperr.Conflict("Lot number already exists")
	ErrLotNumberImmutable = apperr.Conflict("Lot number cannot change once the lot is approved")
	ErrNotApproved        = apperr.Conflict("Lot is not approved")
	ErrAlreadyClosed      = apperr.Conflict("Lot is already closed")
)
