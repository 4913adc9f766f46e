package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput     = errors.New("Invalid input")
	ErrInvalidWinner    = errors.New("Bid does not belong to this car")
	ErrPermissionDenied = errors.New("Permission denied")
	ErrTransientNetwork = errors.New("Store temporarily unreachable")
	ErrNotFound         = errors.New("Not found")
	ErrConflict         = errors.New("Conflict")
)

// InvalidInput wraps ErrInvalidInput with a caller-facing message.
func InvalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound, e.g. NotFound("Lot").
func NotFound(what string) error {
	return fmt.Errorf("%w: %s not found", ErrNotFound, what)
}

// Conflict wraps ErrConflict with a caller-facing message.
func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// PartialCascadeError reports a cascade where the lot and its cars diverged.
// The part that succeeded is never rolled back.
type PartialCascadeError struct {
	LotID        uuid.UUID
	LotWritten   bool
	FailedCarIDs []uuid.UUID
	Err          error
}

func (e *PartialCascadeError) Error() string {
	ids := make([]string, 0, len(e.FailedCarIDs))
	for _, id := range e.FailedCarIDs {
		ids = append(ids, id.String())
	}
	return fmt.Sprintf("partial cascade on lot %s (lot written: %t, failed cars: [%s]): %v",
		e.LotID, e.LotWritten, strings.Join(ids, ","), e.Err)
}

func (e *PartialCascadeError) Unwrap() error {
	return e.Err
}

// IsPartialCascade reports whether err carries a *PartialCascadeError.
func IsPartialCascade(err error) (*PartialCascadeError, bool) {
	var pce *PartialCascadeError
	if errors.As(err, &pce) {
		return pce, true
	}
	return nil, false
}
