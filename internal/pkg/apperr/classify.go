package apperr

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Category groups errors by how callers must react to them.
type Category int

const (
	CategoryNone Category = iota
	CategoryInvalid
	CategoryNotFound
	CategoryPermission
	CategoryTransient
	CategoryFatal
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryInvalid:
		return "invalid"
	case CategoryNotFound:
		return "not_found"
	case CategoryPermission:
		return "permission"
	case CategoryTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// Postgres SQLSTATE codes the engine reacts to.
const (
	pgInsufficientPrivilege = "42501"
	pgUndefinedFunction     = "42883"
	pgUndefinedTable        = "42P01"
	pgAdminShutdown         = "57P01"
	pgCannotConnectNow      = "57P03"
	pgSerializationFailure  = "40001"
	pgDeadlockDetected      = "40P01"
)

// Classify maps store, network and engine errors onto a Category.
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidWinner), errors.Is(err, ErrConflict):
		return CategoryInvalid
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrPermissionDenied):
		return CategoryPermission
	case errors.Is(err, ErrTransientNetwork),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn):
		return CategoryTransient
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgInsufficientPrivilege:
			return CategoryPermission
		case pgErr.Code == pgUndefinedFunction, pgErr.Code == pgUndefinedTable:
			return CategoryNotFound
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == pgAdminShutdown,
			pgErr.Code == pgCannotConnectNow,
			pgErr.Code == pgSerializationFailure,
			pgErr.Code == pgDeadlockDetected:
			return CategoryTransient
		}
		return CategoryFatal
	}
	if pgconn.Timeout(err) {
		return CategoryTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryTransient
	}

	// Driver-agnostic shapes (PostgREST / sqlite messages).
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "not authorized"):
		return CategoryPermission
	case strings.Contains(msg, "does not exist"), strings.Contains(msg, "no such function"), strings.Contains(msg, "no such table"):
		return CategoryNotFound
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"), strings.Contains(msg, "broken pipe"):
		return CategoryTransient
	}
	return CategoryFatal
}

// IsNonFatal reports whether a best-effort background call may swallow err.
func IsNonFatal(err error) bool {
	switch Classify(err) {
	case CategoryNone, CategoryPermission, CategoryNotFound:
		return true
	}
	return false
}

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	return Classify(err) == CategoryTransient
}
