package response

import (
	"errors"
	"reflect"

	"autolot-backend/internal/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// StatusFor maps an engine error onto an HTTP status code.
func StatusFor(err error) int {
	if _, ok := apperr.IsPartialCascade(err); ok {
		return fiber.StatusMultiStatus
	}
	switch {
	case errors.Is(err, apperr.ErrInvalidWinner):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, apperr.ErrPermissionDenied):
		return fiber.StatusForbidden
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	switch apperr.Classify(err) {
	case apperr.CategoryTransient:
		return fiber.StatusServiceUnavailable
	case apperr.CategoryPermission:
		return fiber.StatusForbidden
	case apperr.CategoryNotFound:
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

// FromError writes err in the standard error format. Internal errors are
// logged and reported without their message.
func FromError(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	if pce, ok := apperr.IsPartialCascade(err); ok {
		return Error(c, pce.Error(), code, partialDetails(pce))
	}
	switch code {
	case fiber.StatusInternalServerError:
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
		return Error(c, "Internal Server Error", code, nil)
	case fiber.StatusServiceUnavailable:
		log.Warn().Err(err).Str("path", c.Path()).Msg("Store unavailable")
		return Error(c, "Service temporarily unavailable, retry shortly", code, nil)
	}
	return Error(c, err.Error(), code, nil)
}

// SuccessOrPartial sends data as a success, or as 207 when err is a partial
// cascade failure. Any other error goes through FromError.
func SuccessOrPartial(c *fiber.Ctx, message string, data interface{}, err error) error {
	if err == nil {
		return Success(c, message, data, nil)
	}
	pce, ok := apperr.IsPartialCascade(err)
	if !ok || isNil(data) {
		return FromError(c, err)
	}
	return Partial(c, message+" with failed car updates; retry to converge", data, partialDetails(pce))
}

func partialDetails(pce *apperr.PartialCascadeError) map[string]interface{} {
	ids := make([]string, 0, len(pce.FailedCarIDs))
	for _, id := range pce.FailedCarIDs {
		ids = append(ids, id.String())
	}
	return map[string]interface{}{
		"lot_id":         pce.LotID.String(),
		"lot_written":    pce.LotWritten,
		"failed_car_ids": ids,
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
