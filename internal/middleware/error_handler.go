package middleware

import (
	"autolot-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the global error handler. Engine errors that escape a
// handler are mapped the same way handlers map them.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return response.FromError(c, err)
}
