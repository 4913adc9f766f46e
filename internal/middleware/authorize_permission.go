package middleware

import (
	"autolot-backend/internal/constants"
	"autolot-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// AuthorizePermission admits the request only if the session role holds permission.
// A permission missing from PermissionRoles is a wiring bug and answers 500.
func AuthorizePermission(permission string) fiber.Handler {
	if len(constants.PermissionRoles[permission]) == 0 {
		log.Error().Str("permission", permission).Msg("Route guarded by unknown permission")
	}
	return func(c *fiber.Ctx) error {
		if GetUser(c) == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		if len(constants.PermissionRoles[permission]) == 0 {
			return response.Error(c, "Permission configuration error", fiber.StatusInternalServerError, nil)
		}
		role := CurrentRole(c)
		if !constants.AllowedRole(permission, role) {
			log.Debug().Str("trace_id", GetTraceID(c)).Str("permission", permission).Str("role", role).Msg("Permission denied")
			return response.Error(c, "User is Forbidden from performing this action", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}
