package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"autolot-backend/internal/domain"
	"autolot-backend/internal/middleware"
	"autolot-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Handlers serves the session endpoints. Production sessions are created by
// the external login service; DevLogin exists for local and test setups only.
type Handlers struct {
	DB          *gorm.DB
	Rdb         *redis.Client
	Session     middleware.SessionConfig
	DevPassword string
}

// DevLogin POST /api/v1/auth/dev-login
func (h *Handlers) DevLogin(c *fiber.Ctx) error {
	if h.DevPassword == "" {
		return response.Error(c, "Not found", fiber.StatusNotFound, nil)
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.DevPassword)) != 1 {
		return response.Error(c, "Invalid credentials", fiber.StatusUnauthorized, nil)
	}

	var user domain.User
	if err := h.DB.WithContext(c.UserContext()).Where("LOWER(email) = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Error(c, "Invalid credentials", fiber.StatusUnauthorized, nil)
		}
		return response.FromError(c, err)
	}

	su := middleware.SessionUser{
		UserID:   user.UserID.String(),
		Fullname: user.Fullname,
		Email:    user.Email,
		Role:     user.Role,
	}
	middleware.StartSession(c, h.Session, su)
	log.Info().Str("user_id", su.UserID).Str("role", su.Role).Msg("Dev login")
	return response.Success(c, "Login successful", fiber.Map{"user": su}, nil)
}

// Me GET /api/v1/auth/me
func (h *Handlers) Me(c *fiber.Ctx) error {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Error(c, "Not authenticated", fiber.StatusUnauthorized, nil)
	}
	out := fiber.Map{"user": middleware.GetUser(c), "approved": false}
	var user domain.User
	err := h.DB.WithContext(c.UserContext()).Where("user_id = ?", id).First(&user).Error
	switch {
	case err == nil:
		out["approved"] = user.Approved
		out["profile"] = user
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return response.FromError(c, err)
	}
	return response.Success(c, "Authenticated", out, nil)
}

// Logout DELETE /api/v1/auth/logout
func (h *Handlers) Logout(c *fiber.Ctx) error {
	if err := middleware.EndSession(c, h.Session, h.Rdb); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Logged out successfully", nil, nil)
}
