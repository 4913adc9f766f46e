package middleware

import (
	"net/http/httptest"
	"testing"

	"autolot-backend/internal/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appWithRole(role string, permission string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if role != "" {
			c.Locals("user", map[string]interface{}{
				"user_id": "00000000-0000-0000-0000-000000000001",
				"role":    role,
			})
		}
		return c.Next()
	})
	app.Get("/", AuthorizePermission(permission), func(c *fiber.Ctx) error {
		return c.SendStatus(204)
	})
	return app
}

func TestAuthorizePermission(t *testing.T) {
	cases := []struct {
		role, perm string
		want       int
	}{
		{"bidder", constants.PlaceBid, 204},
		{"admin", constants.PlaceBid, 403},
		{"business", constants.SelectWinner, 204},
		{"bidder", constants.ApproveLot, 403},
		{"superadmin", constants.DeleteLot, 204},
		{"", constants.ViewLots, 401},
		{"admin", "not_configured", 500},
	}
	for _, tc := range cases {
		resp, err := appWithRole(tc.role, tc.perm).Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, tc.want, resp.StatusCode, "%s/%s", tc.role, tc.perm)
	}
}

func TestActorID(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		assert.Nil(t, ActorID(c))
		c.Locals("user", map[string]interface{}{"user_id": "not-a-uuid"})
		assert.Nil(t, ActorID(c))
		c.Locals("user", map[string]interface{}{"user_id": "00000000-0000-0000-0000-000000000009"})
		require.NotNil(t, ActorID(c))
		assert.Equal(t, "00000000-0000-0000-0000-000000000009", ActorID(c).String())
		return c.SendStatus(204)
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}
