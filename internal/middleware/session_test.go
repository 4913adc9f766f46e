package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func setupSessionApp(t *testing.T, secret string) (*fiber.App, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	app := fiber.New()
	app.Use(Session(SessionConfig{Secret: secret}, rdb))
	app.Get("/me", RequireAuth(), func(c *fiber.Ctx) error {
		id, _ := CurrentUserID(c)
		return c.JSON(fiber.Map{"user_id": id.String(), "role": CurrentRole(c)})
	})
	return app, rdb
}

func storeSession(t *testing.T, rdb *redis.Client, sid string, user map[string]interface{}) {
	b, err := json.Marshal(map[string]interface{}{"user": user})
	require.NoError(t, err)
	require.NoError(t, rdb.Set(context.Background(), SessionRedisPrefix+sid, b, 0).Err())
}

func TestSession_SignedCookie(t *testing.T) {
	app, rdb := setupSessionApp(t, testSecret)
	uid := "00000000-0000-0000-0000-000000000001"
	storeSession(t, rdb, "abc", map[string]interface{}{"user_id": uid, "role": "bidder"})

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Cookie", SessionCookieName+"=s:abc."+signSessionID("abc", testSecret))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, uid, out["user_id"])
	assert.Equal(t, "bidder", out["role"])
}

func TestSession_BadSignatureIsAnonymous(t *testing.T) {
	app, rdb := setupSessionApp(t, testSecret)
	storeSession(t, rdb, "abc", map[string]interface{}{"user_id": "00000000-0000-0000-0000-000000000001", "role": "admin"})

	for _, cookie := range []string{"s:abc.forged", "s:abc", "abc"} {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Cookie", SessionCookieName+"="+cookie)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode, cookie)
	}
}

func TestSession_NoSecretAcceptsPlainID(t *testing.T) {
	app, rdb := setupSessionApp(t, "")
	storeSession(t, rdb, "plain", map[string]interface{}{"user_id": "00000000-0000-0000-0000-000000000002", "role": "admin"})

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Cookie", SessionCookieName+"=plain")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestRequireAuth_NoCookie(t *testing.T) {
	app, _ := setupSessionApp(t, testSecret)
	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}
