package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionConfig for the Redis-backed operator/bidder session.
type SessionConfig struct {
	// Secret verifies signed "s:id.signature" cookies. Unsigned cookies are
	// accepted only when Secret is empty.
	Secret string
	// Secure marks the cookie HTTPS-only; CrossSite sets SameSite=None for
	// frontends served from another site during development.
	Secure    bool
	CrossSite bool
}

const (
	SessionCookieName  = "autolot.sid"
	SessionRedisPrefix = "session:"
	sessionMaxAge      = 24 * time.Hour
)

// SessionUser is the shape stored in session under "user". Sessions are
// written by the external login service; this API only reads them.
type SessionUser struct {
	UserID   string `json:"user_id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// NewRedis connects to the Redis URL shared by sessions, health counters and
// the change feed.
func NewRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

// Session returns a Fiber middleware that loads and saves the session in Redis.
func Session(cfg SessionConfig, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := parseSessionCookie(c.Cookies(SessionCookieName), cfg.Secret)
		key := SessionRedisPrefix + sessionID

		var data map[string]interface{}
		if sessionID != "" {
			b, err := rdb.Get(c.UserContext(), key).Bytes()
			if err == nil {
				_ = json.Unmarshal(b, &data)
			}
		}
		if data == nil {
			data = make(map[string]interface{})
		}

		c.Locals("session_data", data)
		if u, ok := data["user"]; ok {
			c.Locals("user", u)
		} else {
			c.Locals("user", nil)
		}
		c.Locals("session_id", sessionID)

		err := c.Next()
		if err != nil {
			return err
		}

		// Sliding expiry: every authenticated request re-saves the session.
		if sid, _ := c.Locals("session_id").(string); sid != "" {
			updated, _ := c.Locals("session_data").(map[string]interface{})
			if updated != nil {
				b, _ := json.Marshal(updated)
				rdb.Set(context.Background(), SessionRedisPrefix+sid, b, sessionMaxAge)
			}
		}
		return nil
	}
}

// parseSessionCookie returns the session id of a cookie value, or "" when the
// signature does not match secret.
func parseSessionCookie(raw, secret string) string {
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	if !strings.HasPrefix(raw, "s:") {
		if secret != "" {
			return ""
		}
		return raw
	}
	id, sig, signed := strings.Cut(raw[2:], ".")
	if secret == "" {
		return id
	}
	if !signed || !hmac.Equal([]byte(sig), []byte(signSessionID(id, secret))) {
		return ""
	}
	return id
}

// signSessionID produces the cookie signature: unpadded base64 HMAC-SHA256 of the id.
func signSessionID(id, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	return base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
}

// GetSessionID returns the current session ID from context.
func GetSessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals("session_id").(string)
	return sid
}

// SetSessionUser puts user into the session; used by tests and the dev login.
func SetSessionUser(c *fiber.Ctx, user SessionUser) {
	data, _ := c.Locals("session_data").(map[string]interface{})
	if data == nil {
		data = make(map[string]interface{})
	}
	data["user"] = map[string]interface{}{
		"user_id":  user.UserID,
		"fullname": user.Fullname,
		"email":    user.Email,
		"role":     user.Role,
	}
	c.Locals("session_data", data)
	c.Locals("user", data["user"])
}

// StartSession issues a new session for user and sets the cookie. The
// Session middleware persists it after the handler returns.
func StartSession(c *fiber.Ctx, cfg SessionConfig, user SessionUser) {
	sid := uuid.NewString()
	c.Locals("session_id", sid)
	c.Locals("session_data", map[string]interface{}{})
	SetSessionUser(c, user)

	value := sid
	if cfg.Secret != "" {
		value = "s:" + sid + "." + signSessionID(sid, cfg.Secret)
	}
	c.Cookie(sessionCookie(cfg, url.PathEscape(value), int(sessionMaxAge/time.Second)))
}

// EndSession deletes the session from Redis and expires the cookie.
func EndSession(c *fiber.Ctx, cfg SessionConfig, rdb *redis.Client) error {
	if sid := GetSessionID(c); sid != "" && rdb != nil {
		if err := rdb.Del(c.UserContext(), SessionRedisPrefix+sid).Err(); err != nil {
			return err
		}
	}
	c.Locals("session_id", "")
	c.Locals("session_data", nil)
	c.Locals("user", nil)
	c.Cookie(sessionCookie(cfg, "", -1))
	return nil
}

func sessionCookie(cfg SessionConfig, value string, maxAge int) *fiber.Cookie {
	sameSite := fiber.CookieSameSiteLaxMode
	if cfg.CrossSite {
		sameSite = fiber.CookieSameSiteNoneMode
	}
	return &fiber.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HTTPOnly: true,
		Secure:   cfg.Secure || cfg.CrossSite,
		SameSite: sameSite,
	}
}
