package middleware

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	sessionCookie = "orus.sid"
	sessionPrefix = "session:"
	sessionTTL    = 24 * time.Hour
)

// SessionUser is the session payload stored in Redis.
type SessionUser struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Session loads the session user from Redis into Locals for every request.
// A missing or expired session is not an error here; RequireAuth decides.
func Session(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies(sessionCookie)
		if sid == "" || rdb == nil {
			return c.Next()
		}
		raw, err := rdb.Get(c.UserContext(), sessionPrefix+sid).Result()
		if err != nil {
			if err != redis.Nil {
				log.Warn().Err(err).Msg("Session lookup failed")
			}
			return c.Next()
		}
		var user SessionUser
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			log.Warn().Err(err).Msg("Corrupt session payload")
			return c.Next()
		}
		c.Locals(userLocal, &user)
		return c.Next()
	}
}

// CreateSession stores the user in Redis and sets the session cookie.
func CreateSession(c *fiber.Ctx, rdb *redis.Client, user SessionUser, crossSiteDev bool) error {
	sid := uuid.New().String()
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := rdb.Set(c.UserContext(), sessionPrefix+sid, payload, sessionTTL).Err(); err != nil {
		return err
	}
	c.Cookie(sessionCookieFor(sid, crossSiteDev))
	return nil
}

// DestroySession deletes the session from Redis and clears the cookie.
func DestroySession(c *fiber.Ctx, rdb *redis.Client, crossSiteDev bool) {
	sid := c.Cookies(sessionCookie)
	if sid != "" && rdb != nil {
		if err := rdb.Del(c.UserContext(), sessionPrefix+sid).Err(); err != nil {
			log.Warn().Err(err).Msg("Session delete failed")
		}
	}
	cookie := sessionCookieFor("", crossSiteDev)
	cookie.Expires = time.Now().Add(-time.Hour)
	c.Cookie(cookie)
}

func sessionCookieFor(sid string, crossSiteDev bool) *fiber.Cookie {
	cookie := &fiber.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		HTTPOnly: true,
		Expires:  time.Now().Add(sessionTTL),
	}
	if crossSiteDev {
		// Cross-site local frontend in development needs SameSite=None.
		cookie.Secure = true
		cookie.SameSite = fiber.CookieSameSiteNoneMode
	} else {
		cookie.SameSite = fiber.CookieSameSiteLaxMode
	}
	return cookie
}
