package middleware

import (
	"orus-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const userLocal = "user"

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetUser(c) == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) *SessionUser {
	if u, ok := c.Locals(userLocal).(*SessionUser); ok {
		return u
	}
	return nil
}

// GetUserID parses the session user's id. Returns uuid.Nil if absent or malformed.
func GetUserID(c *fiber.Ctx) uuid.UUID {
	u := GetUser(c)
	if u == nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(u.UserID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// GetUserRole returns the session user's role ("" if not logged in).
func GetUserRole(c *fiber.Ctx) string {
	u := GetUser(c)
	if u == nil {
		return ""
	}
	return u.Role
}
