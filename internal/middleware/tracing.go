package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	traceHeader = "X-Trace-Id"
	traceKey    = "trace_id"
)

// Tracing tags every request with a trace ID, reusing the caller's
// X-Trace-Id header when one is supplied so client and server logs can be
// correlated.
func Tracing() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Get(traceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Locals(traceKey, traceID)
		c.Set(traceHeader, traceID)
		return c.Next()
	}
}

// GetTraceID returns the request's trace ID, or "" outside the middleware.
func GetTraceID(c *fiber.Ctx) string {
	id, _ := c.Locals(traceKey).(string)
	return id
}
