package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	healthLastRequestKey = "health:global:last_request"
	healthLastErrorKey   = "health:global:last_error"
	healthRequestsKey    = "health:global:requests"
	healthErrorsKey      = "health:global:errors"
)

// HealthMarker records per-request traffic markers in Redis for the health report.
// Best effort: Redis being down never fails the request.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if rdb == nil {
			return err
		}
		ctx := c.UserContext()
		now := time.Now().UTC().Format(time.RFC3339)
		pipe := rdb.Pipeline()
		pipe.Set(ctx, healthLastRequestKey, now, 0)
		pipe.Incr(ctx, healthRequestsKey)
		if err != nil || c.Response().StatusCode() >= 500 {
			pipe.Set(ctx, healthLastErrorKey, now, 0)
			pipe.Incr(ctx, healthErrorsKey)
		}
		if _, perr := pipe.Exec(ctx); perr != nil {
			log.Warn().Err(perr).Msg("Health marker write failed")
		}
		return err
	}
}
