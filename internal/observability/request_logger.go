package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestUserKey is the fiber.Ctx locals key under which the auth layer
// stores the authenticated user id, when one is attached.
const RequestUserKey = "request_user_id"

// RequestLogger logs each request with method, path, status and duration,
// and feeds the request counters.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)
		status := c.Response().StatusCode()

		metrics.RecordRequest(c.Path(), c.Method(), status, duration)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		}
		if userID, ok := c.Locals(RequestUserKey).(string); ok && userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		logger.Info("request", fields...)
		return err
	}
}
