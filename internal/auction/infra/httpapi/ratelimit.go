package httpapi

import (
	"github.com/cristianortiz/carauction/internal/auction/application"
	"github.com/cristianortiz/carauction/internal/shared/ratelimit"
	"github.com/gofiber/fiber/v2"
)

// RateLimit returns a middleware that answers 429 once a client IP exceeds
// its budget in l. A nil l passes everything through.
func RateLimit(l *ratelimit.Limiter) fiber.Handler {
	if l == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return func(c *fiber.Ctx) error {
		if l.Allow(c.IP()) {
			return c.Next()
		}
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusTooManyRequests).JSON(errorResponse{
			Code:  application.CodeRateLimited,
			Error: "too many requests",
		})
	}
}
