package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/sirupsen/logrus"

	"kglogistics/utils"
)

// PublicIntakeLimiter caps anonymous submissions per client IP. A nil storage
// falls back to the limiter's in-process store.
func PublicIntakeLimiter(max int, storage fiber.Storage) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "intake:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			utils.LogEvent("intake", "rate_limit_hit", logrus.Fields{
				"endpoint":   c.Path(),
				"ip":         c.IP(),
				"user_agent": c.Get(fiber.HeaderUserAgent),
			})
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success":     false,
				"error":       "Too many requests. Please wait a minute and try again.",
				"retry_after": "1 minute",
			})
		},
		Storage: storage,
	})
}
