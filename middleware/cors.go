package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig defines the config for CORS middleware
type CORSConfig struct {
	// AllowedOrigins is the list of origins the browser may call from. Empty
	// allows any origin.
	AllowedOrigins []string

	// AllowCredentials lets the browser send the access_token cookie
	AllowCredentials bool

	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string

	// MaxAge is how long, in seconds, a preflight result may be cached
	MaxAge int
}

// DefaultCORSConfig returns a default CORS config
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:           3600,
	}
}

// CORS creates a new CORS middleware handler
func CORS(config ...CORSConfig) fiber.Handler {
	cfg := DefaultCORSConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	allowedOrigins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowedOrigins[strings.TrimRight(origin, "/")] = struct{}{}
	}
	allowedMethods := strings.Join(cfg.AllowedMethods, ",")
	allowedHeaders := strings.Join(cfg.AllowedHeaders, ",")
	exposedHeaders := strings.Join(cfg.ExposedHeaders, ",")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)

		allowed := false
		if len(allowedOrigins) == 0 {
			c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
			allowed = true
		} else if _, ok := allowedOrigins[origin]; ok {
			c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
			c.Vary(fiber.HeaderOrigin)
			allowed = true
		}

		if allowed && cfg.AllowCredentials && len(allowedOrigins) > 0 {
			c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		}
		if allowed && exposedHeaders != "" {
			c.Set(fiber.HeaderAccessControlExposeHeaders, exposedHeaders)
		}

		if c.Method() == fiber.MethodOptions {
			if allowed {
				c.Set(fiber.HeaderAccessControlAllowMethods, allowedMethods)
				c.Set(fiber.HeaderAccessControlAllowHeaders, allowedHeaders)
				c.Set(fiber.HeaderAccessControlMaxAge, maxAge)
			}
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
