package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"kglogistics/services"
	"kglogistics/utils"
)

const (
	localUserID    = "userID"
	localClaims    = "claims"
	localAuthError = "authError"
)

// Identify resolves the caller from a bearer token or the access_token
// cookie. It never rejects a request; protected routes add RequireIdentity.
func Identify(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var token string
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				c.Locals(localAuthError, "Invalid authorization format")
				return c.Next()
			}
			token = tokenParts[1]
		} else {
			token = c.Cookies("access_token")
		}
		if token == "" {
			c.Locals(localAuthError, "Authorization required")
			return c.Next()
		}

		claims, err := utils.ParseJWTToken(token, secret)
		if err != nil {
			c.Locals(localAuthError, "Invalid or expired token")
			return c.Next()
		}

		c.Locals(localUserID, claims.Subject)
		c.Locals(localClaims, claims)
		return c.Next()
	}
}

// RequireIdentity rejects requests Identify could not resolve.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) != "" {
			return c.Next()
		}
		msg, _ := c.Locals(localAuthError).(string)
		if msg == "" {
			msg = "Authorization required"
		}
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, msg, nil)
	}
}

// RequireAccess admits only callers whose profile has access. It must run
// after RequireIdentity.
func RequireAccess(access *services.AccessService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authorization required", nil)
		}
		if !access.IsAuthorized(c.UserContext(), userID) {
			utils.LogEvent("auth", "access_denied", logrus.Fields{
				"user_id":  userID,
				"endpoint": c.Path(),
				"ip":       c.IP(),
			})
			return utils.ErrorResponse(c, fiber.StatusForbidden, "Unauthorized", nil)
		}
		return c.Next()
	}
}

// UserID returns the identified caller, or "".
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

// Claims returns the verified token claims, or nil.
func Claims(c *fiber.Ctx) *utils.Claims {
	claims, _ := c.Locals(localClaims).(*utils.Claims)
	return claims
}
