package controller

import (
	"github.com/gofiber/fiber/v2"

	"kglogistics/middleware"
	"kglogistics/services"
)

type AuthController struct {
	Access *services.AccessService
}

func NewAuthController(access *services.AccessService) *AuthController {
	return &AuthController{Access: access}
}

// CheckAuthorization reports whether the caller may use the admin pages. An
// anonymous caller is simply not authorized.
func (ac *AuthController) CheckAuthorization(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return c.JSON(fiber.Map{"authorized": false})
	}
	return c.JSON(fiber.Map{"authorized": ac.Access.IsAuthorized(c.UserContext(), userID)})
}

// GetProfile returns the display name for userId, defaulting to the caller.
func (ac *AuthController) GetProfile(c *fiber.Ctx) error {
	userID := c.Query("userId", middleware.UserID(c))
	name, err := ac.Access.ProfileName(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"name": name})
}
