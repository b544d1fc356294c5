package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"kglogistics/config"
	"kglogistics/services"
	"kglogistics/utils"
)

var kindStatus = map[services.Kind]int{
	services.KindValidation:      fiber.StatusBadRequest,
	services.KindUnauthenticated: fiber.StatusUnauthorized,
	services.KindUnauthorized:    fiber.StatusForbidden,
	services.KindNotFound:        fiber.StatusNotFound,
	services.KindConflict:        fiber.StatusConflict,
	services.KindUpstream:        fiber.StatusBadGateway,
}

// respondError writes the error envelope for a service error. Unexpected
// errors are reported and, outside production, echo their cause in details.
func respondError(c *fiber.Ctx, err error) error {
	kind := services.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		utils.LogError("api", "request_failed", err, logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		})
		var details error
		if !config.AppConfig.IsProduction() {
			details = err
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, services.MessageOf(err), details)
	}

	response := fiber.Map{
		"success": false,
		"error":   services.MessageOf(err),
	}
	if fields := services.FieldsOf(err); len(fields) > 0 {
		response["fields"] = fields
	}
	return c.Status(status).JSON(response)
}

func respondCreated(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(data))
}

func respondOK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(utils.SuccessResponse(data))
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return services.NewError(services.KindValidation, "Invalid request body")
	}
	return nil
}
