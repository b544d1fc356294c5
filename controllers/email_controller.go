package controller

import (
	"github.com/gofiber/fiber/v2"

	"kglogistics/middleware"
	"kglogistics/services"
)

type EmailController struct {
	Emails *services.EmailService
}

func NewEmailController(emails *services.EmailService) *EmailController {
	return &EmailController{Emails: emails}
}

// SendEmail composes an email to a lead. The history row is written whatever
// the delivery outcome, so the response is 200 unless the request itself was
// invalid.
func (ec *EmailController) SendEmail(c *fiber.Ctx) error {
	var req services.SendRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	req.SentBy = middleware.UserID(c)
	if claims := middleware.Claims(c); claims != nil && claims.Email != "" {
		req.SentBy = claims.Email
	}

	result, err := ec.Emails.ComposeAndSend(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"message":      result.Message,
		"data":         result,
		"emailHistory": result.EmailHistory,
	})
}
