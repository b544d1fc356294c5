package routes

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"kglogistics/middleware"
	"kglogistics/utils"
)

// NewApp builds the Fiber application with the process-wide middleware in
// place. Routes are added by SetupRoutes.
func NewApp(cors middleware.CORSConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "kglogistics",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		BodyLimit:    1 << 20,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cors))
	app.Use(middleware.Metrics())
	return app
}

// errorHandler renders errors that escaped a handler, such as routing
// failures and panics, in the standard error envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	if code >= fiber.StatusInternalServerError {
		utils.LogError("api", "unhandled_error", err, logrus.Fields{
			"path":   c.Path(),
			"method": c.Method(),
		})
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
