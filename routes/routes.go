package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	controller "kglogistics/controllers"
	"kglogistics/events"
	"kglogistics/middleware"
	"kglogistics/services"
	"kglogistics/utils"
)

// Dependencies are the process-wide collaborators the routes are built from.
type Dependencies struct {
	DB      *gorm.DB
	Events  events.Publisher
	Hub     *events.Hub
	Mailer  utils.Mailer
	VIN     services.VINDecoder
	Storage fiber.Storage

	JWTSecret             string
	NotificationEmail     string
	RateLimitPublicIntake int
	DraftTTL              time.Duration
}

func requestLogger() fiber.Handler {
	return logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	})
}

// SetupPublicRoutes registers the marketing-site intake endpoints.
func SetupPublicRoutes(api fiber.Router, deps Dependencies, leads *services.LeadService, access *services.AccessService) {
	leadController := controller.NewLeadController(leads)
	authController := controller.NewAuthController(access)
	intakeController := controller.NewIntakeController(services.NewIntakeService(
		services.NewDraftStore(deps.Storage, deps.DraftTTL),
		leads,
		deps.Mailer,
		deps.VIN,
		deps.NotificationEmail,
	))
	limit := middleware.PublicIntakeLimiter(deps.RateLimitPublicIntake, deps.Storage)

	api.Post("/leads", limit, leadController.CreateLead)
	api.Post("/contact", limit, intakeController.SubmitContact)
	api.Get("/vin/:vin", intakeController.DecodeVIN)

	quote := api.Group("/quote/drafts")
	quote.Post("/", limit, intakeController.CreateDraft)
	quote.Get("/:id", intakeController.GetDraft)
	quote.Put("/:id/contact", intakeController.SaveContact)
	quote.Put("/:id/vehicle", intakeController.SaveVehicle)
	quote.Put("/:id/address", intakeController.SaveAddress)
	quote.Post("/:id/submit", limit, intakeController.SubmitDraft)

	api.Post("/auth/check", authController.CheckAuthorization)
	api.Get("/user/profile", middleware.RequireIdentity(), authController.GetProfile)
}

// SetupAdminRoutes registers the staff endpoints, all behind identity and
// the access gate.
func SetupAdminRoutes(app *fiber.App, api fiber.Router, deps Dependencies, leads *services.LeadService, access *services.AccessService) {
	loads := services.NewLoadService(deps.DB, deps.Events)
	leadController := controller.NewLeadController(leads)
	loadController := controller.NewLoadController(loads)
	templateController := controller.NewTemplateController(services.NewTemplateService(deps.DB, deps.Events))
	emailController := controller.NewEmailController(services.NewEmailService(deps.DB, deps.Mailer, deps.Events))
	dashboardController := controller.NewDashboardController(leads, loads)

	gate := []fiber.Handler{middleware.RequireIdentity(), middleware.RequireAccess(access)}

	if deps.Hub != nil {
		eventsController := controller.NewEventsController(deps.Hub)
		app.Get("/ws/events", append(gate, eventsController.Upgrade, eventsController.Stream())...)
	}

	lead := api.Group("/leads", gate...)
	lead.Get("/", leadController.GetLeads)
	lead.Post("/manual", leadController.CreateManualLead)
	lead.Get("/:id", leadController.GetLead)
	lead.Patch("/:id", leadController.UpdateLead)
	lead.Delete("/:id", leadController.DeleteLead)
	lead.Patch("/:id/status", leadController.UpdateLeadStatus)
	lead.Patch("/:id/quotes", leadController.UpdateLeadQuotes)
	lead.Patch("/:id/notes", leadController.UpdateLeadNotes)

	load := api.Group("/loads", gate...)
	load.Get("/", loadController.GetLoads)
	load.Post("/", loadController.ConvertLead)
	load.Get("/stats", loadController.GetLoadStats)
	load.Get("/:id", loadController.GetLoad)
	load.Patch("/:id", loadController.UpdateLoad)
	load.Delete("/:id", loadController.DeleteLoad)
	load.Patch("/:id/status", loadController.UpdateLoadStatus)
	load.Patch("/:id/financials", loadController.UpdateLoadFinancials)
	load.Patch("/:id/contacts", loadController.UpdateLoadContacts)

	template := api.Group("/templates", gate...)
	template.Get("/", templateController.GetTemplates)
	template.Post("/", templateController.CreateTemplate)
	template.Get("/:id", templateController.GetTemplate)
	template.Patch("/:id", templateController.UpdateTemplate)
	template.Delete("/:id", templateController.DeleteTemplate)

	api.Post("/email/send", append(gate, emailController.SendEmail)...)
	api.Get("/dashboard/stats", append(gate, dashboardController.GetDashboardStats)...)
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	if deps.Events == nil {
		deps.Events = events.Nop()
	}

	app.Use(middleware.Identify(deps.JWTSecret))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	leads := services.NewLeadService(deps.DB, deps.Events)
	access := services.NewAccessService(deps.DB)

	api := app.Group("/api", requestLogger())
	SetupPublicRoutes(api, deps, leads, access)
	SetupAdminRoutes(app, api, deps, leads, access)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "The requested resource was not found",
		})
	})

	utils.Logger("routes").Info("Routes initialized successfully")
}
