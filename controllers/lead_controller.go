package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"kglogistics/middleware"
	"kglogistics/services"
	"kglogistics/utils"
)

type LeadController struct {
	Leads  *services.LeadService
	Logger *logrus.Entry
}

func NewLeadController(leads *services.LeadService) *LeadController {
	return &LeadController{
		Leads:  leads,
		Logger: utils.Logger("lead"),
	}
}

// CreateLead records a lead from the public site.
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	var input services.LeadInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, err)
	}
	lead, err := lc.Leads.CreateLead(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, lead)
}

// CreateManualLead records a lead entered by staff.
func (lc *LeadController) CreateManualLead(c *fiber.Ctx) error {
	var input services.LeadInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, err)
	}
	lead, err := lc.Leads.CreateManualLead(c.UserContext(), input, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, lead)
}

// GetLeads returns a filtered, paginated list of leads
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	page, limit := utils.ParsePage(c, services.DefaultPageLimit, services.MaxPageLimit)
	leads, pagination, err := lc.Leads.ListLeads(c.UserContext(), services.LeadFilter{
		Status:   c.Query("status"),
		FormType: c.Query("formType"),
		Search:   c.Query("search"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(utils.PaginatedResponse{
		Success:    true,
		Data:       leads,
		Pagination: pagination,
	})
}

func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	lead, err := lc.Leads.GetLead(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, lead)
}

func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	var patch services.LeadPatch
	if err := parseBody(c, &patch); err != nil {
		return respondError(c, err)
	}
	lead, err := lc.Leads.UpdateLead(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, lead)
}

func (lc *LeadController) UpdateLeadStatus(c *fiber.Ctx) error {
	var input struct {
		Status string `json:"status" validate:"required"`
	}
	if err := parseBody(c, &input); err != nil {
		return respondError(c, err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return respondError(c, services.NewError(services.KindValidation, err.Error()))
	}
	lead, err := lc.Leads.UpdateLeadStatus(c.UserContext(), c.Params("id"), input.Status)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, lead)
}

// UpdateLeadQuotes stores open and enclosed quotes, digits only.
func (lc *LeadController) UpdateLeadQuotes(c *fiber.Ctx) error {
	var input struct {
		OpenQuote     *string `json:"openQuote"`
		EnclosedQuote *string `json:"enclosedQuote"`
	}
	if err := parseBody(c, &input); err != nil {
		return respondError(c, err)
	}
	lead, err := lc.Leads.UpdateLeadQuotes(c.UserContext(), c.Params("id"), input.OpenQuote, input.EnclosedQuote)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, lead)
}

func (lc *LeadController) UpdateLeadNotes(c *fiber.Ctx) error {
	var input struct {
		Notes string `json:"notes"`
	}
	if err := parseBody(c, &input); err != nil {
		return respondError(c, err)
	}
	lead, err := lc.Leads.UpdateLeadNotes(c.UserContext(), c.Params("id"), input.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, lead)
}

// DeleteLead removes a lead along with its load and email history.
func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := lc.Leads.DeleteLead(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	lc.Logger.WithFields(logrus.Fields{
		"lead_id": id,
		"user_id": middleware.UserID(c),
	}).Info("Lead deleted by staff")
	return respondOK(c, fiber.Map{"id": id})
}
