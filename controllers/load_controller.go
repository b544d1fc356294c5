package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"kglogistics/middleware"
	"kglogistics/services"
	"kglogistics/utils"
)

type LoadController struct {
	Loads  *services.LoadService
	Now    func() time.Time
	Logger *logrus.Entry
}

func NewLoadController(loads *services.LoadService) *LoadController {
	return &LoadController{
		Loads:  loads,
		Now:    time.Now,
		Logger: utils.Logger("load"),
	}
}

// ConvertLead creates the load for a lead.
func (lc *LoadController) ConvertLead(c *fiber.Ctx) error {
	var input struct {
		LeadID   string `json:"leadId"`
		LoadType string `json:"loadType"`
	}
	if err := parseBody(c, &input); err != nil {
		return respondError(c, err)
	}
	load, err := lc.Loads.ConvertLeadToLoad(c.UserContext(), input.LeadID, input.LoadType, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, load)
}

func (lc *LoadController) filter(c *fiber.Ctx) services.LoadFilter {
	page, limit := utils.ParsePage(c, services.DefaultPageLimit, services.MaxPageLimit)
	return services.LoadFilter{
		Status:   c.Query("status"),
		LoadType: c.Query("loadType"),
		LeadID:   c.Query("leadId"),
		Search:   c.Query("search"),
		Page:     page,
		Limit:    limit,
	}
}

// GetLoads returns a filtered, paginated list of loads
func (lc *LoadController) GetLoads(c *fiber.Ctx) error {
	loads, pagination, err := lc.Loads.ListLoads(c.UserContext(), lc.filter(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(utils.PaginatedResponse{
		Success:    true,
		Data:       loads,
		Pagination: pagination,
	})
}

// GetLoadStats aggregates every load matching the list filters.
func (lc *LoadController) GetLoadStats(c *fiber.Ctx) error {
	loads, err := lc.Loads.AllLoads(c.UserContext(), lc.filter(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, services.ComputeLoadStats(loads, lc.Now()))
}

func (lc *LoadController) GetLoad(c *fiber.Ctx) error {
	load, err := lc.Loads.GetLoad(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, load)
}

func (lc *LoadController) UpdateLoad(c *fiber.Ctx) error {
	var patch services.LoadPatch
	if err := parseBody(c, &patch); err != nil {
		return respondError(c, err)
	}
	load, err := lc.Loads.UpdateLoad(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, load)
}

func (lc *LoadController) UpdateLoadStatus(c *fiber.Ctx) error {
	var input struct {
		Status string `json:"status" validate:"required"`
	}
	if err := parseBody(c, &input); err != nil {
		return respondError(c, err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return respondError(c, services.NewError(services.KindValidation, err.Error()))
	}
	load, err := lc.Loads.UpdateLoadStatus(c.UserContext(), c.Params("id"), input.Status)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, load)
}

func (lc *LoadController) UpdateLoadFinancials(c *fiber.Ctx) error {
	var input services.LoadFinancials
	if err := parseBody(c, &input); err != nil {
		return respondError(c, err)
	}
	load, err := lc.Loads.UpdateLoadFinancials(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, load)
}

func (lc *LoadController) UpdateLoadContacts(c *fiber.Ctx) error {
	var input services.LoadContacts
	if err := parseBody(c, &input); err != nil {
		return respondError(c, err)
	}
	load, err := lc.Loads.UpdateLoadContacts(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, load)
}

func (lc *LoadController) DeleteLoad(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := lc.Loads.DeleteLoad(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	lc.Logger.WithFields(logrus.Fields{
		"load_id": id,
		"user_id": middleware.UserID(c),
	}).Info("Load deleted by staff")
	return respondOK(c, fiber.Map{"id": id})
}
