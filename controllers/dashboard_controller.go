package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"kglogistics/models"
	"kglogistics/services"
)

type DashboardController struct {
	Leads *services.LeadService
	Loads *services.LoadService
	Now   func() time.Time
}

func NewDashboardController(leads *services.LeadService, loads *services.LoadService) *DashboardController {
	return &DashboardController{Leads: leads, Loads: loads, Now: time.Now}
}

// DashboardStats combines the lead and load summaries.
type DashboardStats struct {
	Leads services.LeadStats `json:"leads"`
	Loads services.LoadStats `json:"loads"`
}

func (dc *DashboardController) GetDashboardStats(c *fiber.Ctx) error {
	var (
		leads []models.Lead
		loads []models.Load
	)
	g, ctx := errgroup.WithContext(c.UserContext())
	g.Go(func() error {
		var err error
		leads, err = dc.Leads.AllLeads(ctx, services.LeadFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		loads, err = dc.Loads.AllLoads(ctx, services.LoadFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return respondError(c, err)
	}

	now := dc.Now()
	return respondOK(c, DashboardStats{
		Leads: services.ComputeLeadStats(leads, now),
		Loads: services.ComputeLoadStats(loads, now),
	})
}
