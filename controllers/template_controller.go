package controller

import (
	"github.com/gofiber/fiber/v2"

	"kglogistics/services"
)

type TemplateController struct {
	Templates *services.TemplateService
}

func NewTemplateController(templates *services.TemplateService) *TemplateController {
	return &TemplateController{Templates: templates}
}

func (tc *TemplateController) GetTemplates(c *fiber.Ctx) error {
	templates, err := tc.Templates.ListTemplates(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, templates)
}

func (tc *TemplateController) GetTemplate(c *fiber.Ctx) error {
	t, err := tc.Templates.GetTemplate(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, t)
}

func (tc *TemplateController) CreateTemplate(c *fiber.Ctx) error {
	var input services.TemplateInput
	if err := parseBody(c, &input); err != nil {
		return respondError(c, err)
	}
	t, err := tc.Templates.CreateTemplate(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, t)
}

func (tc *TemplateController) UpdateTemplate(c *fiber.Ctx) error {
	var patch services.TemplatePatch
	if err := parseBody(c, &patch); err != nil {
		return respondError(c, err)
	}
	t, err := tc.Templates.UpdateTemplate(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, t)
}

func (tc *TemplateController) DeleteTemplate(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := tc.Templates.DeleteTemplate(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return respondOK(c, fiber.Map{"id": id})
}
