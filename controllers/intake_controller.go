package controller

import (
	"github.com/gofiber/fiber/v2"

	"kglogistics/services"
)

// IntakeController serves the public quote wizard, contact form and VIN
// lookup.
type IntakeController struct {
	Intake *services.IntakeService
}

func NewIntakeController(intake *services.IntakeService) *IntakeController {
	return &IntakeController{Intake: intake}
}

func (ic *IntakeController) CreateDraft(c *fiber.Ctx) error {
	draft, err := ic.Intake.CreateDraft(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, draft)
}

func (ic *IntakeController) GetDraft(c *fiber.Ctx) error {
	draft, err := ic.Intake.GetDraft(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, draft)
}

func (ic *IntakeController) SaveContact(c *fiber.Ctx) error {
	var step services.ContactStep
	if err := parseBody(c, &step); err != nil {
		return respondError(c, err)
	}
	draft, err := ic.Intake.SaveContact(c.UserContext(), c.Params("id"), step)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, draft)
}

func (ic *IntakeController) SaveVehicle(c *fiber.Ctx) error {
	var step services.VehicleStep
	if err := parseBody(c, &step); err != nil {
		return respondError(c, err)
	}
	draft, err := ic.Intake.SaveVehicle(c.UserContext(), c.Params("id"), step)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, draft)
}

func (ic *IntakeController) SaveAddress(c *fiber.Ctx) error {
	var step services.AddressStep
	if err := parseBody(c, &step); err != nil {
		return respondError(c, err)
	}
	draft, err := ic.Intake.SaveAddress(c.UserContext(), c.Params("id"), step)
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, draft)
}

func (ic *IntakeController) SubmitDraft(c *fiber.Ctx) error {
	result, err := ic.Intake.SubmitDraft(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, result)
}

func (ic *IntakeController) SubmitContact(c *fiber.Ctx) error {
	var form services.ContactForm
	if err := parseBody(c, &form); err != nil {
		return respondError(c, err)
	}
	result, err := ic.Intake.SubmitContact(c.UserContext(), form)
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, result)
}

func (ic *IntakeController) DecodeVIN(c *fiber.Ctx) error {
	vehicle, err := ic.Intake.DecodeVIN(c.UserContext(), c.Params("vin"))
	if err != nil {
		return respondError(c, err)
	}
	return respondOK(c, vehicle)
}
