package services

import (
	"strings"

	"kglogistics/models"
	"kglogistics/utils"
)

// TemplateTokens lists every placeholder Substitute understands.
var TemplateTokens = []string{
	"{{lead.name}}",
	"{{lead.firstName}}",
	"{{lead.lastName}}",
	"{{lead.email}}",
	"{{lead.phone}}",
	"{{lead.vehicle}}",
	"{{lead.year}}",
	"{{lead.make}}",
	"{{lead.model}}",
	"{{lead.pickupLocation}}",
	"{{lead.dropoffLocation}}",
	"{{lead.openQuote}}",
	"{{lead.enclosedQuote}}",
}

// Substitute replaces every {{lead.*}} token in text with the lead's values.
// Tokens match exactly and case-sensitively; unknown tokens are left alone.
// All tokens are replaced in one pass, so field values are never rescanned.
func Substitute(text string, lead *models.Lead) string {
	return leadReplacer(lead).Replace(text)
}

func leadReplacer(lead *models.Lead) *strings.Replacer {
	first := utils.Deref(lead.FirstName)
	last := utils.Deref(lead.LastName)

	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		name = "Valued Customer"
	}

	vehicle := "your vehicle"
	if mk, model := utils.Deref(lead.Make), utils.Deref(lead.Model); mk != "" && model != "" {
		vehicle = strings.TrimSpace(utils.Deref(lead.Year) + " " + mk + " " + model)
	}

	return strings.NewReplacer(
		"{{lead.name}}", name,
		"{{lead.firstName}}", first,
		"{{lead.lastName}}", last,
		"{{lead.email}}", utils.Deref(lead.Email),
		"{{lead.phone}}", utils.Deref(lead.Phone),
		"{{lead.vehicle}}", vehicle,
		"{{lead.year}}", utils.Deref(lead.Year),
		"{{lead.make}}", utils.Deref(lead.Make),
		"{{lead.model}}", utils.Deref(lead.Model),
		"{{lead.pickupLocation}}", location(lead.PickupAddress, lead.PickupCity, lead.PickupState, "pickup location"),
		"{{lead.dropoffLocation}}", location(lead.DropoffAddress, lead.DropoffCity, lead.DropoffState, "drop-off location"),
		"{{lead.openQuote}}", utils.DigitsOnly(utils.Deref(lead.OpenQuote)),
		"{{lead.enclosedQuote}}", utils.DigitsOnly(utils.Deref(lead.EnclosedQuote)),
	)
}

func location(address, city, state *string, fallback string) string {
	if utils.IsBlank(address) {
		return fallback
	}
	parts := []string{*address}
	for _, p := range []*string{city, state} {
		if !utils.IsBlank(p) {
			parts = append(parts, *p)
		}
	}
	return strings.Join(parts, ", ")
}
