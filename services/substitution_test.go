package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"kglogistics/models"
	"kglogistics/utils"
)

func TestSubstituteFallbacks(t *testing.T) {
	lead := &models.Lead{EnclosedQuote: utils.Pointer("$1,800")}
	got := Substitute("Hi {{lead.name}}, your enclosed quote is ${{lead.enclosedQuote}}", lead)
	assert.Equal(t, "Hi Valued Customer, your enclosed quote is $1800", got)
}

func TestSubstituteAllTokens(t *testing.T) {
	lead := miataLead()
	text := strings.Join(TemplateTokens, "|")

	got := Substitute(text, &lead)
	assert.Equal(t, strings.Join([]string{
		"Jane Doe",
		"Jane",
		"Doe",
		"jane@example.com",
		"5551234567",
		"2019 Mazda Miata",
		"2019",
		"Mazda",
		"Miata",
		"1 Main St, Austin, TX",
		"9 Elm St, Denver, CO",
		"1200",
		"1800",
	}, "|"), got)
}

func TestSubstituteEmptyLead(t *testing.T) {
	got := Substitute("{{lead.vehicle}} from {{lead.pickupLocation}} to {{lead.dropoffLocation}} [{{lead.email}}]", &models.Lead{})
	assert.Equal(t, "your vehicle from pickup location to drop-off location []", got)
}

func TestSubstituteLeavesUnknownTokens(t *testing.T) {
	lead := &models.Lead{FirstName: utils.Pointer("Ann")}
	got := Substitute("{{lead.firstName}} {{lead.FirstName}} {{lead.unknown}}", lead)
	assert.Equal(t, "Ann {{lead.FirstName}} {{lead.unknown}}", got)
}

func TestSubstituteDoesNotRescanValues(t *testing.T) {
	lead := &models.Lead{FirstName: utils.Pointer("{{lead.email}}"), Email: utils.Pointer("x@y.z")}
	got := Substitute("{{lead.firstName}}", lead)
	assert.Equal(t, "{{lead.email}}", got)
}

func TestSubstituteVehicleNeedsMakeAndModel(t *testing.T) {
	lead := &models.Lead{Year: utils.Pointer("2020"), Make: utils.Pointer("Ford")}
	assert.Equal(t, "your vehicle", Substitute("{{lead.vehicle}}", lead))

	lead.Year = nil
	lead.Model = utils.Pointer("F-150")
	assert.Equal(t, "Ford F-150", Substitute("{{lead.vehicle}}", lead))
}
