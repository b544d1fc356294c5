package services

import (
	"context"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/sirupsen/logrus"

	"kglogistics/models"
	"kglogistics/utils"
)

var transportTypes = map[string]bool{"open": true, "enclosed": true, "both": true}

// IntakeResult reports both halves of a public submission: the notification
// email and the lead row. A delivered submission whose lead failed to record
// is still a success for the visitor.
type IntakeResult struct {
	Delivered bool    `json:"delivered"`
	Recorded  bool    `json:"recorded"`
	LeadID    *string `json:"leadId,omitempty"`
	Message   string  `json:"message"`
}

// ContactForm is the public contact form payload.
type ContactForm struct {
	Name        string `json:"contactName"`
	Email       string `json:"contactEmail"`
	Phone       string `json:"contactTel"`
	ContactType string `json:"contactType"`
	Message     string `json:"contactMessage"`
}

// IntakeService runs the public quote wizard and contact form.
type IntakeService struct {
	Drafts            *DraftStore
	Leads             *LeadService
	Mailer            utils.Mailer
	VIN               VINDecoder
	NotificationEmail string
	Now               func() time.Time
	log               *logrus.Entry
}

func NewIntakeService(drafts *DraftStore, leads *LeadService, mailer utils.Mailer, vin VINDecoder, notificationEmail string) *IntakeService {
	return &IntakeService{
		Drafts:            drafts,
		Leads:             leads,
		Mailer:            mailer,
		VIN:               vin,
		NotificationEmail: notificationEmail,
		Now:               time.Now,
		log:               utils.Logger("intake"),
	}
}

func (s *IntakeService) CreateDraft(ctx context.Context) (*QuoteDraft, error) {
	return s.Drafts.New(s.Now())
}

func (s *IntakeService) GetDraft(ctx context.Context, id string) (*QuoteDraft, error) {
	return s.Drafts.Get(id)
}

// SaveContact validates and stores the contact step. An invalid step leaves
// the stored draft unchanged.
func (s *IntakeService) SaveContact(ctx context.Context, id string, step ContactStep) (*QuoteDraft, error) {
	draft, err := s.Drafts.Get(id)
	if err != nil {
		return nil, err
	}
	step = normalizeContact(step)
	if err := validateContact(step); err != nil {
		return nil, err
	}
	draft.Contact = &step
	return s.save(draft)
}

// SaveVehicle validates and stores the vehicle step. A well-formed VIN is
// decoded and, on success, its year, make and model replace whatever the
// visitor typed. A failed lookup falls back to manual entry.
func (s *IntakeService) SaveVehicle(ctx context.Context, id string, step VehicleStep) (*QuoteDraft, error) {
	draft, err := s.Drafts.Get(id)
	if err != nil {
		return nil, err
	}
	step, err = s.resolveVehicle(ctx, step)
	if err != nil {
		return nil, err
	}
	draft.Vehicle = &step
	return s.save(draft)
}

// SaveAddress validates and stores the route and dates.
func (s *IntakeService) SaveAddress(ctx context.Context, id string, step AddressStep) (*QuoteDraft, error) {
	draft, err := s.Drafts.Get(id)
	if err != nil {
		return nil, err
	}
	step = normalizeAddress(step)
	if err := validateAddress(step, s.Now()); err != nil {
		return nil, err
	}
	draft.Address = &step
	return s.save(draft)
}

func (s *IntakeService) save(draft *QuoteDraft) (*QuoteDraft, error) {
	draft.UpdatedAt = s.Now().UTC()
	if err := s.Drafts.Save(draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// SubmitDraft re-validates every step, emails the quote request to the
// notification inbox and then records the lead. No lead is created when the
// email cannot be delivered.
func (s *IntakeService) SubmitDraft(ctx context.Context, id string) (*IntakeResult, error) {
	draft, err := s.Drafts.Get(id)
	if err != nil {
		return nil, err
	}

	missing := map[string]string{}
	if draft.Contact == nil {
		missing["contact"] = "contact information is incomplete"
	}
	if draft.Vehicle == nil {
		missing["vehicle"] = "vehicle information is incomplete"
	}
	if draft.Address == nil {
		missing["address"] = "address information is incomplete"
	}
	if len(missing) > 0 {
		return nil, NewFieldError("Please complete every step before submitting", missing)
	}
	if err := validateContact(*draft.Contact); err != nil {
		return nil, err
	}
	if err := validateVehicle(*draft.Vehicle); err != nil {
		return nil, err
	}
	if err := validateAddress(*draft.Address, s.Now()); err != nil {
		return nil, err
	}

	lead, err := draftToLead(draft)
	if err != nil {
		return nil, err
	}

	html, err := utils.RenderEmailTemplate("quote_request", quoteRequestData(draft))
	if err != nil {
		return nil, WrapError(KindUnexpected, "failed to render notification", err)
	}
	if err := s.notify(ctx, utils.Message{
		ReplyTo: draft.Contact.Email,
		Subject: "New shipping quote request from " + draft.Contact.FirstName + " " + draft.Contact.LastName,
		HTML:    html,
	}); err != nil {
		return nil, err
	}

	result := s.record(ctx, lead, SourceWizard)
	if err := s.Drafts.Delete(draft.ID); err != nil {
		s.log.WithError(err).WithField("draft_id", draft.ID).Warn("failed to delete submitted draft")
	}
	result.Message = "Your request was submitted successfully! We will reach out with a quote within 24 hours."
	return result, nil
}

// SubmitContact emails a contact message and records it as a CONTACT lead.
func (s *IntakeService) SubmitContact(ctx context.Context, form ContactForm) (*IntakeResult, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	form.Phone = strings.TrimSpace(form.Phone)
	form.ContactType = strings.ToLower(strings.TrimSpace(form.ContactType))
	form.Message = strings.TrimSpace(form.Message)

	fields := map[string]string{}
	if form.Name == "" {
		fields["contactName"] = "Name is required"
	}
	if form.Message == "" {
		fields["contactMessage"] = "Message is required"
	}
	switch form.ContactType {
	case "email":
		if form.Email == "" || checkmail.ValidateFormat(form.Email) != nil {
			fields["contactEmail"] = "A valid email is required"
		}
	case "text":
		if !utils.ValidPhone(form.Phone) {
			fields["contactTel"] = "A 10-digit phone number is required"
		}
	default:
		fields["contactType"] = "contactType must be email or text"
	}
	if form.Email != "" && fields["contactEmail"] == "" && checkmail.ValidateFormat(form.Email) != nil {
		fields["contactEmail"] = "Email must be valid"
	}
	if len(fields) > 0 {
		return nil, NewFieldError("Please correct the highlighted fields", fields)
	}

	html, err := utils.RenderEmailTemplate("contact_message", form)
	if err != nil {
		return nil, WrapError(KindUnexpected, "failed to render notification", err)
	}
	msg := utils.Message{
		Subject: "New contact message from " + form.Name,
		HTML:    html,
	}
	if form.Email != "" {
		msg.ReplyTo = form.Email
	}
	if err := s.notify(ctx, msg); err != nil {
		return nil, err
	}

	first, last := splitName(form.Name)
	lead := &models.Lead{
		FormType:  models.FormTypeContact,
		Status:    models.LeadStatusNew,
		FirstName: utils.NullIfBlank(first),
		LastName:  utils.NullIfBlank(last),
		Email:     utils.NullIfBlank(form.Email),
		Phone:     utils.NullIfBlank(form.Phone),
		Message:   utils.NullIfBlank(form.Message),
	}
	result := s.record(ctx, lead, SourceContact)
	result.Message = "Thanks for reaching out! We will get back to you shortly."
	return result, nil
}

// DecodeVIN looks a VIN up for the wizard's live preview.
func (s *IntakeService) DecodeVIN(ctx context.Context, vin string) (*DecodedVehicle, error) {
	if s.VIN == nil {
		return nil, NewError(KindUpstream, "VIN lookup is unavailable. Please enter vehicle details manually.")
	}
	return s.VIN.Decode(ctx, vin)
}

func (s *IntakeService) notify(ctx context.Context, msg utils.Message) error {
	if s.Mailer == nil || !s.Mailer.Configured() || s.NotificationEmail == "" {
		utils.LogError("intake", "notification_unconfigured", utils.ErrMailerNotConfigured, nil)
		return NewError(KindUpstream, "Email service configuration is missing. Please contact support.")
	}
	msg.To = []string{s.NotificationEmail}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		utils.LogError("intake", "notification_failed", err, logrus.Fields{
			"subject": msg.Subject,
		})
		return WrapError(KindUpstream, "Failed to send your request. Please try again or contact us directly.", err)
	}
	return nil
}

// record persists the lead after a delivered notification. Failure is logged
// and reported through Recorded, never returned.
func (s *IntakeService) record(ctx context.Context, lead *models.Lead, source string) *IntakeResult {
	result := &IntakeResult{Delivered: true}
	if s.Leads == nil {
		return result
	}
	if err := s.Leads.insert(ctx, lead, source); err != nil {
		utils.LogError("intake", "lead_not_recorded", err, logrus.Fields{
			"source":    source,
			"form_type": lead.FormType,
		})
		return result
	}
	result.Recorded = true
	result.LeadID = &lead.ID
	return result
}

func (s *IntakeService) resolveVehicle(ctx context.Context, step VehicleStep) (VehicleStep, error) {
	step.VIN = strings.ToUpper(strings.TrimSpace(step.VIN))
	step.Year = strings.TrimSpace(step.Year)
	step.Make = strings.TrimSpace(step.Make)
	step.Model = strings.TrimSpace(step.Model)
	step.TransportType = strings.ToLower(strings.TrimSpace(step.TransportType))
	if step.TransportType == "" {
		step.TransportType = "both"
	}
	step.VINDecoded = false

	if step.VIN != "" {
		if err := vinFieldError(step.VIN); err != nil {
			return step, err
		}
		if s.VIN != nil {
			decoded, err := s.VIN.Decode(ctx, step.VIN)
			if err != nil {
				s.log.WithError(err).WithField("vin", step.VIN).Info("VIN decode failed, falling back to manual entry")
			} else {
				step.Year, step.Make, step.Model = decoded.Year, decoded.Make, decoded.Model
				step.VINDecoded = true
			}
		}
	}
	return step, validateVehicle(step)
}

func vinFieldError(vin string) error {
	if len(vin) != 17 {
		return NewFieldError("Invalid VIN", map[string]string{"vin": "VIN must be exactly 17 characters"})
	}
	if !utils.ValidVIN(vin) {
		return NewFieldError("Invalid VIN", map[string]string{"vin": "Invalid VIN format. VINs cannot contain I, O, Q or symbols."})
	}
	return nil
}

func normalizeContact(c ContactStep) ContactStep {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	return c
}

func validateContact(c ContactStep) error {
	fields := map[string]string{}
	if c.FirstName == "" {
		fields["firstName"] = "First name is required"
	}
	if c.LastName == "" {
		fields["lastName"] = "Last name is required"
	}
	if c.Email == "" {
		fields["email"] = "Email is required"
	} else if checkmail.ValidateFormat(c.Email) != nil {
		fields["email"] = "Please enter a valid email"
	}
	if c.Phone == "" {
		fields["phone"] = "Phone number is required"
	} else if !utils.ValidPhone(c.Phone) {
		fields["phone"] = "Please enter a valid 10-digit phone number"
	}
	if len(fields) > 0 {
		return NewFieldError("Please correct the contact information", fields)
	}
	return nil
}

func validateVehicle(v VehicleStep) error {
	fields := map[string]string{}
	if v.VIN != "" {
		if err := vinFieldError(v.VIN); err != nil {
			return err
		}
	}
	if v.Year == "" {
		fields["year"] = "Year is required"
	}
	if v.Make == "" {
		fields["make"] = "Make is required"
	}
	if v.Model == "" {
		fields["model"] = "Model is required"
	}
	if v.TransportType != "" && !transportTypes[v.TransportType] {
		fields["transportType"] = "Transport type must be open, enclosed or both"
	}
	if len(fields) > 0 {
		return NewFieldError("Please correct the vehicle information", fields)
	}
	return nil
}

func normalizeAddress(a AddressStep) AddressStep {
	trim := func(p ...*string) {
		for _, s := range p {
			*s = strings.TrimSpace(*s)
		}
	}
	trim(&a.PickupDate, &a.DropoffDate,
		&a.PickupAddress, &a.PickupCity, &a.PickupState, &a.PickupZip,
		&a.DropoffAddress, &a.DropoffCity, &a.DropoffState, &a.DropoffZip,
		&a.PickupFormatted, &a.DropoffFormatted)

	if a.PickupAddress == "" && a.PickupFormatted != "" {
		if p, ok := utils.ParseAddress(a.PickupFormatted); ok {
			a.PickupAddress, a.PickupCity, a.PickupState, a.PickupZip = p.Street, p.City, p.State, p.Zip
		}
	}
	if a.DropoffAddress == "" && a.DropoffFormatted != "" {
		if p, ok := utils.ParseAddress(a.DropoffFormatted); ok {
			a.DropoffAddress, a.DropoffCity, a.DropoffState, a.DropoffZip = p.Street, p.City, p.State, p.Zip
		}
	}
	a.PickupState = strings.ToUpper(a.PickupState)
	a.DropoffState = strings.ToUpper(a.DropoffState)
	return a
}

// validateAddress enforces a complete pickup address, a pickup date at least
// one day out and, when a dropoff date is given, one at least two days out
// plus a complete dropoff address.
func validateAddress(a AddressStep, now time.Time) error {
	fields := map[string]string{}
	today := truncateDay(now)

	if a.PickupDate == "" {
		fields["pickupDate"] = "Pickup date is required"
	} else if d, err := parseDate("pickupDate", a.PickupDate); err != nil {
		fields["pickupDate"] = "Pickup date must be a date (YYYY-MM-DD)"
	} else if truncateDay(*d).Before(today.AddDate(0, 0, 1)) {
		fields["pickupDate"] = "Pickup date must be at least 1 day from today"
	}

	requirePart := func(field, value, label string) {
		if value == "" {
			fields[field] = label + " is required"
		}
	}
	requirePart("pickupAddress", a.PickupAddress, "Pickup address")
	requirePart("pickupCity", a.PickupCity, "Pickup city")
	requirePart("pickupState", a.PickupState, "Pickup state")
	requirePart("pickupZip", a.PickupZip, "Pickup zip code")

	if a.DropoffDate != "" {
		if d, err := parseDate("dropoffDate", a.DropoffDate); err != nil {
			fields["dropoffDate"] = "Dropoff date must be a date (YYYY-MM-DD)"
		} else if truncateDay(*d).Before(today.AddDate(0, 0, 2)) {
			fields["dropoffDate"] = "Dropoff date must be at least 2 days from today"
		}
	}
	if a.DropoffDate != "" {
		requirePart("dropoffAddress", a.DropoffAddress, "Dropoff address")
		requirePart("dropoffCity", a.DropoffCity, "Dropoff city")
		requirePart("dropoffState", a.DropoffState, "Dropoff state")
		requirePart("dropoffZip", a.DropoffZip, "Dropoff zip code")
	}

	if len(fields) > 0 {
		return NewFieldError("Please correct the address information", fields)
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func draftToLead(d *QuoteDraft) (*models.Lead, error) {
	pickup, err := parseDate("pickupDate", d.Address.PickupDate)
	if err != nil {
		return nil, err
	}
	dropoff, err := parseDate("dropoffDate", d.Address.DropoffDate)
	if err != nil {
		return nil, err
	}
	return &models.Lead{
		FormType: models.FormTypeShippingQuote,
		Status:   models.LeadStatusNew,

		FirstName: utils.NullIfBlank(d.Contact.FirstName),
		LastName:  utils.NullIfBlank(d.Contact.LastName),
		Email:     utils.NullIfBlank(d.Contact.Email),
		Phone:     utils.NullIfBlank(d.Contact.Phone),

		VIN:           utils.NullIfBlank(d.Vehicle.VIN),
		Year:          utils.NullIfBlank(d.Vehicle.Year),
		Make:          utils.NullIfBlank(d.Vehicle.Make),
		Model:         utils.NullIfBlank(d.Vehicle.Model),
		TransportType: utils.NullIfBlank(d.Vehicle.TransportType),

		PickupDate:     pickup,
		DropoffDate:    dropoff,
		PickupAddress:  utils.NullIfBlank(d.Address.PickupAddress),
		PickupCity:     utils.NullIfBlank(d.Address.PickupCity),
		PickupState:    utils.NullIfBlank(d.Address.PickupState),
		PickupZip:      utils.NullIfBlank(d.Address.PickupZip),
		DropoffAddress: utils.NullIfBlank(d.Address.DropoffAddress),
		DropoffCity:    utils.NullIfBlank(d.Address.DropoffCity),
		DropoffState:   utils.NullIfBlank(d.Address.DropoffState),
		DropoffZip:     utils.NullIfBlank(d.Address.DropoffZip),
	}, nil
}

func quoteRequestData(d *QuoteDraft) map[string]string {
	return map[string]string{
		"FirstName":      d.Contact.FirstName,
		"LastName":       d.Contact.LastName,
		"Email":          d.Contact.Email,
		"Phone":          d.Contact.Phone,
		"Year":           d.Vehicle.Year,
		"Make":           d.Vehicle.Make,
		"Model":          d.Vehicle.Model,
		"VIN":            d.Vehicle.VIN,
		"TransportType":  d.Vehicle.TransportType,
		"PickupDate":     d.Address.PickupDate,
		"PickupAddress":  d.Address.PickupAddress,
		"PickupCity":     d.Address.PickupCity,
		"PickupState":    d.Address.PickupState,
		"PickupZip":      d.Address.PickupZip,
		"DropoffDate":    d.Address.DropoffDate,
		"DropoffAddress": d.Address.DropoffAddress,
		"DropoffCity":    d.Address.DropoffCity,
		"DropoffState":   d.Address.DropoffState,
		"DropoffZip":     d.Address.DropoffZip,
	}
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
