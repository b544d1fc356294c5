package services

import (
	"context"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"kglogistics/events"
	"kglogistics/models"
	"kglogistics/utils"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// LeadInput is the create payload shared by public and manual intake. Empty
// strings are stored as null.
type LeadInput struct {
	FormType string `json:"formType" validate:"required,oneof=CONTACT SHIPPING_QUOTE"`
	Status   string `json:"status" validate:"omitempty,oneof=NEW CONTACTED QUOTED CONVERTED LOST"`

	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Email     string `json:"email"`
	Phone     string `json:"phone" validate:"omitempty,usphone"`

	VIN           string `json:"vin" validate:"omitempty,vin"`
	Year          string `json:"year"`
	Make          string `json:"make"`
	Model         string `json:"model"`
	TransportType string `json:"transportType"`

	PickupDate     string `json:"pickupDate"`
	DropoffDate    string `json:"dropoffDate"`
	PickupAddress  string `json:"pickupAddress"`
	PickupCity     string `json:"pickupCity"`
	PickupState    string `json:"pickupState"`
	PickupZip      string `json:"pickupZip"`
	DropoffAddress string `json:"dropoffAddress"`
	DropoffCity    string `json:"dropoffCity"`
	DropoffState   string `json:"dropoffState"`
	DropoffZip     string `json:"dropoffZip"`

	OpenQuote     string `json:"openQuote"`
	EnclosedQuote string `json:"enclosedQuote"`

	Message    string `json:"message"`
	Notes      string `json:"notes"`
	AssignedTo string `json:"assignedTo"`
}

// LeadFilter selects a page of leads.
type LeadFilter struct {
	Status   string
	FormType string
	Search   string
	Page     int
	Limit    int
}

// LeadPatch is a structured partial update. Absent fields are untouched,
// explicit nulls clear the column.
type LeadPatch struct {
	Status          utils.Optional[string] `json:"status"`
	FirstName       utils.Optional[string] `json:"firstName"`
	LastName        utils.Optional[string] `json:"lastName"`
	Email           utils.Optional[string] `json:"email"`
	Phone           utils.Optional[string] `json:"phone"`
	VIN             utils.Optional[string] `json:"vin"`
	Year            utils.Optional[string] `json:"year"`
	Make            utils.Optional[string] `json:"make"`
	Model           utils.Optional[string] `json:"model"`
	TransportType   utils.Optional[string] `json:"transportType"`
	PickupDate      utils.Optional[string] `json:"pickupDate"`
	DropoffDate     utils.Optional[string] `json:"dropoffDate"`
	PickupAddress   utils.Optional[string] `json:"pickupAddress"`
	PickupCity      utils.Optional[string] `json:"pickupCity"`
	PickupState     utils.Optional[string] `json:"pickupState"`
	PickupZip       utils.Optional[string] `json:"pickupZip"`
	DropoffAddress  utils.Optional[string] `json:"dropoffAddress"`
	DropoffCity     utils.Optional[string] `json:"dropoffCity"`
	DropoffState    utils.Optional[string] `json:"dropoffState"`
	DropoffZip      utils.Optional[string] `json:"dropoffZip"`
	OpenQuote       utils.Optional[string] `json:"openQuote"`
	EnclosedQuote   utils.Optional[string] `json:"enclosedQuote"`
	Message         utils.Optional[string] `json:"message"`
	Notes           utils.Optional[string] `json:"notes"`
	AssignedTo      utils.Optional[string] `json:"assignedTo"`
	LastContactedAt utils.Optional[string] `json:"lastContactedAt"`
}

type LeadService struct {
	DB     *gorm.DB
	Events events.Publisher
	Now    func() time.Time
	log    *logrus.Entry
}

func NewLeadService(db *gorm.DB, pub events.Publisher) *LeadService {
	if pub == nil {
		pub = events.Nop()
	}
	return &LeadService{
		DB:     db,
		Events: pub,
		Now:    time.Now,
		log:    utils.Logger("lead"),
	}
}

// CreateLead records a lead from the public intake endpoint.
func (s *LeadService) CreateLead(ctx context.Context, in LeadInput) (*models.Lead, error) {
	lead, err := buildLead(in)
	if err != nil {
		return nil, err
	}
	lead.AssignedTo = nil
	if err := s.insert(ctx, lead, SourcePublic); err != nil {
		return nil, err
	}
	return lead, nil
}

// CreateManualLead records a lead typed in by staff. Email is required and the
// lead is assigned to the caller unless the input names someone else.
func (s *LeadService) CreateManualLead(ctx context.Context, in LeadInput, staffID string) (*models.Lead, error) {
	if in.FormType == "" {
		in.FormType = string(models.FormTypeShippingQuote)
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, NewError(KindValidation, "email is required")
	}
	lead, err := buildLead(in)
	if err != nil {
		return nil, err
	}
	if lead.AssignedTo == nil && staffID != "" {
		lead.AssignedTo = &staffID
	}
	if err := s.insert(ctx, lead, SourceManual); err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *LeadService) insert(ctx context.Context, lead *models.Lead, source string) error {
	if err := s.DB.WithContext(ctx).Create(lead).Error; err != nil {
		return translateDBError(err, "lead")
	}
	leadsCreated.WithLabelValues(string(lead.FormType), source).Inc()
	s.log.WithFields(logrus.Fields{
		"lead_id":   lead.ID,
		"form_type": lead.FormType,
		"source":    source,
	}).Info("Lead created")
	s.Events.Publish(ctx, events.New(events.LeadCreated, lead.ID, leadKeys(lead)...))
	return nil
}

func buildLead(in LeadInput) (*models.Lead, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, NewError(KindValidation, err.Error())
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		if err := checkmail.ValidateFormat(email); err != nil {
			return nil, NewError(KindValidation, "email must be a valid email")
		}
	}
	pickupDate, err := parseDate("pickupDate", in.PickupDate)
	if err != nil {
		return nil, err
	}
	dropoffDate, err := parseDate("dropoffDate", in.DropoffDate)
	if err != nil {
		return nil, err
	}

	lead := &models.Lead{
		FormType: models.FormType(in.FormType),
		Status:   models.LeadStatus(in.Status),

		FirstName: trimmed(in.FirstName),
		LastName:  trimmed(in.LastName),
		Email:     trimmed(in.Email),
		Phone:     trimmed(in.Phone),

		VIN:           upperTrimmed(in.VIN),
		Year:          trimmed(in.Year),
		Make:          trimmed(in.Make),
		Model:         trimmed(in.Model),
		TransportType: trimmed(in.TransportType),

		PickupDate:     pickupDate,
		DropoffDate:    dropoffDate,
		PickupAddress:  trimmed(in.PickupAddress),
		PickupCity:     trimmed(in.PickupCity),
		PickupState:    trimmed(in.PickupState),
		PickupZip:      trimmed(in.PickupZip),
		DropoffAddress: trimmed(in.DropoffAddress),
		DropoffCity:    trimmed(in.DropoffCity),
		DropoffState:   trimmed(in.DropoffState),
		DropoffZip:     trimmed(in.DropoffZip),

		OpenQuote:     utils.SanitizeDigits(in.OpenQuote),
		EnclosedQuote: utils.SanitizeDigits(in.EnclosedQuote),

		Message:    utils.NullIfBlank(in.Message),
		Notes:      utils.NullIfBlank(in.Notes),
		AssignedTo: trimmed(in.AssignedTo),
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}
	return lead, nil
}

// ListLeads returns one page of leads, newest first, each carrying at most
// its most recent email.
func (s *LeadService) ListLeads(ctx context.Context, f LeadFilter) ([]models.Lead, utils.Pagination, error) {
	page, limit := normalizePage(f.Page, f.Limit)

	if f.Status != "" && !models.LeadStatus(f.Status).Valid() {
		return nil, utils.Pagination{}, NewError(KindValidation, "invalid status filter")
	}
	if f.FormType != "" && !models.FormType(f.FormType).Valid() {
		return nil, utils.Pagination{}, NewError(KindValidation, "invalid formType filter")
	}

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&models.Lead{})
		if f.Status != "" {
			db = db.Where("status = ?", f.Status)
		}
		if f.FormType != "" {
			db = db.Where("form_type = ?", f.FormType)
		}
		if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
			like := "%" + search + "%"
			db = db.Where(
				"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(phone) LIKE ?",
				like, like, like, like,
			)
		}
		return db
	}

	var (
		leads []models.Lead
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.DB.WithContext(gctx).Scopes(scope).
			Preload("Emails", func(db *gorm.DB) *gorm.DB {
				return db.Order("sent_at DESC")
			}).
			Order("created_at DESC").
			Offset((page - 1) * limit).
			Limit(limit).
			Find(&leads).Error
	})
	g.Go(func() error {
		return s.DB.WithContext(gctx).Scopes(scope).Count(&total).Error
	})
	if err := g.Wait(); err != nil {
		return nil, utils.Pagination{}, translateDBError(err, "leads")
	}

	for i := range leads {
		if len(leads[i].Emails) > 1 {
			leads[i].Emails = leads[i].Emails[:1]
		}
	}
	return leads, utils.NewPagination(page, limit, total), nil
}

// AllLeads loads every lead matching the filter, for dashboard aggregation.
func (s *LeadService) AllLeads(ctx context.Context, f LeadFilter) ([]models.Lead, error) {
	db := s.DB.WithContext(ctx).Model(&models.Lead{})
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.FormType != "" {
		db = db.Where("form_type = ?", f.FormType)
	}
	var leads []models.Lead
	if err := db.Order("created_at DESC").Find(&leads).Error; err != nil {
		return nil, translateDBError(err, "leads")
	}
	return leads, nil
}

// GetLead returns a lead with its full email history, newest first.
func (s *LeadService) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	return s.getLead(s.DB.WithContext(ctx), id)
}

func (s *LeadService) getLead(db *gorm.DB, id string) (*models.Lead, error) {
	if err := checkID(id, "lead"); err != nil {
		return nil, err
	}
	var lead models.Lead
	err := db.
		Preload("Emails", func(db *gorm.DB) *gorm.DB {
			return db.Order("sent_at DESC")
		}).
		Preload("Emails.Template").
		First(&lead, "id = ?", id).Error
	if err != nil {
		return nil, translateDBError(err, "lead")
	}
	return &lead, nil
}

// UpdateLeadStatus overwrites the status. Any transition is allowed.
func (s *LeadService) UpdateLeadStatus(ctx context.Context, id, status string) (*models.Lead, error) {
	st := models.LeadStatus(status)
	if !st.Valid() {
		return nil, NewError(KindValidation, "invalid status: "+status)
	}
	return s.update(ctx, id, func(*models.Lead) (map[string]interface{}, error) {
		return map[string]interface{}{"status": st}, nil
	})
}

// UpdateLeadQuotes sanitises and stores whichever quotes are given. A nil
// argument leaves that quote alone; an empty one clears it.
func (s *LeadService) UpdateLeadQuotes(ctx context.Context, id string, openQuote, enclosedQuote *string) (*models.Lead, error) {
	return s.update(ctx, id, func(*models.Lead) (map[string]interface{}, error) {
		updates := map[string]interface{}{}
		if openQuote != nil {
			updates["open_quote"] = utils.SanitizeDigits(*openQuote)
		}
		if enclosedQuote != nil {
			updates["enclosed_quote"] = utils.SanitizeDigits(*enclosedQuote)
		}
		return updates, nil
	})
}

func (s *LeadService) UpdateLeadNotes(ctx context.Context, id, notes string) (*models.Lead, error) {
	return s.update(ctx, id, func(*models.Lead) (map[string]interface{}, error) {
		return map[string]interface{}{"notes": utils.NullIfBlank(notes)}, nil
	})
}

// UpdateLead applies a partial update with the same sanitisation as intake.
func (s *LeadService) UpdateLead(ctx context.Context, id string, p LeadPatch) (*models.Lead, error) {
	return s.update(ctx, id, func(*models.Lead) (map[string]interface{}, error) {
		u := patchSet{}
		if p.Status.Set {
			if p.Status.Null || !models.LeadStatus(p.Status.Value).Valid() {
				return nil, NewError(KindValidation, "invalid status")
			}
			u["status"] = p.Status.Value
		}
		if p.Email.Set && !p.Email.Null && strings.TrimSpace(p.Email.Value) != "" {
			if err := checkmail.ValidateFormat(strings.TrimSpace(p.Email.Value)); err != nil {
				return nil, NewError(KindValidation, "email must be a valid email")
			}
		}
		if p.Phone.Set && !p.Phone.Null && strings.TrimSpace(p.Phone.Value) != "" && !utils.ValidPhone(p.Phone.Value) {
			return nil, NewError(KindValidation, "phone must be a 10-digit phone number")
		}

		u.text("first_name", p.FirstName)
		u.text("last_name", p.LastName)
		u.text("email", p.Email)
		u.text("phone", p.Phone)
		u.text("vin", p.VIN)
		u.text("year", p.Year)
		u.text("make", p.Make)
		u.text("model", p.Model)
		u.text("transport_type", p.TransportType)
		u.text("pickup_address", p.PickupAddress)
		u.text("pickup_city", p.PickupCity)
		u.text("pickup_state", p.PickupState)
		u.text("pickup_zip", p.PickupZip)
		u.text("dropoff_address", p.DropoffAddress)
		u.text("dropoff_city", p.DropoffCity)
		u.text("dropoff_state", p.DropoffState)
		u.text("dropoff_zip", p.DropoffZip)
		u.digits("open_quote", p.OpenQuote)
		u.digits("enclosed_quote", p.EnclosedQuote)
		u.text("message", p.Message)
		u.text("notes", p.Notes)
		u.text("assigned_to", p.AssignedTo)

		if err := u.date("pickup_date", "pickupDate", p.PickupDate); err != nil {
			return nil, err
		}
		if err := u.date("dropoff_date", "dropoffDate", p.DropoffDate); err != nil {
			return nil, err
		}
		if err := u.date("last_contacted_at", "lastContactedAt", p.LastContactedAt); err != nil {
			return nil, err
		}
		return u, nil
	})
}

// update runs build and the resulting column updates in one transaction, then
// publishes a lead.updated event.
func (s *LeadService) update(ctx context.Context, id string, build func(*models.Lead) (map[string]interface{}, error)) (*models.Lead, error) {
	if err := checkID(id, "lead"); err != nil {
		return nil, err
	}
	var updated *models.Lead
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lead models.Lead
		if err := tx.First(&lead, "id = ?", id).Error; err != nil {
			return translateDBError(err, "lead")
		}
		updates, err := build(&lead)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(&lead).Updates(updates).Error; err != nil {
				return translateDBError(err, "lead")
			}
		}
		updated, err = s.getLead(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Events.Publish(ctx, events.New(events.LeadUpdated, updated.ID, leadKeys(updated)...))
	return updated, nil
}

// DeleteLead removes a lead together with its email history and load.
func (s *LeadService) DeleteLead(ctx context.Context, id string) error {
	if err := checkID(id, "lead"); err != nil {
		return err
	}
	var lead models.Lead
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&lead, "id = ?", id).Error; err != nil {
			return translateDBError(err, "lead")
		}
		if err := tx.Where("lead_id = ?", id).Delete(&models.EmailHistory{}).Error; err != nil {
			return translateDBError(err, "email history")
		}
		if err := tx.Where("lead_id = ?", id).Delete(&models.Load{}).Error; err != nil {
			return translateDBError(err, "load")
		}
		if err := tx.Delete(&lead).Error; err != nil {
			return translateDBError(err, "lead")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithField("lead_id", id).Info("Lead deleted")
	s.Events.Publish(ctx, events.New(events.LeadDeleted, id, append(leadKeys(&lead), events.KeyLoads)...))
	return nil
}

func leadKeys(lead *models.Lead) []string {
	keys := []string{events.KeyLeads, events.KeyDashboard}
	if lead.FormType == models.FormTypeContact {
		keys = append(keys, events.KeyContacts)
	}
	return keys
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Blank input yields nil.
func parseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, NewError(KindValidation, field+" must be a date (YYYY-MM-DD)")
}

func trimmed(s string) *string {
	return utils.NullIfBlank(strings.TrimSpace(s))
}

func upperTrimmed(s string) *string {
	return trimmed(strings.ToUpper(s))
}

// patchSet collects column updates from Optional fields.
type patchSet map[string]interface{}

func (u patchSet) text(column string, o utils.Optional[string]) {
	if !o.Set {
		return
	}
	if o.Null {
		u[column] = nil
		return
	}
	u[column] = trimmed(o.Value)
}

func (u patchSet) digits(column string, o utils.Optional[string]) {
	if !o.Set {
		return
	}
	if o.Null {
		u[column] = nil
		return
	}
	u[column] = utils.SanitizeDigits(o.Value)
}

func (u patchSet) date(column, field string, o utils.Optional[string]) error {
	if !o.Set {
		return nil
	}
	if o.Null {
		u[column] = nil
		return nil
	}
	t, err := parseDate(field, o.Value)
	if err != nil {
		return err
	}
	u[column] = t
	return nil
}
