package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"kglogistics/events"
	"kglogistics/models"
	"kglogistics/utils"
)

// LoadFilter selects a page of loads.
type LoadFilter struct {
	Status   string
	LoadType string
	LeadID   string
	Search   string
	Page     int
	Limit    int
}

// LoadContacts carries the on-site contacts. Nil fields are left alone.
type LoadContacts struct {
	PickupContactName   *string `json:"pickupContactName"`
	PickupContactPhone  *string `json:"pickupContactPhone"`
	DropoffContactName  *string `json:"dropoffContactName"`
	DropoffContactPhone *string `json:"dropoffContactPhone"`
}

// LoadFinancials carries the money fields. Nil fields are left alone.
type LoadFinancials struct {
	QuotedCost  *string `json:"quotedCost"`
	CarrierCost *string `json:"carrierCost"`
	CarrierName *string `json:"carrierName"`
}

// LoadPatch is a structured partial update of a load.
type LoadPatch struct {
	Status              utils.Optional[string] `json:"status"`
	LoadType            utils.Optional[string] `json:"loadType"`
	PickupContactName   utils.Optional[string] `json:"pickupContactName"`
	PickupContactPhone  utils.Optional[string] `json:"pickupContactPhone"`
	DropoffContactName  utils.Optional[string] `json:"dropoffContactName"`
	DropoffContactPhone utils.Optional[string] `json:"dropoffContactPhone"`
	QuotedCost          utils.Optional[string] `json:"quotedCost"`
	CarrierCost         utils.Optional[string] `json:"carrierCost"`
	CarrierName         utils.Optional[string] `json:"carrierName"`
	AssignedTo          utils.Optional[string] `json:"assignedTo"`
	VIN                 utils.Optional[string] `json:"vin"`
	Year                utils.Optional[string] `json:"year"`
	Make                utils.Optional[string] `json:"make"`
	Model               utils.Optional[string] `json:"model"`
	PickupDate          utils.Optional[string] `json:"pickupDate"`
	DropoffDate         utils.Optional[string] `json:"dropoffDate"`
	PickupAddress       utils.Optional[string] `json:"pickupAddress"`
	PickupCity          utils.Optional[string] `json:"pickupCity"`
	PickupState         utils.Optional[string] `json:"pickupState"`
	PickupZip           utils.Optional[string] `json:"pickupZip"`
	DropoffAddress      utils.Optional[string] `json:"dropoffAddress"`
	DropoffCity         utils.Optional[string] `json:"dropoffCity"`
	DropoffState        utils.Optional[string] `json:"dropoffState"`
	DropoffZip          utils.Optional[string] `json:"dropoffZip"`
}

type LoadService struct {
	DB     *gorm.DB
	Events events.Publisher
	Now    func() time.Time
	log    *logrus.Entry
}

func NewLoadService(db *gorm.DB, pub events.Publisher) *LoadService {
	if pub == nil {
		pub = events.Nop()
	}
	return &LoadService{
		DB:     db,
		Events: pub,
		Now:    time.Now,
		log:    utils.Logger("load"),
	}
}

// ConvertLeadToLoad creates the lead's single load, copying its vehicle and
// route, and marks the lead CONVERTED. The unique index on loads.lead_id
// settles concurrent conversions.
func (s *LoadService) ConvertLeadToLoad(ctx context.Context, leadID, loadType, staffID string) (*models.Load, error) {
	lt := models.LoadType(loadType)
	if !lt.Valid() {
		return nil, NewError(KindValidation, "loadType must be either OPEN or ENCLOSED")
	}
	if strings.TrimSpace(leadID) == "" {
		return nil, NewError(KindValidation, "leadId is required")
	}
	if err := checkID(leadID, "lead"); err != nil {
		return nil, err
	}

	var load models.Load
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lead models.Lead
		if err := tx.First(&lead, "id = ?", leadID).Error; err != nil {
			return translateDBError(err, "lead")
		}

		var existing int64
		if err := tx.Model(&models.Load{}).Where("lead_id = ?", leadID).Count(&existing).Error; err != nil {
			return translateDBError(err, "load")
		}
		if existing > 0 {
			return NewError(KindConflict, "Load already exists for this lead")
		}

		load = models.Load{
			LeadID:   lead.ID,
			LoadType: lt,
			Status:   models.LoadStatusUnlisted,

			VIN:   lead.VIN,
			Year:  lead.Year,
			Make:  lead.Make,
			Model: lead.Model,

			PickupDate:     lead.PickupDate,
			DropoffDate:    lead.DropoffDate,
			PickupAddress:  lead.PickupAddress,
			PickupCity:     lead.PickupCity,
			PickupState:    lead.PickupState,
			PickupZip:      lead.PickupZip,
			DropoffAddress: lead.DropoffAddress,
			DropoffCity:    lead.DropoffCity,
			DropoffState:   lead.DropoffState,
			DropoffZip:     lead.DropoffZip,
		}
		if staffID != "" {
			load.AssignedTo = &staffID
		}
		if err := insertLoad(tx, &load); err != nil {
			return err
		}

		if err := tx.Model(&lead).Update("status", models.LeadStatusConverted).Error; err != nil {
			return translateDBError(err, "lead")
		}

		return tx.Preload("Lead").First(&load, "id = ?", load.ID).Error
	})
	if err != nil {
		return nil, err
	}

	loadsConverted.WithLabelValues(string(lt)).Inc()
	s.log.WithFields(logrus.Fields{
		"lead_id":   leadID,
		"load_id":   load.ID,
		"load_type": lt,
	}).Info("Lead converted to load")
	s.Events.Publish(ctx, events.New(events.LoadCreated, load.ID, events.KeyLoads, events.KeyLeads, events.KeyDashboard))
	return &load, nil
}

func (s *LoadService) loadQuery(db *gorm.DB, f LoadFilter) *gorm.DB {
	db = db.Model(&models.Load{})
	if f.Status != "" {
		db = db.Where("loads.status = ?", f.Status)
	}
	if f.LoadType != "" {
		db = db.Where("loads.load_type = ?", f.LoadType)
	}
	if f.LeadID != "" {
		db = db.Where("loads.lead_id = ?", f.LeadID)
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		like := "%" + search + "%"
		db = db.Joins("LEFT JOIN leads ON leads.id = loads.lead_id").Where(
			"LOWER(loads.make) LIKE ? OR LOWER(loads.model) LIKE ? OR LOWER(loads.year) LIKE ? OR "+
				"LOWER(loads.carrier_name) LIKE ? OR LOWER(loads.pickup_contact_name) LIKE ? OR "+
				"LOWER(loads.dropoff_contact_name) LIKE ? OR LOWER(leads.first_name) LIKE ? OR "+
				"LOWER(leads.last_name) LIKE ? OR LOWER(leads.email) LIKE ?",
			like, like, like, like, like, like, like, like, like,
		)
	}
	return db
}

func (s *LoadService) checkFilter(f LoadFilter) error {
	if f.Status != "" && !models.LoadStatus(f.Status).Valid() {
		return NewError(KindValidation, "invalid status filter")
	}
	if f.LoadType != "" && !models.LoadType(f.LoadType).Valid() {
		return NewError(KindValidation, "invalid loadType filter")
	}
	return nil
}

// ListLoads returns one page of loads, newest first, with their lead summary.
func (s *LoadService) ListLoads(ctx context.Context, f LoadFilter) ([]models.Load, utils.Pagination, error) {
	if err := s.checkFilter(f); err != nil {
		return nil, utils.Pagination{}, err
	}
	page, limit := normalizePage(f.Page, f.Limit)

	var (
		loads []models.Load
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.loadQuery(s.DB.WithContext(gctx), f).
			Preload("Lead").
			Order("loads.created_at DESC").
			Offset((page - 1) * limit).
			Limit(limit).
			Find(&loads).Error
	})
	g.Go(func() error {
		return s.loadQuery(s.DB.WithContext(gctx), f).Count(&total).Error
	})
	if err := g.Wait(); err != nil {
		return nil, utils.Pagination{}, translateDBError(err, "loads")
	}
	return loads, utils.NewPagination(page, limit, total), nil
}

// AllLoads loads every load matching the filter, for dashboard aggregation.
func (s *LoadService) AllLoads(ctx context.Context, f LoadFilter) ([]models.Load, error) {
	if err := s.checkFilter(f); err != nil {
		return nil, err
	}
	var loads []models.Load
	if err := s.loadQuery(s.DB.WithContext(ctx), f).Order("loads.created_at DESC").Find(&loads).Error; err != nil {
		return nil, translateDBError(err, "loads")
	}
	return loads, nil
}

func (s *LoadService) GetLoad(ctx context.Context, id string) (*models.Load, error) {
	return s.getLoad(s.DB.WithContext(ctx), id)
}

func (s *LoadService) getLoad(db *gorm.DB, id string) (*models.Load, error) {
	if err := checkID(id, "load"); err != nil {
		return nil, err
	}
	var load models.Load
	if err := db.Preload("Lead").First(&load, "id = ?", id).Error; err != nil {
		return nil, translateDBError(err, "load")
	}
	return &load, nil
}

// UpdateLoadStatus overwrites the status. Moving to COMPLETED stamps
// completedAt the first time only.
func (s *LoadService) UpdateLoadStatus(ctx context.Context, id, status string) (*models.Load, error) {
	st := models.LoadStatus(status)
	if !st.Valid() {
		return nil, NewError(KindValidation, "invalid status: "+status)
	}
	return s.update(ctx, id, func(load *models.Load) (map[string]interface{}, error) {
		updates := map[string]interface{}{"status": st}
		s.stampCompleted(load, st, updates)
		return updates, nil
	})
}

func (s *LoadService) stampCompleted(load *models.Load, st models.LoadStatus, updates map[string]interface{}) {
	if st == models.LoadStatusCompleted && load.CompletedAt == nil {
		updates["completed_at"] = s.Now().UTC()
	}
}

// UpdateLoadFinancials stores sanitised costs and the carrier name.
func (s *LoadService) UpdateLoadFinancials(ctx context.Context, id string, in LoadFinancials) (*models.Load, error) {
	return s.update(ctx, id, func(*models.Load) (map[string]interface{}, error) {
		updates := map[string]interface{}{}
		if in.QuotedCost != nil {
			updates["quoted_cost"] = utils.SanitizeDigits(*in.QuotedCost)
		}
		if in.CarrierCost != nil {
			updates["carrier_cost"] = utils.SanitizeDigits(*in.CarrierCost)
		}
		if in.CarrierName != nil {
			updates["carrier_name"] = trimmed(*in.CarrierName)
		}
		return updates, nil
	})
}

// UpdateLoadContacts stores contact names and digits-only phones.
func (s *LoadService) UpdateLoadContacts(ctx context.Context, id string, in LoadContacts) (*models.Load, error) {
	return s.update(ctx, id, func(*models.Load) (map[string]interface{}, error) {
		updates := map[string]interface{}{}
		if in.PickupContactName != nil {
			updates["pickup_contact_name"] = trimmed(*in.PickupContactName)
		}
		if in.PickupContactPhone != nil {
			updates["pickup_contact_phone"] = utils.SanitizeDigits(*in.PickupContactPhone)
		}
		if in.DropoffContactName != nil {
			updates["dropoff_contact_name"] = trimmed(*in.DropoffContactName)
		}
		if in.DropoffContactPhone != nil {
			updates["dropoff_contact_phone"] = utils.SanitizeDigits(*in.DropoffContactPhone)
		}
		return updates, nil
	})
}

// UpdateLoad applies a partial update covering status, type, contacts,
// financials and vehicle or route corrections.
// insertLoad creates a load. A second load for the same lead is rejected by
// the unique index on lead_id, which catches conversions that raced past the
// existence check.
func insertLoad(tx *gorm.DB, load *models.Load) error {
	if err := tx.Create(load).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return NewError(KindConflict, "Load already exists for this lead")
		}
		return translateDBError(err, "load")
	}
	return nil
}

func (s *LoadService) UpdateLoad(ctx context.Context, id string, p LoadPatch) (*models.Load, error) {
	return s.update(ctx, id, func(load *models.Load) (map[string]interface{}, error) {
		u := patchSet{}
		if p.Status.Set {
			st := models.LoadStatus(p.Status.Value)
			if p.Status.Null || !st.Valid() {
				return nil, NewError(KindValidation, "invalid status")
			}
			u["status"] = st
			s.stampCompleted(load, st, u)
		}
		if p.LoadType.Set {
			lt := models.LoadType(p.LoadType.Value)
			if p.LoadType.Null || !lt.Valid() {
				return nil, NewError(KindValidation, "loadType must be either OPEN or ENCLOSED")
			}
			u["load_type"] = lt
		}

		u.text("pickup_contact_name", p.PickupContactName)
		u.digits("pickup_contact_phone", p.PickupContactPhone)
		u.text("dropoff_contact_name", p.DropoffContactName)
		u.digits("dropoff_contact_phone", p.DropoffContactPhone)
		u.digits("quoted_cost", p.QuotedCost)
		u.digits("carrier_cost", p.CarrierCost)
		u.text("carrier_name", p.CarrierName)
		u.text("assigned_to", p.AssignedTo)
		u.text("vin", p.VIN)
		u.text("year", p.Year)
		u.text("make", p.Make)
		u.text("model", p.Model)
		u.text("pickup_address", p.PickupAddress)
		u.text("pickup_city", p.PickupCity)
		u.text("pickup_state", p.PickupState)
		u.text("pickup_zip", p.PickupZip)
		u.text("dropoff_address", p.DropoffAddress)
		u.text("dropoff_city", p.DropoffCity)
		u.text("dropoff_state", p.DropoffState)
		u.text("dropoff_zip", p.DropoffZip)

		if err := u.date("pickup_date", "pickupDate", p.PickupDate); err != nil {
			return nil, err
		}
		if err := u.date("dropoff_date", "dropoffDate", p.DropoffDate); err != nil {
			return nil, err
		}
		return u, nil
	})
}

func (s *LoadService) update(ctx context.Context, id string, build func(*models.Load) (map[string]interface{}, error)) (*models.Load, error) {
	if err := checkID(id, "load"); err != nil {
		return nil, err
	}
	var updated *models.Load
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var load models.Load
		if err := tx.First(&load, "id = ?", id).Error; err != nil {
			return translateDBError(err, "load")
		}
		updates, err := build(&load)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(&load).Updates(updates).Error; err != nil {
				return translateDBError(err, "load")
			}
		}
		updated, err = s.getLoad(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Events.Publish(ctx, events.New(events.LoadUpdated, updated.ID, events.KeyLoads, events.KeyDashboard))
	return updated, nil
}

// DeleteLoad removes a load. Its lead keeps the CONVERTED status.
func (s *LoadService) DeleteLoad(ctx context.Context, id string) error {
	if err := checkID(id, "load"); err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Load{})
	if res.Error != nil {
		return translateDBError(res.Error, "load")
	}
	if res.RowsAffected == 0 {
		return NewError(KindNotFound, "load not found")
	}
	s.log.WithField("load_id", id).Info("Load deleted")
	s.Events.Publish(ctx, events.New(events.LoadDeleted, id, events.KeyLoads, events.KeyDashboard))
	return nil
}
