package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LoadStatus string

const (
	LoadStatusUnlisted        LoadStatus = "UNLISTED"
	LoadStatusListed          LoadStatus = "LISTED"
	LoadStatusCarrierAssigned LoadStatus = "CARRIER_ASSIGNED"
	LoadStatusPickedUp        LoadStatus = "PICKED_UP"
	LoadStatusCompleted       LoadStatus = "COMPLETED"
)

var LoadStatuses = []LoadStatus{
	LoadStatusUnlisted,
	LoadStatusListed,
	LoadStatusCarrierAssigned,
	LoadStatusPickedUp,
	LoadStatusCompleted,
}

func (s LoadStatus) Valid() bool {
	for _, v := range LoadStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type LoadType string

const (
	LoadTypeOpen     LoadType = "OPEN"
	LoadTypeEnclosed LoadType = "ENCLOSED"
)

func (t LoadType) Valid() bool {
	return t == LoadTypeOpen || t == LoadTypeEnclosed
}

// Load is an active or completed shipment. It is only ever created by
// converting a lead, and leads.id -> loads.lead_id is one-to-one.
type Load struct {
	ID       string       `gorm:"type:uuid;primaryKey" json:"id"`
	LeadID   string       `gorm:"type:uuid;not null;uniqueIndex" json:"leadId"`
	Lead     *LeadSummary `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
	Status   LoadStatus   `gorm:"type:varchar(20);not null;default:'UNLISTED';index" json:"status"`
	LoadType LoadType     `gorm:"type:varchar(10);not null;index" json:"loadType"`

	// Vehicle, copied from the lead at conversion
	VIN   *string `gorm:"column:vin" json:"vin"`
	Year  *string `json:"year"`
	Make  *string `json:"make"`
	Model *string `json:"model"`

	PickupDate     *time.Time `json:"pickupDate"`
	DropoffDate    *time.Time `json:"dropoffDate"`
	PickupAddress  *string    `json:"pickupAddress"`
	PickupCity     *string    `json:"pickupCity"`
	PickupState    *string    `json:"pickupState"`
	PickupZip      *string    `json:"pickupZip"`
	DropoffAddress *string    `json:"dropoffAddress"`
	DropoffCity    *string    `json:"dropoffCity"`
	DropoffState   *string    `json:"dropoffState"`
	DropoffZip     *string    `json:"dropoffZip"`

	// On-site contacts
	PickupContactName   *string `json:"pickupContactName"`
	PickupContactPhone  *string `json:"pickupContactPhone"`
	DropoffContactName  *string `json:"dropoffContactName"`
	DropoffContactPhone *string `json:"dropoffContactPhone"`

	// Financials, digits only
	QuotedCost  *string `json:"quotedCost"`
	CarrierCost *string `json:"carrierCost"`
	CarrierName *string `json:"carrierName"`

	AssignedTo  *string    `json:"assignedTo"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Profit is derived on read and never stored.
	Profit *float64 `gorm:"-" json:"profit"`
}

func (l *Load) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = LoadStatusUnlisted
	}
	return nil
}

func (l *Load) AfterFind(tx *gorm.DB) error {
	l.Profit = l.ComputeProfit()
	return nil
}

// ComputeProfit returns quotedCost - carrierCost when both are present and
// numeric.
func (l *Load) ComputeProfit() *float64 {
	if l.QuotedCost == nil || l.CarrierCost == nil {
		return nil
	}
	quoted, err := strconv.ParseFloat(*l.QuotedCost, 64)
	if err != nil {
		return nil
	}
	carrier, err := strconv.ParseFloat(*l.CarrierCost, 64)
	if err != nil {
		return nil
	}
	profit := quoted - carrier
	return &profit
}
