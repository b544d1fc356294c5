package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FormType string

const (
	FormTypeContact       FormType = "CONTACT"
	FormTypeShippingQuote FormType = "SHIPPING_QUOTE"
)

func (f FormType) Valid() bool {
	return f == FormTypeContact || f == FormTypeShippingQuote
}

// LeadStatus is deliberately unchecked: staff may move a lead to any status.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "NEW"
	LeadStatusContacted LeadStatus = "CONTACTED"
	LeadStatusQuoted    LeadStatus = "QUOTED"
	LeadStatusConverted LeadStatus = "CONVERTED"
	LeadStatusLost      LeadStatus = "LOST"
)

var LeadStatuses = []LeadStatus{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusQuoted,
	LeadStatusConverted,
	LeadStatusLost,
}

func (s LeadStatus) Valid() bool {
	for _, v := range LeadStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Lead represents a prospective customer interaction, either a contact
// message or a shipping quote request.
type Lead struct {
	ID       string     `gorm:"type:uuid;primaryKey" json:"id"`
	FormType FormType   `gorm:"type:varchar(20);not null;index" json:"formType"`
	Status   LeadStatus `gorm:"type:varchar(20);not null;default:'NEW';index" json:"status"`

	// Contact
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `gorm:"index" json:"email"`
	Phone     *string `json:"phone"`

	// Vehicle
	VIN           *string `gorm:"column:vin" json:"vin"`
	Year          *string `json:"year"`
	Make          *string `json:"make"`
	Model         *string `json:"model"`
	TransportType *string `json:"transportType"`

	// Logistics
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

	// Quotes, digits only
	OpenQuote     *string `json:"openQuote"`
	EnclosedQuote *string `json:"enclosedQuote"`

	Message *string `gorm:"type:text" json:"message"`
	Notes   *string `gorm:"type:text" json:"notes"`

	AssignedTo      *string    `json:"assignedTo"`
	LastContactedAt *time.Time `json:"lastContactedAt"`
	CreatedAt       time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	// Relations
	Emails []EmailHistory `gorm:"foreignKey:LeadID" json:"emails,omitempty"`
}

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
	return nil
}

// LeadSummary is the slice of a lead embedded in load responses.
type LeadSummary struct {
	ID        string  `json:"id"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
}

func (LeadSummary) TableName() string {
	return "leads"
}
