package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailTemplate is a reusable message whose subject and body may contain
// {{lead.*}} tokens.
type EmailTemplate struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null;uniqueIndex" json:"name"`
	Subject   string    `gorm:"not null" json:"subject"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (t *EmailTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// EmailHistory records a composed email. Subject and Body hold the text after
// token substitution. A row exists whether or not delivery succeeded.
type EmailHistory struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	LeadID     string    `gorm:"type:uuid;not null;index" json:"leadId"`
	TemplateID *string   `gorm:"type:uuid;index" json:"templateId"`
	SentTo     string    `gorm:"not null" json:"sentTo"`
	Subject    string    `gorm:"not null" json:"subject"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	SentBy     string    `gorm:"not null" json:"sentBy"`
	SentAt     time.Time `gorm:"not null;index" json:"sentAt"`

	// Relations
	Template *EmailTemplate `gorm:"foreignKey:TemplateID;constraint:OnDelete:SET NULL" json:"template,omitempty"`
}

func (EmailHistory) TableName() string {
	return "email_history"
}

func (e *EmailHistory) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}
	return nil
}
