package models

import "time"

// Profile is the authorization record for an identity-provider user. The ID
// is the provider's user id (the token subject).
type Profile struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	HasAccess bool      `gorm:"not null;default:false" json:"hasAccess"`
	Name      *string   `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// All returns every model in migration order.
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&Lead{},
		&Load{},
		&EmailTemplate{},
		&EmailHistory{},
	}
}
