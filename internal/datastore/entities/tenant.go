package entities

import "time"

// Tenant is an isolated customer scope. Every device, telemetry event, and
// alert belongs to exactly one tenant, and the API key identifies it.
type Tenant struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	APIKey    string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (Tenant) TableName() string {
	return "tenants"
}
