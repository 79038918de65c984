package entities

import "time"

// Device status values.
const (
	DeviceStatusOnline  = "online"
	DeviceStatusOffline = "offline"
)

// Device is a telemetry source, auto-provisioned on first message. DeviceID
// is the external identifier carried in the topic; it is unique per tenant.
type Device struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	TenantID   string    `gorm:"size:36;not null;uniqueIndex:idx_devices_tenant_device,priority:1" json:"tenant_id"`
	DeviceID   string    `gorm:"size:255;not null;uniqueIndex:idx_devices_tenant_device,priority:2" json:"device_id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	DeviceType string    `gorm:"size:50;not null" json:"device_type"`
	Status     string    `gorm:"size:16;not null;default:online" json:"status"`
	LastSeenAt time.Time `gorm:"not null;index" json:"last_seen_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Device) TableName() string {
	return "devices"
}

// Offline reports whether the device has been silent longer than threshold.
func (d *Device) Offline(now time.Time, threshold time.Duration) bool {
	return now.Sub(d.LastSeenAt) > threshold
}
