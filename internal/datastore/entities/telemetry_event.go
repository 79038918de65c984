package entities

import "time"

// TelemetryEvent is the audit record of one accepted telemetry message.
// Payload holds the metric map as JSON.
type TelemetryEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   string    `gorm:"size:36;not null;index" json:"tenant_id"`
	DeviceID   string    `gorm:"size:255;not null;index" json:"device_id"`
	EventType  string    `gorm:"size:50;not null" json:"event_type"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	ObservedAt time.Time `gorm:"not null" json:"observed_at"`
	ReceivedAt time.Time `gorm:"not null;index" json:"received_at"`
}

// TableName returns the table name for GORM.
func (TelemetryEvent) TableName() string {
	return "telemetry_events"
}
