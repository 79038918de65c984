package entities

import "time"

// Alert lifecycle states.
const (
	AlertStateOpen         = "open"
	AlertStateAcknowledged = "acknowledged"
)

// Alert is a persisted alert incident. Rows are never deleted; acknowledged
// alerts remain for audit. The (tenant, device, rule, state) index backs the
// dedup lookup: at most one open row may exist per (tenant, device, rule).
type Alert struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	TenantID       string     `gorm:"size:36;not null;index:idx_alerts_dedup,priority:1" json:"tenant_id"`
	DeviceID       string     `gorm:"size:255;not null;index:idx_alerts_dedup,priority:2" json:"device_id"`
	DeviceName     string     `gorm:"size:255;not null" json:"device_name"`
	RuleID         string     `gorm:"size:100;not null;index:idx_alerts_dedup,priority:3" json:"rule_id"`
	Metric         string     `gorm:"size:100;not null" json:"metric"`
	Value          float64    `gorm:"not null" json:"value"`
	Severity       int        `gorm:"not null" json:"severity"`
	Message        string     `gorm:"size:1000;not null" json:"message"`
	State          string     `gorm:"size:16;not null;index:idx_alerts_dedup,priority:4" json:"state"`
	CreatedAt      time.Time  `gorm:"not null;index" json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// TableName returns the table name for GORM.
func (Alert) TableName() string {
	return "alerts"
}

// Acknowledged reports whether the alert has been acknowledged.
func (a *Alert) Acknowledged() bool {
	return a.State == AlertStateAcknowledged
}
