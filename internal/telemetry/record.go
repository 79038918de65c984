// Package telemetry defines the telemetry record type and the decoder that
// turns raw transport messages into records.
package telemetry

import (
	"errors"
	"time"
)

// Decode errors. Every dropped message maps to exactly one of these.
var (
	ErrMalformedTopic   = errors.New("telemetry: malformed topic")
	ErrMalformedPayload = errors.New("telemetry: malformed payload")
	ErrInvalidTimestamp = errors.New("telemetry: invalid timestamp")
)

// Record is a single decoded telemetry message. Records are immutable once
// decoded; downstream stages read but never mutate them.
type Record struct {
	TenantID   string
	DeviceID   string
	DeviceType string
	Metrics    map[string]float64
	Timestamp  time.Time // UTC
}

// Metric returns the named metric value and whether it was present.
func (r *Record) Metric(name string) (float64, bool) {
	v, ok := r.Metrics[name]
	return v, ok
}
