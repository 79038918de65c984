package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sentinel-iot/sentinel/internal/datastore/entities"
)

// TelemetryEventRepository appends the telemetry audit trail.
type TelemetryEventRepository interface {
	// Append records one accepted telemetry message.
	Append(ctx context.Context, event *entities.TelemetryEvent) error

	// ListRecent returns the tenant's events received after since, newest
	// first, capped at limit.
	ListRecent(ctx context.Context, tenantID string, since time.Time, limit int) ([]entities.TelemetryEvent, error)
}

// telemetryEventRepository implements TelemetryEventRepository.
type telemetryEventRepository struct {
	db *gorm.DB
}

// NewTelemetryEventRepository creates a new TelemetryEventRepository.
func NewTelemetryEventRepository(db *gorm.DB) TelemetryEventRepository {
	return &telemetryEventRepository{db: db}
}

// Append records one accepted telemetry message.
func (r *telemetryEventRepository) Append(ctx context.Context, event *entities.TelemetryEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append telemetry event: %w", err)
	}
	return nil
}

// ListRecent returns the tenant's recent events, newest first.
func (r *telemetryEventRepository) ListRecent(ctx context.Context, tenantID string, since time.Time, limit int) ([]entities.TelemetryEvent, error) {
	var events []entities.TelemetryEvent
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND received_at > ?", tenantID, since).
		Order("received_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list telemetry events: %w", err)
	}
	return events, nil
}
