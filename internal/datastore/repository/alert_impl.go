package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sentinel-iot/sentinel/internal/datastore/entities"
)

// alertRepository implements AlertRepository.
type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// Create inserts a new alert row.
func (r *alertRepository) Create(ctx context.Context, alert *entities.Alert) error {
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// FindOpen returns the open alert for the dedup key, if any.
func (r *alertRepository) FindOpen(ctx context.Context, tenantID, deviceID, ruleID string) (*entities.Alert, error) {
	var alert entities.Alert
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND device_id = ? AND rule_id = ? AND state = ?",
			tenantID, deviceID, ruleID, entities.AlertStateOpen).
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to query open alert: %w", err)
	}
	return &alert, nil
}

// GetByID returns an alert scoped to the tenant.
func (r *alertRepository) GetByID(ctx context.Context, tenantID, alertID string) (*entities.Alert, error) {
	var alert entities.Alert
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", alertID, tenantID).
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert %s: %w", alertID, err)
	}
	return &alert, nil
}

// ListOpen returns the tenant's open alerts, newest first.
func (r *alertRepository) ListOpen(ctx context.Context, tenantID string, filter AlertFilter) ([]entities.Alert, error) {
	var alerts []entities.Alert
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND state = ?", tenantID, entities.AlertStateOpen).
		Order("created_at DESC")
	if filter.Severity != nil {
		query = query.Where("severity = ?", *filter.Severity)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list open alerts: %w", err)
	}
	return alerts, nil
}

// Acknowledge transitions an open alert to acknowledged. The read and the
// conditional update run in one transaction so concurrent acknowledgments
// cannot both succeed.
func (r *alertRepository) Acknowledge(ctx context.Context, tenantID, alertID string, at time.Time) (*entities.Alert, error) {
	var alert entities.Alert
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND tenant_id = ?", alertID, tenantID).First(&alert).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAlertNotFound
			}
			return fmt.Errorf("failed to get alert %s: %w", alertID, err)
		}
		if alert.Acknowledged() {
			return ErrAlreadyAcknowledged
		}

		result := tx.Model(&entities.Alert{}).
			Where("id = ? AND state = ?", alertID, entities.AlertStateOpen).
			Updates(map[string]any{
				"state":           entities.AlertStateAcknowledged,
				"acknowledged_at": at,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to acknowledge alert %s: %w", alertID, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyAcknowledged
		}

		alert.State = entities.AlertStateAcknowledged
		alert.AcknowledgedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &alert, nil
}
