// Package repository contains the persistence operations per aggregate.
package repository

import (
	"context"
	"time"

	"github.com/sentinel-iot/sentinel/internal/datastore/entities"
)

// AlertRepository handles alert persistence and the open-alert dedup lookup.
type AlertRepository interface {
	// Create inserts a new alert row.
	Create(ctx context.Context, alert *entities.Alert) error

	// FindOpen returns the open alert for the (tenant, device, rule) dedup
	// key, or ErrAlertNotFound when the key has no open alert.
	FindOpen(ctx context.Context, tenantID, deviceID, ruleID string) (*entities.Alert, error)

	// GetByID returns an alert scoped to the tenant. Foreign or unknown IDs
	// both return ErrAlertNotFound so existence never leaks across tenants.
	GetByID(ctx context.Context, tenantID, alertID string) (*entities.Alert, error)

	// ListOpen returns the tenant's open alerts, newest first.
	ListOpen(ctx context.Context, tenantID string, filter AlertFilter) ([]entities.Alert, error)

	// Acknowledge transitions an open alert to acknowledged at the given
	// time. Returns ErrAlertNotFound for unknown/foreign IDs and
	// ErrAlreadyAcknowledged when the transition already happened;
	// AcknowledgedAt is never overwritten.
	Acknowledge(ctx context.Context, tenantID, alertID string, at time.Time) (*entities.Alert, error)
}

// AlertFilter narrows ListOpen queries.
type AlertFilter struct {
	Severity *int
	Limit    int
}
