// Package alerts implements alert creation with open-alert deduplication.
//
// The durable store is the source of truth for dedup state: an open alert
// row occupies its (tenant, device, rule) key until acknowledged, so
// suppression survives restarts without any separate bookkeeping. The store
// only serializes the check-and-create window with an in-process striped
// lock so two concurrent candidates for the same key cannot both insert.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sentinel-iot/sentinel/internal/datastore/entities"
	"github.com/sentinel-iot/sentinel/internal/datastore/repository"
	"github.com/sentinel-iot/sentinel/internal/logger"
	"github.com/sentinel-iot/sentinel/internal/metrics"
	"github.com/sentinel-iot/sentinel/internal/rules"
)

// Decision is the outcome of submitting an alert candidate.
type Decision int

const (
	// CreatedNew means no open alert held the key and a new one was stored.
	CreatedNew Decision = iota
	// SuppressedDuplicate means an open alert already holds the key.
	SuppressedDuplicate
)

const (
	lockStripes   = 64
	storeAttempts = 3
	retryBackoff  = 50 * time.Millisecond
)

// Store decides whether alert candidates become stored alerts.
type Store struct {
	alerts repository.AlertRepository
	locks  [lockStripes]sync.Mutex
	now    func() time.Time
	log    zerolog.Logger
}

// NewStore creates a Store backed by the given alert repository.
func NewStore(alerts repository.AlertRepository) *Store {
	return &Store{
		alerts: alerts,
		now:    time.Now,
		log:    logger.WithComponent("alerts"),
	}
}

// Submit applies dedup to a candidate and persists it if the key is free.
// Transient persistence failures are retried with backoff before giving up.
func (s *Store) Submit(ctx context.Context, cand *rules.Candidate) (Decision, error) {
	lock := &s.locks[stripeFor(cand.TenantID, cand.DeviceID, cand.RuleID)]
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < storeAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return SuppressedDuplicate, ctx.Err()
			case <-time.After(retryBackoff << (attempt - 1)):
			}
		}

		decision, err := s.submitOnce(ctx, cand)
		if err == nil {
			return decision, nil
		}
		lastErr = err
	}
	metrics.StoreErrors.WithLabelValues("submit").Inc()
	return SuppressedDuplicate, fmt.Errorf("failed to store alert for rule %s: %w", cand.RuleID, lastErr)
}

func (s *Store) submitOnce(ctx context.Context, cand *rules.Candidate) (Decision, error) {
	existing, err := s.alerts.FindOpen(ctx, cand.TenantID, cand.DeviceID, cand.RuleID)
	if err == nil {
		metrics.AlertsSuppressed.WithLabelValues(cand.RuleID).Inc()
		s.log.Debug().
			Str("tenant", cand.TenantID).
			Str("device", cand.DeviceID).
			Str("rule", cand.RuleID).
			Str("open_alert", existing.ID).
			Msg("candidate suppressed, open alert holds the key")
		return SuppressedDuplicate, nil
	}
	if !errors.Is(err, repository.ErrAlertNotFound) {
		return SuppressedDuplicate, err
	}

	deviceName := cand.DeviceName
	if deviceName == "" {
		deviceName = cand.DeviceID
	}
	alert := &entities.Alert{
		ID:         uuid.NewString(),
		TenantID:   cand.TenantID,
		DeviceID:   cand.DeviceID,
		DeviceName: deviceName,
		RuleID:     cand.RuleID,
		Metric:     cand.Metric,
		Value:      cand.Value,
		Severity:   cand.Severity,
		Message:    cand.Message,
		State:      entities.AlertStateOpen,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		return SuppressedDuplicate, err
	}

	metrics.AlertsCreated.WithLabelValues(cand.RuleID, strconv.Itoa(cand.Severity)).Inc()
	s.log.Info().
		Str("alert", alert.ID).
		Str("tenant", cand.TenantID).
		Str("device", cand.DeviceID).
		Str("rule", cand.RuleID).
		Int("severity", cand.Severity).
		Float64("value", cand.Value).
		Msg("alert created")
	return CreatedNew, nil
}

// Acknowledge closes an open alert, freeing its dedup key.
func (s *Store) Acknowledge(ctx context.Context, tenantID, alertID string) (*entities.Alert, error) {
	alert, err := s.alerts.Acknowledge(ctx, tenantID, alertID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	metrics.AlertsAcknowledged.Inc()
	s.log.Info().
		Str("alert", alert.ID).
		Str("tenant", tenantID).
		Msg("alert acknowledged")
	return alert, nil
}

// ListOpen returns the tenant's open alerts.
func (s *Store) ListOpen(ctx context.Context, tenantID string, filter repository.AlertFilter) ([]entities.Alert, error) {
	return s.alerts.ListOpen(ctx, tenantID, filter)
}

// GetByID returns an alert scoped to the tenant.
func (s *Store) GetByID(ctx context.Context, tenantID, alertID string) (*entities.Alert, error) {
	return s.alerts.GetByID(ctx, tenantID, alertID)
}

func stripeFor(tenantID, deviceID, ruleID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tenantID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(deviceID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(ruleID))
	return h.Sum32() % lockStripes
}
