// Package monitor sweeps for silent devices and raises offline alerts.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentinel-iot/sentinel/internal/alerts"
	"github.com/sentinel-iot/sentinel/internal/conf"
	"github.com/sentinel-iot/sentinel/internal/datastore/repository"
	"github.com/sentinel-iot/sentinel/internal/logger"
	"github.com/sentinel-iot/sentinel/internal/metrics"
	"github.com/sentinel-iot/sentinel/internal/rules"
)

// RuleID identifies device-offline alerts; they share the dedup path with
// threshold alerts, so a device going offline raises at most one open alert.
const RuleID = "device.offline"

// OfflineSeverity is the severity assigned to offline alerts.
const OfflineSeverity = 3

// Monitor periodically flips silent devices to offline and raises an alert
// for each transition.
type Monitor struct {
	devices       repository.DeviceRepository
	store         *alerts.Store
	sweepInterval time.Duration
	offlineAfter  time.Duration
	now           func() time.Time
	log           zerolog.Logger
}

// New creates a Monitor from the sweep settings.
func New(devices repository.DeviceRepository, store *alerts.Store, settings conf.MonitorSettings) *Monitor {
	return &Monitor{
		devices:       devices,
		store:         store,
		sweepInterval: settings.SweepInterval.Std(),
		offlineAfter:  settings.OfflineAfter.Std(),
		now:           time.Now,
		log:           logger.WithComponent("monitor"),
	}
}

// Run sweeps on the configured interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	m.log.Info().
		Dur("sweep_interval", m.sweepInterval).
		Dur("offline_after", m.offlineAfter).
		Msg("device health monitor started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				m.log.Error().Err(err).Msg("device sweep failed")
			}
		}
	}
}

// Sweep runs one pass: devices silent past the threshold go offline and get
// an alert through the dedup store.
func (m *Monitor) Sweep(ctx context.Context) error {
	now := m.now().UTC()
	changed, err := m.devices.MarkOffline(ctx, now.Add(-m.offlineAfter))
	if err != nil {
		metrics.StoreErrors.WithLabelValues("mark_offline").Inc()
		return err
	}

	for i := range changed {
		device := &changed[i]
		cand := &rules.Candidate{
			TenantID:   device.TenantID,
			DeviceID:   device.DeviceID,
			DeviceName: device.Name,
			DeviceType: device.DeviceType,
			RuleID:     RuleID,
			Metric:     "last_seen_seconds",
			Value:      now.Sub(device.LastSeenAt).Seconds(),
			Severity:   OfflineSeverity,
			Message:    fmt.Sprintf("device %s has not reported since %s", device.DeviceID, device.LastSeenAt.Format(time.RFC3339)),
			ObservedAt: now,
		}
		if _, err := m.store.Submit(ctx, cand); err != nil {
			m.log.Error().Err(err).
				Str("tenant", device.TenantID).
				Str("device", device.DeviceID).
				Msg("failed to raise offline alert")
			continue
		}
		m.log.Warn().
			Str("tenant", device.TenantID).
			Str("device", device.DeviceID).
			Time("last_seen", device.LastSeenAt).
			Msg("device marked offline")
	}

	if count, err := m.devices.CountOffline(ctx); err == nil {
		metrics.DevicesOffline.Set(float64(count))
	}
	return nil
}
