// Package ingest drives the telemetry pipeline from transport to alert store.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentinel-iot/sentinel/internal/alerts"
	"github.com/sentinel-iot/sentinel/internal/datastore/entities"
	"github.com/sentinel-iot/sentinel/internal/datastore/repository"
	"github.com/sentinel-iot/sentinel/internal/logger"
	"github.com/sentinel-iot/sentinel/internal/metrics"
	"github.com/sentinel-iot/sentinel/internal/rules"
	"github.com/sentinel-iot/sentinel/internal/telemetry"
)

// Coordinator wires the transport to decode, device tracking, rule
// evaluation, and the alert store. One malformed or failing message never
// affects the processing of the next.
type Coordinator struct {
	transport Transport
	decoder   *telemetry.Decoder
	ruleset   atomic.Pointer[rules.Ruleset]
	devices   repository.DeviceRepository
	events    repository.TelemetryEventRepository
	store     *alerts.Store
	prefix    string
	now       func() time.Time
	log       zerolog.Logger
}

// NewCoordinator creates a Coordinator. The ruleset can be swapped at
// runtime with ReplaceRules.
func NewCoordinator(
	transport Transport,
	decoder *telemetry.Decoder,
	ruleset *rules.Ruleset,
	devices repository.DeviceRepository,
	events repository.TelemetryEventRepository,
	store *alerts.Store,
	topicPrefix string,
) *Coordinator {
	c := &Coordinator{
		transport: transport,
		decoder:   decoder,
		devices:   devices,
		events:    events,
		store:     store,
		prefix:    topicPrefix,
		now:       time.Now,
		log:       logger.WithComponent("ingest"),
	}
	c.ruleset.Store(ruleset)
	return c
}

// Start connects the transport and subscribes to the telemetry topic. It
// returns once the subscription is active; message handling runs on the
// transport's delivery goroutines until ctx is canceled.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.transport.Connect(); err != nil {
		return err
	}

	topic := fmt.Sprintf("%s/+/device/+/telemetry", c.prefix)
	if err := c.transport.Subscribe(topic, func(msgTopic string, payload []byte) {
		c.handleMessage(ctx, msgTopic, payload)
	}); err != nil {
		c.transport.Disconnect()
		return err
	}
	c.log.Info().Str("topic", topic).Msg("telemetry subscription active")
	return nil
}

// Stop disconnects the transport.
func (c *Coordinator) Stop() {
	c.transport.Disconnect()
}

// ReplaceRules swaps the active ruleset. In-flight evaluations finish with
// the set they started with.
func (c *Coordinator) ReplaceRules(ruleset *rules.Ruleset) {
	c.ruleset.Store(ruleset)
	c.log.Info().Int("rules", ruleset.Len()).Msg("ruleset replaced")
}

func (c *Coordinator) handleMessage(ctx context.Context, topic string, payload []byte) {
	metrics.MessagesReceived.Inc()

	now := c.now().UTC()
	rec, err := c.decoder.Decode(topic, payload, now)
	if err != nil {
		metrics.DecodeErrors.WithLabelValues(decodeReason(err)).Inc()
		c.log.Debug().Err(err).Str("topic", topic).Msg("telemetry message dropped")
		return
	}

	device, err := c.devices.Touch(ctx, rec.TenantID, rec.DeviceID, rec.DeviceType, now)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("device_touch").Inc()
		c.log.Error().Err(err).Str("device", rec.DeviceID).Msg("failed to record device heartbeat")
		// Continue: evaluation does not depend on the device row.
	}

	c.appendEvent(ctx, rec, now)
	metrics.TelemetryAccepted.WithLabelValues(rec.DeviceType).Inc()

	cand := c.ruleset.Load().Evaluate(rec)
	if cand == nil {
		return
	}
	if device != nil {
		cand.DeviceName = device.Name
	}

	if _, err := c.store.Submit(ctx, cand); err != nil {
		c.log.Error().Err(err).
			Str("tenant", cand.TenantID).
			Str("device", cand.DeviceID).
			Str("rule", cand.RuleID).
			Msg("failed to submit alert candidate")
	}
}

func (c *Coordinator) appendEvent(ctx context.Context, rec *telemetry.Record, receivedAt time.Time) {
	payload, err := json.Marshal(rec.Metrics)
	if err != nil {
		payload = []byte("{}")
	}
	err = c.events.Append(ctx, &entities.TelemetryEvent{
		TenantID:   rec.TenantID,
		DeviceID:   rec.DeviceID,
		EventType:  rec.DeviceType,
		Payload:    string(payload),
		ObservedAt: rec.Timestamp,
		ReceivedAt: receivedAt,
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("telemetry_append").Inc()
		c.log.Error().Err(err).Str("device", rec.DeviceID).Msg("failed to append telemetry event")
	}
}

func decodeReason(err error) string {
	switch {
	case errors.Is(err, telemetry.ErrMalformedTopic):
		return "malformed_topic"
	case errors.Is(err, telemetry.ErrInvalidTimestamp):
		return "invalid_timestamp"
	default:
		return "malformed_payload"
	}
}
