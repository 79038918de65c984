// Package metrics defines the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest pipeline
	MessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_mqtt_messages_received_total",
			Help: "Total number of MQTT messages received on the telemetry topic",
		},
	)

	DecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_telemetry_decode_errors_total",
			Help: "Total number of telemetry messages dropped during decoding",
		},
		[]string{"reason"}, // malformed_topic, malformed_payload, invalid_timestamp
	)

	TelemetryAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_telemetry_accepted_total",
			Help: "Total number of telemetry records accepted per device type",
		},
		[]string{"device_type"},
	)

	// Alert pipeline
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"rule", "severity"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_suppressed_total",
			Help: "Total number of candidate alerts suppressed as duplicates of an open alert",
		},
		[]string{"rule"},
	)

	AlertsAcknowledged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_acknowledged_total",
			Help: "Total number of alerts acknowledged via the API",
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_store_errors_total",
			Help: "Total number of persistence failures by operation",
		},
		[]string{"operation"},
	)

	// HTTP API
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// Device health
	DevicesOffline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_devices_offline",
			Help: "Number of devices currently considered offline",
		},
	)
)
