package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-iot/sentinel/internal/conf"
	"github.com/sentinel-iot/sentinel/internal/telemetry"
)

func fp(v float64) *float64 { return &v }

func tempRecord(deviceType string, metrics map[string]float64) *telemetry.Record {
	return &telemetry.Record{
		TenantID:   "tenant-1",
		DeviceID:   "sensor-001",
		DeviceType: deviceType,
		Metrics:    metrics,
		Timestamp:  time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

// temperatureRuleset mirrors the canonical config: temperature > 80 alerts,
// with bands {>80: 3, >90: 4}.
func temperatureRuleset() *Ruleset {
	return FromConfig(map[string][]conf.RuleSpec{
		"temperature": {
			{
				ID:        "temperature.high",
				Metric:    "temperature",
				Operator:  OperatorGreaterThan,
				Threshold: 80,
				Severity:  3,
				Message:   "Temperature {{value}} exceeds {{threshold}} on {{device}}",
				Bands: []conf.BandSpec{
					{From: fp(80), To: fp(90), Severity: 3},
					{From: fp(90), Severity: 4},
				},
			},
		},
	})
}

func TestEvaluate_BreachProducesCandidate(t *testing.T) {
	cand := temperatureRuleset().Evaluate(tempRecord("temperature", map[string]float64{"temperature": 85}))
	require.NotNil(t, cand)

	assert.Equal(t, "temperature.high", cand.RuleID)
	assert.Equal(t, "tenant-1", cand.TenantID)
	assert.Equal(t, "sensor-001", cand.DeviceID)
	assert.InDelta(t, 85.0, cand.Value, 1e-9)
	assert.Equal(t, 3, cand.Severity)
	assert.Equal(t, "Temperature 85 exceeds 80 on sensor-001", cand.Message)
}

func TestEvaluate_HighestBandWins(t *testing.T) {
	cand := temperatureRuleset().Evaluate(tempRecord("temperature", map[string]float64{"temperature": 96}))
	require.NotNil(t, cand)
	assert.Equal(t, 4, cand.Severity)
}

func TestEvaluate_BoundaryFavorsHigherSeverity(t *testing.T) {
	// 90 sits on the boundary of both bands; the higher severity band wins.
	cand := temperatureRuleset().Evaluate(tempRecord("temperature", map[string]float64{"temperature": 90}))
	require.NotNil(t, cand)
	assert.Equal(t, 4, cand.Severity)
}

func TestEvaluate_NoBreachReturnsNil(t *testing.T) {
	assert.Nil(t, temperatureRuleset().Evaluate(tempRecord("temperature", map[string]float64{"temperature": 72})))
}

func TestEvaluate_UnknownDeviceTypeReturnsNil(t *testing.T) {
	// Device type fire has no configured rule: telemetry is accepted, no
	// alert path. This mirrors sensor-003 sending temperature=45 as fire.
	assert.Nil(t, temperatureRuleset().Evaluate(tempRecord("fire", map[string]float64{"temperature": 45})))
}

func TestEvaluate_MissingMetricSkipsRule(t *testing.T) {
	assert.Nil(t, temperatureRuleset().Evaluate(tempRecord("temperature", map[string]float64{"humidity": 99})))
}

func TestEvaluate_Operators(t *testing.T) {
	tests := []struct {
		name      string
		operator  string
		threshold float64
		value     float64
		breaches  bool
	}{
		{"gt above", OperatorGreaterThan, 80, 81, true},
		{"gt equal", OperatorGreaterThan, 80, 80, false},
		{"lt below", OperatorLessThan, 20, 15, true},
		{"lt equal", OperatorLessThan, 20, 20, false},
		{"gte equal", OperatorGreaterOrEqual, 80, 80, true},
		{"gte below", OperatorGreaterOrEqual, 80, 79.9, false},
		{"lte equal", OperatorLessOrEqual, 20, 20, true},
		{"lte above", OperatorLessOrEqual, 20, 20.1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := FromConfig(map[string][]conf.RuleSpec{
				"motion": {
					{ID: "motion.battery", Metric: "battery", Operator: tt.operator, Threshold: tt.threshold, Severity: 2},
				},
			})
			cand := rs.Evaluate(tempRecord("motion", map[string]float64{"battery": tt.value}))
			if tt.breaches {
				require.NotNil(t, cand)
				assert.Equal(t, 2, cand.Severity)
			} else {
				assert.Nil(t, cand)
			}
		})
	}
}

func TestEvaluate_FirstBreachingRuleWins(t *testing.T) {
	rs := FromConfig(map[string][]conf.RuleSpec{
		"temperature": {
			{ID: "temperature.high", Metric: "temperature", Operator: OperatorGreaterThan, Threshold: 80, Severity: 3},
			{ID: "humidity.high", Metric: "humidity", Operator: OperatorGreaterThan, Threshold: 60, Severity: 2},
		},
	})

	// Both rules breach; exactly one candidate comes back, from the first rule.
	cand := rs.Evaluate(tempRecord("temperature", map[string]float64{"temperature": 85, "humidity": 70}))
	require.NotNil(t, cand)
	assert.Equal(t, "temperature.high", cand.RuleID)
}

func TestEvaluate_Deterministic(t *testing.T) {
	rs := temperatureRuleset()
	rec := tempRecord("temperature", map[string]float64{"temperature": 92.5})

	first := rs.Evaluate(rec)
	require.NotNil(t, first)
	for range 10 {
		assert.Equal(t, first, rs.Evaluate(rec))
	}
}
