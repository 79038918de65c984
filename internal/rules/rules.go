// Package rules implements the threshold rule evaluator. Evaluation is a
// pure function over a telemetry record and an immutable ruleset.
package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sentinel-iot/sentinel/internal/conf"
	"github.com/sentinel-iot/sentinel/internal/telemetry"
)

// Condition operators for threshold comparison.
const (
	OperatorGreaterThan    = "gt"
	OperatorLessThan       = "lt"
	OperatorGreaterOrEqual = "gte"
	OperatorLessOrEqual    = "lte"
)

// Severity bounds for alerts. 1 is lowest, 5 is highest.
const (
	SeverityMin = 1
	SeverityMax = 5
)

// Band maps a half-open or closed value range to a severity level.
// A nil bound is open on that side.
type Band struct {
	From     *float64
	To       *float64
	Severity int
}

// matches reports whether value falls inside the band. Bounds are inclusive
// so that boundary equality lands in the band carrying the higher severity.
func (b *Band) matches(value float64) bool {
	if b.From != nil && value < *b.From {
		return false
	}
	if b.To != nil && value > *b.To {
		return false
	}
	return true
}

// Rule is a single threshold rule for one device type. Immutable after load.
type Rule struct {
	ID         string
	DeviceType string
	Metric     string
	Operator   string
	Threshold  float64
	Severity   int // base severity when no band matches
	Message    string
	Bands      []Band // sorted by severity descending
}

// breached reports whether value violates the rule's threshold.
func (r *Rule) breached(value float64) bool {
	switch r.Operator {
	case OperatorGreaterThan:
		return value > r.Threshold
	case OperatorLessThan:
		return value < r.Threshold
	case OperatorGreaterOrEqual:
		return value >= r.Threshold
	case OperatorLessOrEqual:
		return value <= r.Threshold
	default:
		return false
	}
}

// severityFor returns the severity for a breaching value. Bands are checked
// highest severity first so the highest matching band wins; without a
// matching band the rule's base severity applies.
func (r *Rule) severityFor(value float64) int {
	for i := range r.Bands {
		if r.Bands[i].matches(value) {
			return r.Bands[i].Severity
		}
	}
	return r.Severity
}

// Candidate is a potential alert produced by evaluation, not yet
// deduplicated or persisted.
type Candidate struct {
	TenantID   string
	DeviceID   string
	DeviceName string
	DeviceType string
	RuleID     string
	Metric     string
	Value      float64
	Severity   int
	Message    string
	ObservedAt time.Time
}

// Ruleset holds the loaded rules keyed by device type.
type Ruleset struct {
	byDeviceType map[string][]Rule
}

// FromConfig builds a Ruleset from the config-file rule specs. Specs are
// assumed pre-validated by conf.Settings.Validate.
func FromConfig(specs map[string][]conf.RuleSpec) *Ruleset {
	byType := make(map[string][]Rule, len(specs))
	for deviceType, ruleSpecs := range specs {
		loaded := make([]Rule, 0, len(ruleSpecs))
		for _, spec := range ruleSpecs {
			rule := Rule{
				ID:         spec.ID,
				DeviceType: deviceType,
				Metric:     spec.Metric,
				Operator:   spec.Operator,
				Threshold:  spec.Threshold,
				Severity:   spec.Severity,
				Message:    spec.Message,
			}
			for _, band := range spec.Bands {
				rule.Bands = append(rule.Bands, Band{From: band.From, To: band.To, Severity: band.Severity})
			}
			sort.SliceStable(rule.Bands, func(i, j int) bool {
				return rule.Bands[i].Severity > rule.Bands[j].Severity
			})
			loaded = append(loaded, rule)
		}
		byType[deviceType] = loaded
	}
	return &Ruleset{byDeviceType: byType}
}

// Evaluate applies the rules registered for the record's device type and
// returns the first breaching rule as a Candidate, or nil when no rule
// breaches. A device type with no rules evaluates to nil; that is expected,
// not an error.
func (rs *Ruleset) Evaluate(rec *telemetry.Record) *Candidate {
	for i := range rs.byDeviceType[rec.DeviceType] {
		rule := &rs.byDeviceType[rec.DeviceType][i]
		value, ok := rec.Metric(rule.Metric)
		if !ok {
			continue // metric absent from this record, rule does not apply
		}
		if !rule.breached(value) {
			continue
		}
		severity := rule.severityFor(value)
		return &Candidate{
			TenantID:   rec.TenantID,
			DeviceID:   rec.DeviceID,
			DeviceName: rec.DeviceID,
			DeviceType: rec.DeviceType,
			RuleID:     rule.ID,
			Metric:     rule.Metric,
			Value:      value,
			Severity:   severity,
			Message:    renderMessage(rule, rec.DeviceID, value),
			ObservedAt: rec.Timestamp,
		}
	}
	return nil
}

// Len returns the total number of loaded rules.
func (rs *Ruleset) Len() int {
	n := 0
	for _, loaded := range rs.byDeviceType {
		n += len(loaded)
	}
	return n
}

// renderMessage substitutes template variables in the rule's message.
// Falls back to a generated message when no template is configured.
func renderMessage(rule *Rule, deviceID string, value float64) string {
	formatted := strconv.FormatFloat(value, 'f', -1, 64)
	if rule.Message == "" {
		return fmt.Sprintf("%s %s breached threshold %v on %s", rule.Metric, formatted, rule.Threshold, deviceID)
	}
	return strings.NewReplacer(
		"{{metric}}", rule.Metric,
		"{{value}}", formatted,
		"{{threshold}}", strconv.FormatFloat(rule.Threshold, 'f', -1, 64),
		"{{device}}", deviceID,
	).Replace(rule.Message)
}
