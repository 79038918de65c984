package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// topicSegments is the number of segments in a well-formed telemetry topic:
// <prefix>/{tenantId}/device/{deviceId}/telemetry
const topicSegments = 5

// timestampFormats lists the timestamp layouts accepted in payloads, tried
// in order. Producers are expected to send RFC 3339 UTC with a trailing Z;
// the zone-less layout is a deliberate leniency for producers that drop the
// suffix, and such timestamps are read as UTC.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Decoder converts raw transport messages into Records. It performs no I/O.
type Decoder struct {
	prefix       string
	maxClockSkew time.Duration
}

// NewDecoder creates a Decoder for the given topic prefix. maxClockSkew is
// how far ahead of receipt time a payload timestamp may be.
func NewDecoder(prefix string, maxClockSkew time.Duration) *Decoder {
	return &Decoder{prefix: prefix, maxClockSkew: maxClockSkew}
}

// payload is the wire form of a telemetry message.
type payload struct {
	Type      string                     `json:"type"`
	Data      map[string]json.RawMessage `json:"data"`
	Timestamp string                     `json:"timestamp"`
}

// Decode parses a raw message into a Record. now is the receipt time used
// for clock-skew validation; injecting it keeps the decoder deterministic
// under test.
func (d *Decoder) Decode(topic string, raw []byte, now time.Time) (*Record, error) {
	tenantID, deviceID, err := d.parseTopic(topic)
	if err != nil {
		return nil, err
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedPayload)
	}
	if len(p.Data) == 0 {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedPayload)
	}

	metrics := make(map[string]float64, len(p.Data))
	for name, rawValue := range p.Data {
		var v float64
		if err := json.Unmarshal(rawValue, &v); err != nil {
			return nil, fmt.Errorf("%w: metric %q is not numeric", ErrMalformedPayload, name)
		}
		metrics[name] = v
	}

	ts, err := d.parseTimestamp(p.Timestamp, now)
	if err != nil {
		return nil, err
	}

	return &Record{
		TenantID:   tenantID,
		DeviceID:   deviceID,
		DeviceType: p.Type,
		Metrics:    metrics,
		Timestamp:  ts,
	}, nil
}

// parseTopic extracts tenant and device IDs from the fixed topic shape
// <prefix>/{tenantId}/device/{deviceId}/telemetry.
func (d *Decoder) parseTopic(topic string) (tenantID, deviceID string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != topicSegments {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
	}
	if parts[0] != d.prefix || parts[2] != "device" || parts[4] != "telemetry" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
	}
	tenantID, deviceID = parts[1], parts[3]
	if tenantID == "" || deviceID == "" {
		return "", "", fmt.Errorf("%w: empty tenant or device segment in %q", ErrMalformedTopic, topic)
	}
	return tenantID, deviceID, nil
}

func (d *Decoder) parseTimestamp(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: missing timestamp", ErrInvalidTimestamp)
	}

	var ts time.Time
	var parsed bool
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, value); err == nil {
			ts = t.UTC()
			parsed = true
			break
		}
	}
	if !parsed {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}

	if ts.After(now.Add(d.maxClockSkew)) {
		return time.Time{}, fmt.Errorf("%w: %s is more than %s ahead of receipt time",
			ErrInvalidTimestamp, ts.Format(time.RFC3339), d.maxClockSkew)
	}
	return ts, nil
}
