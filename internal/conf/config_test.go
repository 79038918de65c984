package conf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
log:
  level: debug
mqtt:
  broker: tcp://broker:1883
  topic_prefix: sentinel
database:
  driver: sqlite
  dsn: test.db
tenants:
  - id: tenant-a
    name: Acme
    api_key: key-acme
rules:
  temperature:
    - id: temp-high
      metric: temperature
      operator: gt
      threshold: 80
      severity: 3
      bands:
        - from: 90
          severity: 4
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	settings, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", settings.Log.Level)
	assert.Equal(t, "tcp://broker:1883", settings.MQTT.Broker)
	assert.Equal(t, "test.db", settings.Database.DSN)
	require.Len(t, settings.Tenants, 1)
	assert.Equal(t, "key-acme", settings.Tenants[0].APIKey)

	require.Len(t, settings.Rules["temperature"], 1)
	rule := settings.Rules["temperature"][0]
	assert.Equal(t, "temp-high", rule.ID)
	assert.Equal(t, 80.0, rule.Threshold)
	require.Len(t, rule.Bands, 1)
	require.NotNil(t, rule.Bands[0].From)
	assert.Equal(t, 90.0, *rule.Bands[0].From)
	assert.Nil(t, rule.Bands[0].To)
}

func TestLoad_Defaults(t *testing.T) {
	settings, err := Load(writeConfig(t, "database:\n  dsn: test.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", settings.Log.Level)
	assert.Equal(t, "sentinel", settings.MQTT.TopicPrefix)
	assert.Equal(t, byte(1), settings.MQTT.QoS)
	assert.Equal(t, ":8080", settings.HTTP.Addr)
	assert.Equal(t, 5*time.Minute, settings.Ingest.MaxClockSkew.Std())
	assert.True(t, settings.Monitor.Enabled)
	assert.Equal(t, time.Minute, settings.Monitor.SweepInterval.Std())
}

func TestLoad_RuleChangeNotifiesCallbackRegisteredAfterLoad(t *testing.T) {
	path := writeConfig(t, testConfig)
	settings, err := Load(path)
	require.NoError(t, err)

	// Registration happens after the watcher is already running, which is
	// how the callback can be wired up once the pipeline exists.
	reloaded := make(chan *Settings, 1)
	settings.OnRuleChange(func(fresh *Settings) {
		select {
		case reloaded <- fresh:
		default:
		}
	})

	updated := strings.Replace(testConfig, "threshold: 80", "threshold: 120", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case fresh := <-reloaded:
		require.Len(t, fresh.Rules["temperature"], 1)
		assert.Equal(t, 120.0, fresh.Rules["temperature"][0].Threshold)
	case <-time.After(5 * time.Second):
		t.Fatal("rule change callback was not invoked")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{
			name:    "empty broker",
			mutate:  func(s *Settings) { s.MQTT.Broker = "" },
			wantErr: "mqtt.broker",
		},
		{
			name:    "empty dsn",
			mutate:  func(s *Settings) { s.Database.DSN = "" },
			wantErr: "database.dsn",
		},
		{
			name: "unknown operator",
			mutate: func(s *Settings) {
				s.Rules["temperature"][0].Operator = "between"
			},
			wantErr: "unknown operator",
		},
		{
			name: "severity out of range",
			mutate: func(s *Settings) {
				s.Rules["temperature"][0].Severity = 7
			},
			wantErr: "out of range",
		},
		{
			name: "missing rule id",
			mutate: func(s *Settings) {
				s.Rules["temperature"][0].ID = ""
			},
			wantErr: "missing an id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings, err := Load(writeConfig(t, testConfig))
			require.NoError(t, err)
			tt.mutate(settings)
			err = settings.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
