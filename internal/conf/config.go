// Package conf loads and watches the service configuration.
package conf

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/sentinel-iot/sentinel/internal/logger"
)

// Settings is the root configuration for the service.
type Settings struct {
	Log      LogSettings           `mapstructure:"log"`
	MQTT     MQTTSettings          `mapstructure:"mqtt"`
	Database DatabaseSettings      `mapstructure:"database"`
	HTTP     HTTPSettings          `mapstructure:"http"`
	Ingest   IngestSettings        `mapstructure:"ingest"`
	Monitor  MonitorSettings       `mapstructure:"monitor"`
	Tenants  []TenantSeed          `mapstructure:"tenants"`
	Rules    map[string][]RuleSpec `mapstructure:"rules"`

	ruleChangeMu sync.Mutex
	ruleChange   RuleChangeCallback
}

// LogSettings controls the global logger.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// MQTTSettings configures the telemetry transport.
type MQTTSettings struct {
	Broker         string   `mapstructure:"broker"`
	ClientID       string   `mapstructure:"client_id"`
	Username       string   `mapstructure:"username"`
	Password       string   `mapstructure:"password"`
	TopicPrefix    string   `mapstructure:"topic_prefix"`
	QoS            byte     `mapstructure:"qos"`
	ConnectTimeout Duration `mapstructure:"connect_timeout"`
}

// DatabaseSettings configures the alert store backend.
type DatabaseSettings struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "mysql"
	DSN    string `mapstructure:"dsn"`
}

// HTTPSettings configures the API server.
type HTTPSettings struct {
	Addr string `mapstructure:"addr"`
}

// IngestSettings configures telemetry decoding.
type IngestSettings struct {
	// MaxClockSkew is how far ahead of receipt time a telemetry timestamp
	// may be before it is rejected as invalid.
	MaxClockSkew Duration `mapstructure:"max_clock_skew"`
}

// MonitorSettings configures the device health sweep.
type MonitorSettings struct {
	Enabled       bool     `mapstructure:"enabled"`
	SweepInterval Duration `mapstructure:"sweep_interval"`
	OfflineAfter  Duration `mapstructure:"offline_after"`
}

// TenantSeed is a tenant provisioned from config at startup.
type TenantSeed struct {
	ID     string `mapstructure:"id"`
	Name   string `mapstructure:"name"`
	APIKey string `mapstructure:"api_key"`
}

// RuleSpec is the config-file form of an alert rule, keyed by device type
// in Settings.Rules.
type RuleSpec struct {
	ID        string     `mapstructure:"id"`
	Metric    string     `mapstructure:"metric"`
	Operator  string     `mapstructure:"operator"` // gt, lt, gte, lte
	Threshold float64    `mapstructure:"threshold"`
	Severity  int        `mapstructure:"severity"` // base severity when no band matches
	Message   string     `mapstructure:"message"`
	Bands     []BandSpec `mapstructure:"bands"`
}

// BandSpec maps a value range to a severity level. Missing bounds are open.
type BandSpec struct {
	From     *float64 `mapstructure:"from"`
	To       *float64 `mapstructure:"to"`
	Severity int      `mapstructure:"severity"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "sentinel")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.connect_timeout", "10s")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "sentinel.db")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("ingest.max_clock_skew", "5m")
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.sweep_interval", "1m")
	v.SetDefault("monitor.offline_after", "5m")
}

// Load reads the configuration file at path, applying defaults and
// SENTINEL_* environment overrides.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("sentinel")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	settings, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	// Watch for rule changes so thresholds can be tuned without a restart.
	// Non-rule changes (broker, database, listen address) still require one.
	watchRules(v, path, settings)

	return settings, nil
}

func unmarshal(v *viper.Viper) (*Settings, error) {
	var settings Settings
	if err := v.Unmarshal(&settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &settings, nil
}

// Validate checks settings that would otherwise fail deep inside a component.
func (s *Settings) Validate() error {
	if s.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker must not be empty")
	}
	if s.MQTT.TopicPrefix == "" {
		return fmt.Errorf("mqtt.topic_prefix must not be empty")
	}
	if s.Database.DSN == "" {
		return fmt.Errorf("database.dsn must not be empty")
	}
	for deviceType, specs := range s.Rules {
		for _, spec := range specs {
			if spec.ID == "" {
				return fmt.Errorf("rules.%s: rule is missing an id", deviceType)
			}
			if spec.Metric == "" {
				return fmt.Errorf("rules.%s.%s: metric must not be empty", deviceType, spec.ID)
			}
			switch spec.Operator {
			case "gt", "lt", "gte", "lte":
			default:
				return fmt.Errorf("rules.%s.%s: unknown operator %q", deviceType, spec.ID, spec.Operator)
			}
			if spec.Severity < 1 || spec.Severity > 5 {
				return fmt.Errorf("rules.%s.%s: severity %d out of range 1-5", deviceType, spec.ID, spec.Severity)
			}
			for _, band := range spec.Bands {
				if band.Severity < 1 || band.Severity > 5 {
					return fmt.Errorf("rules.%s.%s: band severity %d out of range 1-5", deviceType, spec.ID, band.Severity)
				}
			}
		}
	}
	return nil
}

// RuleChangeCallback is invoked with freshly parsed settings after the config
// file changes on disk.
type RuleChangeCallback func(settings *Settings)

// OnRuleChange registers the callback invoked when the config file is
// rewritten with valid settings. The watcher reads the registration under
// a lock, so calling this after Load returns is safe.
func (s *Settings) OnRuleChange(cb RuleChangeCallback) {
	s.ruleChangeMu.Lock()
	s.ruleChange = cb
	s.ruleChangeMu.Unlock()
}

func (s *Settings) notifyRuleChange(fresh *Settings) bool {
	s.ruleChangeMu.Lock()
	cb := s.ruleChange
	s.ruleChangeMu.Unlock()
	if cb == nil {
		return false
	}
	cb(fresh)
	return true
}

func watchRules(v *viper.Viper, path string, loaded *Settings) {
	log := logger.WithComponent("conf")

	var lastChange time.Time
	const debounce = 2 * time.Second

	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&fsnotify.Write != fsnotify.Write {
			return
		}
		// Editors often fire several write events per save.
		now := time.Now()
		if now.Sub(lastChange) < debounce {
			return
		}
		lastChange = now

		fresh, err := unmarshal(v)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("failed to reload config, keeping previous rules")
			return
		}
		if err := fresh.Validate(); err != nil {
			log.Error().Err(err).Str("path", path).Msg("reloaded config is invalid, keeping previous rules")
			return
		}

		if loaded.notifyRuleChange(fresh) {
			log.Info().Str("path", path).Msg("rule configuration reloaded")
		}
	})
	v.WatchConfig()
}
