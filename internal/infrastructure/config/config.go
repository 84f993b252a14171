package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Registry backends.
const (
	BackendOpenHAB = "openhab"
	BackendLocal   = "local"
)

// DefaultRuleRegistryService is the service name the rule registry is
// published under by the host platform.
const DefaultRuleRegistryService = "org.eclipse.smarthome.automation.RuleRegistry"

// Config is the root configuration structure for rulewalk.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Registry RegistryConfig `yaml:"registry"`
	OpenHAB  OpenHABConfig  `yaml:"openhab"`
	Walk     WalkConfig     `yaml:"walk"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SiteConfig identifies the installation the walker runs against.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// RegistryConfig selects which rule registry implementation is published
// to the service locator and under which name.
type RegistryConfig struct {
	// Backend is "openhab" (REST API of a running openHAB) or "local"
	// (SQLite-backed registry in the rulewalk database).
	Backend string `yaml:"backend"`

	// Service is the name the registry is registered and looked up under.
	Service string `yaml:"service"`
}

// OpenHABConfig contains openHAB REST API connection settings.
type OpenHABConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`

	// Timeout bounds every individual REST request.
	Timeout time.Duration `yaml:"timeout"`

	// ReadyTimeout bounds how long service lookup waits for the REST API to
	// answer before reporting the registry unavailable. 0 probes once.
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
}

// WalkConfig holds the defaults for the walk command.
type WalkConfig struct {
	Tag                string         `yaml:"tag"`
	Delay              time.Duration  `yaml:"delay"`
	Inputs             map[string]any `yaml:"inputs"`
	ConsiderConditions bool           `yaml:"consider_conditions"`
	RestoreOnAbort     bool           `yaml:"restore_on_abort"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RULEWALK_SECTION_KEY
// For example: RULEWALK_DATABASE_PATH, RULEWALK_OPENHAB_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. It is used when no configuration file exists.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Registry: RegistryConfig{
			Backend: BackendOpenHAB,
			Service: DefaultRuleRegistryService,
		},
		OpenHAB: OpenHABConfig{
			URL:          "http://localhost:8080",
			Timeout:      10 * time.Second,
			ReadyTimeout: 30 * time.Second,
		},
		Walk: WalkConfig{
			Tag:    "a",
			Delay:  time.Second,
			Inputs: map[string]any{"name": "EXAMPLE"},
		},
		Database: DatabaseConfig{
			Path:        "./data/rulewalk.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-rulewalk",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RULEWALK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RULEWALK_REGISTRY_BACKEND"); v != "" {
		cfg.Registry.Backend = v
	}

	// openHAB
	if v := os.Getenv("RULEWALK_OPENHAB_URL"); v != "" {
		cfg.OpenHAB.URL = v
	}
	if v := os.Getenv("RULEWALK_OPENHAB_TOKEN"); v != "" {
		cfg.OpenHAB.Token = v
	}

	// Database
	if v := os.Getenv("RULEWALK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("RULEWALK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RULEWALK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RULEWALK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("RULEWALK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("RULEWALK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	switch c.Registry.Backend {
	case BackendOpenHAB:
		if c.OpenHAB.URL == "" {
			errs = append(errs, "openhab.url is required for the openhab backend")
		}
		if c.OpenHAB.Timeout <= 0 {
			errs = append(errs, "openhab.timeout must be positive")
		}
		if c.OpenHAB.ReadyTimeout < 0 {
			errs = append(errs, "openhab.ready_timeout cannot be negative")
		}
	case BackendLocal:
	default:
		errs = append(errs, fmt.Sprintf("registry.backend must be %q or %q", BackendOpenHAB, BackendLocal))
	}
	if c.Registry.Service == "" {
		errs = append(errs, "registry.service is required")
	}

	if c.Walk.Delay < 0 {
		errs = append(errs, "walk.delay cannot be negative")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
