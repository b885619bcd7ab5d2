package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

// tokenLength is the length of a miIO device token in hex characters.
const tokenLength = 32

// Config is the root configuration structure for the Gray Logic fan bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Fan       FanConfig       `yaml:"fan"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// FanConfig identifies the fan and how it is reached.
type FanConfig struct {
	// ID is the bridge-side device id used in MQTT topics and the database.
	ID string `yaml:"id" default:"fan-01"`

	// Name is the display name used in logs.
	Name string `yaml:"name" default:"Fan"`

	// Address is the fan IP address, optionally with a port.
	Address string `yaml:"address"`

	// Token is the 32 character hex miIO token.
	Token string `yaml:"token"`

	// DeviceID is the numeric miIO device id. MIoT models need it when the
	// handshake does not report one.
	DeviceID string `yaml:"device_id"`

	// Model skips discovery when set. The model cached in the database takes
	// its place when empty.
	Model string `yaml:"model"`

	// PollingInterval is in seconds.
	PollingInterval int `yaml:"polling_interval" default:"5"`

	// RefreshDelayMS is the pause before re-reading properties after a
	// direct-method command.
	RefreshDelayMS int `yaml:"refresh_delay_ms" default:"200"`

	Features FeaturesConfig `yaml:"features"`
}

// FeaturesConfig switches individual controls on or off at the bridge.
// A disabled feature is neither published nor accepted as a command.
type FeaturesConfig struct {
	Buzzer        bool `yaml:"buzzer" default:"true"`
	LED           bool `yaml:"led" default:"true"`
	NaturalMode   bool `yaml:"natural_mode" default:"true"`
	SleepMode     bool `yaml:"sleep_mode" default:"true"`
	Move          bool `yaml:"move" default:"true"`
	FanLevel      bool `yaml:"fan_level" default:"true"`
	ShutdownTimer bool `yaml:"shutdown_timer" default:"true"`
	Ioniser       bool `yaml:"ioniser" default:"true"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path" default:"./data/graylogic-fan.db"`
	WALMode     bool   `yaml:"wal_mode" default:"true"`
	BusyTimeout int    `yaml:"busy_timeout" default:"5"`

	// HistoryRetentionDays bounds the state history table. 0 keeps everything.
	HistoryRetentionDays int `yaml:"history_retention_days" default:"7"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled" default:"true"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos" default:"1"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"1883"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id" default:"graylogic-fan"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay" default:"1"`
	MaxDelay     int `yaml:"max_delay" default:"60"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled" default:"true"`
	Host     string           `yaml:"host" default:"0.0.0.0"`
	Port     int              `yaml:"port" default:"8080"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read" default:"30"`
	Write int `yaml:"write" default:"30"`
	Idle  int `yaml:"idle" default:"60"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size" default:"8192"`
	PingInterval   int `yaml:"ping_interval" default:"30"`
	PongTimeout    int `yaml:"pong_timeout" default:"10"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url" default:"http://localhost:8086"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org" default:"graylogic"`
	Bucket        string `yaml:"bucket" default:"fan"`
	BatchSize     int    `yaml:"batch_size" default:"100"`
	FlushInterval int    `yaml:"flush_interval" default:"10"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
	Output string `yaml:"output" default:"stdout"`
}

// TelemetryConfig contains metrics and health reporting settings.
type TelemetryConfig struct {
	// Metrics enables the Prometheus collectors and the /metrics endpoint.
	Metrics bool `yaml:"metrics" default:"true"`

	// HealthInterval is the MQTT health publish interval in seconds.
	HealthInterval int `yaml:"health_interval" default:"30"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (struct tags)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_FAN_SECTION_KEY
// For example: GRAYLOGIC_FAN_FAN_TOKEN, GRAYLOGIC_FAN_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with every default applied and no fan configured.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv("GRAYLOGIC_FAN_" + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv("GRAYLOGIC_FAN_" + key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	// Fan
	str("FAN_ADDRESS", &cfg.Fan.Address)
	str("FAN_TOKEN", &cfg.Fan.Token)
	str("FAN_DEVICE_ID", &cfg.Fan.DeviceID)
	str("FAN_MODEL", &cfg.Fan.Model)
	num("FAN_POLLING_INTERVAL", &cfg.Fan.PollingInterval)

	// Database
	str("DATABASE_PATH", &cfg.Database.Path)

	// MQTT
	str("MQTT_HOST", &cfg.MQTT.Broker.Host)
	num("MQTT_PORT", &cfg.MQTT.Broker.Port)
	str("MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Auth.Password)

	// API
	str("API_HOST", &cfg.API.Host)
	num("API_PORT", &cfg.API.Port)

	// InfluxDB
	str("INFLUXDB_URL", &cfg.InfluxDB.URL)
	str("INFLUXDB_TOKEN", &cfg.InfluxDB.Token)

	// Logging
	str("LOG_LEVEL", &cfg.Logging.Level)
}

// Validate checks the configuration for errors. All problems are reported
// together.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Fan validation
	if c.Fan.ID == "" {
		errs = append(errs, "fan.id is required")
	}
	if c.Fan.Address == "" {
		errs = append(errs, "fan.address is required (set GRAYLOGIC_FAN_FAN_ADDRESS environment variable)")
	}
	if err := ValidateToken(c.Fan.Token); err != nil {
		errs = append(errs, "fan.token "+err.Error())
	}
	if c.Fan.PollingInterval < 1 {
		errs = append(errs, "fan.polling_interval must be at least 1 second")
	}
	if c.Fan.RefreshDelayMS < 0 {
		errs = append(errs, "fan.refresh_delay_ms must not be negative")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.HistoryRetentionDays < 0 {
		errs = append(errs, "database.history_retention_days must not be negative")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Logging validation
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "logging.level must be debug, info, warn, or error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ValidateToken checks that token is 32 hex characters.
func ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("is required (set GRAYLOGIC_FAN_FAN_TOKEN environment variable)")
	}
	if len(token) != tokenLength {
		return fmt.Errorf("must be %d hex characters, got %d", tokenLength, len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		return fmt.Errorf("must be hex: %w", err)
	}
	return nil
}

// GetPollingInterval returns the fan polling interval as a Duration.
func (c *Config) GetPollingInterval() time.Duration {
	return time.Duration(c.Fan.PollingInterval) * time.Second
}

// GetRefreshDelay returns the direct-method refresh delay as a Duration.
func (c *Config) GetRefreshDelay() time.Duration {
	return time.Duration(c.Fan.RefreshDelayMS) * time.Millisecond
}

// GetHealthInterval returns the MQTT health publish interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Telemetry.HealthInterval) * time.Second
}

// GetHistoryRetention returns how long state history is kept. Zero keeps
// everything.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.Database.HistoryRetentionDays) * 24 * time.Hour
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
