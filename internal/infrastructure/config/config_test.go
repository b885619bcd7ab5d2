package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testToken = "00112233445566778899aabbccddeeff"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
fan:
  id: "bedroom-fan"
  address: "192.168.1.40"
  token: "`+testToken+`"
  model: "zhimi.fan.za4"
  polling_interval: 10
  features:
    buzzer: false
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "broker.local"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Fan.ID != "bedroom-fan" {
		t.Errorf("Fan.ID = %q, want %q", cfg.Fan.ID, "bedroom-fan")
	}
	if cfg.Fan.Model != "zhimi.fan.za4" {
		t.Errorf("Fan.Model = %q, want %q", cfg.Fan.Model, "zhimi.fan.za4")
	}
	if got := cfg.GetPollingInterval(); got != 10*time.Second {
		t.Errorf("GetPollingInterval() = %v, want 10s", got)
	}
	if cfg.Fan.Features.Buzzer {
		t.Error("Features.Buzzer = true, want false from file")
	}
	if !cfg.Fan.Features.LED {
		t.Error("Features.LED = false, want default true")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Fan.PollingInterval != 5 {
		t.Errorf("Fan.PollingInterval = %d, want 5", cfg.Fan.PollingInterval)
	}
	if got := cfg.GetRefreshDelay(); got != 200*time.Millisecond {
		t.Errorf("GetRefreshDelay() = %v, want 200ms", got)
	}
	if cfg.Database.Path == "" {
		t.Error("Database.Path is empty")
	}
	if !cfg.Database.WALMode {
		t.Error("Database.WALMode = false, want true")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.InfluxDB.Enabled {
		t.Error("InfluxDB.Enabled = true, want false")
	}
	if got := cfg.GetHistoryRetention(); got != 7*24*time.Hour {
		t.Errorf("GetHistoryRetention() = %v, want 168h", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
fan:
  address: "192.168.1.40"
  token: "ffffffffffffffffffffffffffffffff"
`)
	t.Setenv("GRAYLOGIC_FAN_FAN_TOKEN", testToken)
	t.Setenv("GRAYLOGIC_FAN_FAN_ADDRESS", "10.0.0.9")
	t.Setenv("GRAYLOGIC_FAN_API_PORT", "9090")
	t.Setenv("GRAYLOGIC_FAN_MQTT_PORT", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Fan.Token != testToken {
		t.Errorf("Fan.Token = %q, want env value", cfg.Fan.Token)
	}
	if cfg.Fan.Address != "10.0.0.9" {
		t.Errorf("Fan.Address = %q, want %q", cfg.Fan.Address, "10.0.0.9")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883 (invalid override ignored)", cfg.MQTT.Broker.Port)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
fan:
  address: ""
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	// Every problem is reported, not just the first.
	for _, want := range []string{"fan.address", "fan.token"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Fan.Address = "192.168.1.40"
		cfg.Fan.Token = testToken
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing fan id", mutate: func(c *Config) { c.Fan.ID = "" }, wantErr: true},
		{name: "missing address", mutate: func(c *Config) { c.Fan.Address = "" }, wantErr: true},
		{name: "short token", mutate: func(c *Config) { c.Fan.Token = "abc" }, wantErr: true},
		{name: "non-hex token", mutate: func(c *Config) { c.Fan.Token = strings.Repeat("z", 32) }, wantErr: true},
		{name: "zero polling interval", mutate: func(c *Config) { c.Fan.PollingInterval = 0 }, wantErr: true},
		{name: "negative refresh delay", mutate: func(c *Config) { c.Fan.RefreshDelayMS = -1 }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "port ignored when api disabled", mutate: func(c *Config) { c.API.Enabled = false; c.API.Port = 0 }},
		{name: "invalid log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateToken(t *testing.T) {
	if err := ValidateToken(testToken); err != nil {
		t.Errorf("ValidateToken(valid) = %v", err)
	}
	if err := ValidateToken(strings.ToUpper(testToken)); err != nil {
		t.Errorf("ValidateToken(upper case) = %v", err)
	}
	if err := ValidateToken(""); err == nil {
		t.Error("ValidateToken(\"\") = nil, want error")
	}
}
