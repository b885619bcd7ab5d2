package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/nerrad567/gray-logic-fan/internal/miio"
	"github.com/nerrad567/gray-logic-fan/internal/miio/miiotest"
)

const testToken = "0123456789abcdef0123456789abcdef"

// writeConfig writes a minimal config with every optional service disabled.
func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
fan:
  id: fan-test
  name: Test Fan
  address: "127.0.0.1"
  token: "` + testToken + `"
  polling_interval: 1

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

api:
  enabled: false

influxdb:
  enabled: false

telemetry:
  metrics: true

logging:
  level: error
  format: text
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}

// TestRun_MissingToken verifies validation errors surface from run.
func TestRun_MissingToken(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "fan:\n  address: 127.0.0.1\nmqtt:\n  enabled: false\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GRAYLOGIC_FAN_FAN_TOKEN", "")

	err := run(context.Background(), configPath)
	if err == nil || !strings.Contains(err.Error(), "fan.token") {
		t.Errorf("run() error = %v, want fan.token validation failure", err)
	}
}

// TestRun_ShutdownOnCancel starts the bridge with only the database and
// controller and verifies a clean return when the context ends.
func TestRun_ShutdownOnCancel(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fan.db")
	configPath := writeConfig(t, dbPath)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, configPath) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v, want nil on shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

// TestGetConfigPath_Default verifies default config path when no override.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv(configEnvVar, "")

	if path := getConfigPath(nil); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies GRAYLOGIC_FAN_CONFIG env var.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	t.Setenv(configEnvVar, "/custom/path/config.yaml")

	if path := getConfigPath(nil); path != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want /custom/path/config.yaml", path)
	}
}

// TestGetConfigPath_FlagWins verifies --config beats the environment.
func TestGetConfigPath_FlagWins(t *testing.T) {
	t.Setenv(configEnvVar, "/env/config.yaml")

	if err := rootCmd.PersistentFlags().Set("config", "/flag/config.yaml"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	t.Cleanup(func() {
		_ = rootCmd.PersistentFlags().Set("config", "")
	})

	if path := getConfigPath(rootCmd); path != "/flag/config.yaml" {
		t.Errorf("getConfigPath() = %q, want /flag/config.yaml", path)
	}
}

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1.2.0", "v1.2.0"},
		{"v1.2.0", "v1.2.0"},
		{"dev", "dev"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := formatVersion(tt.in); got != tt.want {
			t.Errorf("formatVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionCmd.Run(versionCmd, nil)

	if !strings.HasPrefix(out.String(), "graylogic-fan dev (commit unknown") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestQueryInfo(t *testing.T) {
	color.NoColor = true

	dialer := &miiotest.FakeDialer{}
	ft := miiotest.NewFakeTransport("dmaker.fan.p5", "1234")
	dialer.Push(miiotest.DialResult{Transport: ft})

	var out bytes.Buffer
	if err := queryInfo(context.Background(), &out, dialer, "192.168.1.40", testToken); err != nil {
		t.Fatalf("queryInfo() error = %v", err)
	}

	for _, want := range []string{"192.168.1.40", "1234", "dmaker.fan.p5", "dmaker-p5"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "not a known fan") {
		t.Errorf("known model reported as unknown:\n%s", out.String())
	}
	if ft.Destroyed() != 1 {
		t.Errorf("transport destroyed %d times, want 1", ft.Destroyed())
	}
}

func TestQueryInfo_UnknownModel(t *testing.T) {
	color.NoColor = true

	dialer := &miiotest.FakeDialer{}
	dialer.Push(miiotest.DialResult{Transport: miiotest.NewFakeTransport("acme.fan.x1", "99")})

	var out bytes.Buffer
	if err := queryInfo(context.Background(), &out, dialer, "10.0.0.2", testToken); err != nil {
		t.Fatalf("queryInfo() error = %v", err)
	}
	if !strings.Contains(out.String(), "generic-miot") || !strings.Contains(out.String(), "not a known fan") {
		t.Errorf("unknown model output:\n%s", out.String())
	}
}

func TestQueryInfo_Errors(t *testing.T) {
	dialer := &miiotest.FakeDialer{}
	dialer.Push(miiotest.DialResult{Err: miio.ErrTimeout})

	err := queryInfo(context.Background(), &bytes.Buffer{}, dialer, "10.0.0.2", testToken)
	if !errors.Is(err, miio.ErrTimeout) {
		t.Errorf("dial failure error = %v, want ErrTimeout", err)
	}

	ft := miiotest.NewFakeTransport("dmaker.fan.p5", "1")
	ft.SetError(miio.ErrTimeout)
	dialer.Push(miiotest.DialResult{Transport: ft})

	err = queryInfo(context.Background(), &bytes.Buffer{}, dialer, "10.0.0.2", testToken)
	if err == nil || !strings.Contains(err.Error(), "miIO.info") {
		t.Errorf("call failure error = %v, want miIO.info failure", err)
	}
}
