// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 5556 {
		t.Errorf("Server.Port = %d, want 5556", cfg.Server.Port)
	}
	if cfg.Serial.BaudRate != 115200 {
		t.Errorf("Serial.BaudRate = %d, want 115200", cfg.Serial.BaudRate)
	}
	if cfg.Serial.CommandTimeout != 2*time.Second {
		t.Errorf("Serial.CommandTimeout = %s, want 2s", cfg.Serial.CommandTimeout)
	}
	if cfg.Serial.StartupTimeout != 5*time.Second {
		t.Errorf("Serial.StartupTimeout = %s, want 5s", cfg.Serial.StartupTimeout)
	}
	if len(cfg.Serial.ScanPatterns) != 0 {
		t.Errorf("Serial.ScanPatterns = %v, want none", cfg.Serial.ScanPatterns)
	}
	if cfg.HTTP.Enabled || cfg.MQTT.Enabled {
		t.Error("optional surfaces should be disabled by default")
	}
	if got := cfg.GetEndpoint(); got != "tcp://*:5556" {
		t.Errorf("GetEndpoint() = %q", got)
	}
}

func TestLoad_Flags(t *testing.T) {
	flags := NewFlagSet("test")
	err := flags.Parse([]string{"--port", "6000", "--scan", "/dev/ttyACM*,/dev/ttyS*", "--baudrate", "9600"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Serial.BaudRate != 9600 {
		t.Errorf("Serial.BaudRate = %d, want 9600", cfg.Serial.BaudRate)
	}
	want := []string{"/dev/ttyACM*", "/dev/ttyS*"}
	if strings.Join(cfg.Serial.ScanPatterns, " ") != strings.Join(want, " ") {
		t.Errorf("Serial.ScanPatterns = %v, want %v", cfg.Serial.ScanPatterns, want)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("GREYMATTER_SERVER_PORT", "7000")
	t.Setenv("GREYMATTER_LOGGING_LEVEL", "debug")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greymatter.yaml")
	content := `
server:
  port: 5600
serial:
  scan_patterns: ["/dev/ttyACM*"]
  command_timeout: 500ms
http:
  enabled: true
  port: 9000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	flags := NewFlagSet("test")
	if err := flags.Parse([]string{"--config", path}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 5600 {
		t.Errorf("Server.Port = %d, want 5600", cfg.Server.Port)
	}
	if cfg.Serial.CommandTimeout != 500*time.Millisecond {
		t.Errorf("Serial.CommandTimeout = %s", cfg.Serial.CommandTimeout)
	}
	if !cfg.HTTP.Enabled || cfg.GetHTTPAddr() != "0.0.0.0:9000" {
		t.Errorf("HTTP = %+v", cfg.HTTP)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	flags := NewFlagSet("test")
	if err := flags.Parse([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(flags); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Host: "*", Port: 5556},
			Serial:  SerialConfig{BaudRate: 115200, CommandTimeout: time.Second, StartupTimeout: time.Second},
			Logging: LoggingConfig{Level: "info"},
			App:     AppConfig{Environment: "production"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"empty host", func(c *Config) { c.Server.Host = "" }},
		{"zero baud", func(c *Config) { c.Serial.BaudRate = 0 }},
		{"zero timeout", func(c *Config) { c.Serial.CommandTimeout = 0 }},
		{"http port clash", func(c *Config) { c.HTTP.Enabled = true; c.HTTP.Port = 5556 }},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true }},
		{"mqtt bad qos", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "tcp://x:1883"; c.MQTT.QoS = 3 }},
		{"bad environment", func(c *Config) { c.App.Environment = "qa" }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	if err := validate(valid()); err != nil {
		t.Fatalf("validate(valid) error = %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfig_Environment(t *testing.T) {
	tests := []struct {
		app   AppConfig
		prod  bool
		debug bool
	}{
		{AppConfig{Environment: "production"}, true, false},
		{AppConfig{Environment: "development"}, false, true},
		{AppConfig{Environment: "staging", Debug: true}, false, true},
		{AppConfig{Environment: "staging"}, false, false},
	}

	for _, tt := range tests {
		cfg := &Config{App: tt.app}
		if cfg.IsProduction() != tt.prod || cfg.IsDebugEnabled() != tt.debug {
			t.Errorf("%+v: IsProduction() = %v, IsDebugEnabled() = %v", tt.app, cfg.IsProduction(), cfg.IsDebugEnabled())
		}
	}
}
