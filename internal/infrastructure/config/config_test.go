package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PIXOO_DATA_DIR", "PIXOO_MQTT_HOST", "PIXOO_MQTT_USERNAME",
		"PIXOO_MQTT_PASSWORD", "PIXOO_API_PORT", "PIXOO_API_AUTH",
		"PIXOO_API_ENABLED", "PIXOO_DEVICES", "PIXOO_STATE_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadValidConfig(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
logging:
  level: debug
  format: text
mqtt:
  broker:
    host: broker.local
    port: 8883
    client_id: pixood-test
api:
  port: 9000
devices:
  - id: 192.168.1.100
    name: kitchen
    type: pixoo64
    driver: real
    brightness: 80
    display_on: true
    startup_scene: clock
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.MQTT.Broker.Host != "broker.local" || cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("broker = %+v", cfg.MQTT.Broker)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("api.port = %d", cfg.API.Port)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].StartupScene != "clock" {
		t.Errorf("devices = %+v", cfg.Devices)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Broker.Host != "localhost" || cfg.API.Port != 10829 {
		t.Errorf("defaults = broker %q api %d", cfg.MQTT.Broker.Host, cfg.API.Port)
	}
	if !cfg.Storage.JournalEnabled || cfg.Storage.JournalRetentionDays != 30 {
		t.Errorf("storage defaults = %+v", cfg.Storage)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "devices: [oops: {")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PIXOO_MQTT_HOST", "env-broker")
	t.Setenv("PIXOO_API_PORT", "7777")
	t.Setenv("PIXOO_API_AUTH", "admin:hunter2")
	t.Setenv("PIXOO_DATA_DIR", "/var/lib/pixood")
	t.Setenv("PIXOO_DEVICES", "10.0.0.5=matrix32x8:mock")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("broker host = %q", cfg.MQTT.Broker.Host)
	}
	if cfg.API.Port != 7777 || cfg.API.Auth != "admin:hunter2" {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Storage.DataDir != "/var/lib/pixood" {
		t.Errorf("data dir = %q", cfg.Storage.DataDir)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].ID != "10.0.0.5" || cfg.Devices[0].Driver != "mock" {
		t.Errorf("devices = %+v", cfg.Devices)
	}
}

func TestLoadBadEnvPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PIXOO_API_PORT", "not-a-port")
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() expected error for bad PIXOO_API_PORT, got nil")
	}
}

func TestParseDeviceShorthand(t *testing.T) {
	devices, err := ParseDeviceShorthand("192.168.1.100=pixoo64:real; 10.0.0.5=matrix32x8:mock")
	if err != nil {
		t.Fatalf("ParseDeviceShorthand() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(devices))
	}
	if devices[0].ID != "192.168.1.100" || devices[0].Type != "pixoo64" || devices[0].Driver != "real" {
		t.Errorf("first = %+v", devices[0])
	}
	if devices[1].ID != "10.0.0.5" || devices[1].Driver != "mock" {
		t.Errorf("second = %+v", devices[1])
	}
	if devices[0].Brightness != 100 || !devices[0].DisplayOn {
		t.Errorf("shorthand defaults = %+v", devices[0])
	}
}

func TestParseDeviceShorthandDriverDefaultsToReal(t *testing.T) {
	devices, err := ParseDeviceShorthand("192.168.1.100=pixoo64")
	if err != nil {
		t.Fatalf("ParseDeviceShorthand() error = %v", err)
	}
	if devices[0].Driver != "real" {
		t.Errorf("driver = %q, want real", devices[0].Driver)
	}
}

func TestParseDeviceShorthandMalformed(t *testing.T) {
	for _, input := range []string{"justanip", "=pixoo64:real", "192.168.1.100=:mock"} {
		if _, err := ParseDeviceShorthand(input); err == nil {
			t.Errorf("ParseDeviceShorthand(%q) expected error, got nil", input)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "missing broker host",
			mutate:  func(c *Config) { c.MQTT.Broker.Host = "" },
			wantErr: "mqtt.broker.host",
		},
		{
			name:    "bad api auth format",
			mutate:  func(c *Config) { c.API.Auth = "nopassword" },
			wantErr: "api.auth",
		},
		{
			name: "duplicate device id",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{
					{ID: "a", Type: "pixoo64", Driver: "real"},
					{ID: "a", Type: "pixoo64", Driver: "real"},
				}
			},
			wantErr: "duplicate id",
		},
		{
			name: "bad driver kind",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "a", Type: "pixoo64", Driver: "virtual"}}
			},
			wantErr: "driver must be real or mock",
		},
		{
			name: "brightness out of range",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "a", Type: "pixoo64", Driver: "real", Brightness: 150}}
			},
			wantErr: "brightness",
		},
		{
			name: "incomplete schedule",
			mutate: func(c *Config) {
				c.Schedules = []ScheduleEntry{{Cron: "* * * * *"}}
			},
			wantErr: "schedules[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestStateFilePath(t *testing.T) {
	clearEnv(t)
	cfg := defaultConfig()
	cfg.Storage.DataDir = "/data"
	if got := cfg.StateFilePath(); got != filepath.Join("/data", "devices.json") {
		t.Errorf("StateFilePath() = %q", got)
	}

	cfg.Storage.StateFile = "/elsewhere/devices.json"
	if got := cfg.StateFilePath(); got != "/elsewhere/devices.json" {
		t.Errorf("StateFilePath() override = %q", got)
	}
}

func TestJournalPath(t *testing.T) {
	cfg := defaultConfig()
	cfg.Storage.DataDir = "/data"
	if got := cfg.JournalPath(); got != filepath.Join("/data", "journal.db") {
		t.Errorf("JournalPath() = %q", got)
	}
}
