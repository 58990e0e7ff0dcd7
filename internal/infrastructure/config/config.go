package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for pixood.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Watchdog  WatchdogConfig  `yaml:"watchdog"`
	Devices   []DeviceConfig  `yaml:"devices"`
	Schedules []ScheduleEntry `yaml:"schedules"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Auth     string           `yaml:"auth"` // "user:pass", empty disables auth
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	// DataDir is the base directory for persisted state and the journal.
	DataDir string `yaml:"data_dir"`

	// StateFile overrides the devices state file path.
	// If empty, <data_dir>/devices.json is used.
	StateFile string `yaml:"state_file"`

	// JournalEnabled controls the sqlite event journal.
	JournalEnabled bool `yaml:"journal_enabled"`

	// JournalRetentionDays is how long journal entries are kept.
	JournalRetentionDays int `yaml:"journal_retention_days"`
}

// SchedulerConfig contains scene scheduler tuning.
type SchedulerConfig struct {
	// MinFrameDelayMS is the enforced floor for loop delays returned by
	// scenes. Prevents runaway render loops.
	MinFrameDelayMS int `yaml:"min_frame_delay_ms"`

	// MaxRenderFailures is the number of consecutive render failures
	// after which a looping scene is halted.
	MaxRenderFailures int `yaml:"max_render_failures"`

	// PushRetries is the number of push attempts before a device is
	// marked degraded.
	PushRetries int `yaml:"push_retries"`

	// InitBudgetMS is the soft ceiling for scene init/cleanup calls.
	InitBudgetMS int `yaml:"init_budget_ms"`

	// RenderBudgetMS is the soft ceiling for a single render call.
	RenderBudgetMS int `yaml:"render_budget_ms"`

	// ShutdownGraceMS is how long StopAll waits for in-flight pushes.
	ShutdownGraceMS int `yaml:"shutdown_grace_ms"`
}

// WatchdogConfig contains the global watchdog settings.
// Per-device thresholds and actions live in DeviceWatchdogConfig.
type WatchdogConfig struct {
	CheckIntervalSeconds int `yaml:"check_interval_seconds"`
}

// DeviceConfig describes a single display device.
type DeviceConfig struct {
	// ID is the stable device identity, typically its IP address.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// Type is the device profile key (e.g. "pixoo64", "matrix32x8").
	Type string `yaml:"type"`

	// Driver selects the driver kind: "real" or "mock".
	Driver string `yaml:"driver"`

	Brightness   int                  `yaml:"brightness"`
	DisplayOn    bool                 `yaml:"display_on"`
	StartupScene string               `yaml:"startup_scene"`
	Watchdog     DeviceWatchdogConfig `yaml:"watchdog"`
}

// DeviceWatchdogConfig contains per-device liveness monitoring settings.
type DeviceWatchdogConfig struct {
	Enabled        bool   `yaml:"enabled"`
	TimeoutMinutes int    `yaml:"timeout_minutes"`
	Action         string `yaml:"action"` // restart | fallback-scene | mqtt-command-sequence | notify
	FallbackScene  string `yaml:"fallback_scene"`
	CheckWhenOff   bool   `yaml:"check_when_off"`

	// Commands is the message sequence for the mqtt-command-sequence action.
	Commands []WatchdogCommand `yaml:"commands"`
}

// WatchdogCommand is a single message in an mqtt-command-sequence action.
type WatchdogCommand struct {
	Topic   string `yaml:"topic"`
	Payload string `yaml:"payload"`
}

// ScheduleEntry is a cron-driven scene switch.
type ScheduleEntry struct {
	Cron   string `yaml:"cron"`
	Device string `yaml:"device"`
	Scene  string `yaml:"scene"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PIXOO_SECTION_KEY
// For example: PIXOO_DATA_DIR, PIXOO_API_PORT, PIXOO_MQTT_HOST
//
// A missing file is not an error: defaults plus environment variables are
// used, so the daemon can run from env alone (container deployments).
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be parsed or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file (optional)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
		// Run on defaults + environment
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Apply environment variable overrides
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "pixood",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    10829,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Storage: StorageConfig{
			DataDir:              "./data",
			JournalEnabled:       true,
			JournalRetentionDays: 30,
		},
		Scheduler: SchedulerConfig{
			MinFrameDelayMS:   20,
			MaxRenderFailures: 5,
			PushRetries:       3,
			InitBudgetMS:      2000,
			RenderBudgetMS:    500,
			ShutdownGraceMS:   2000,
		},
		Watchdog: WatchdogConfig{
			CheckIntervalSeconds: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PIXOO_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Storage
	if v := os.Getenv("PIXOO_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	// MQTT
	if v := os.Getenv("PIXOO_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PIXOO_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PIXOO_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("PIXOO_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PIXOO_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}
	if v := os.Getenv("PIXOO_API_AUTH"); v != "" {
		cfg.API.Auth = v
	}
	if v := os.Getenv("PIXOO_API_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PIXOO_API_ENABLED: %w", err)
		}
		cfg.API.Enabled = enabled
	}

	// Device registration shorthand: "<ip>=<type>:<driver>" joined by ";"
	// Example: PIXOO_DEVICES="192.168.1.100=pixoo64:real;10.0.0.5=matrix32x8:mock"
	if v := os.Getenv("PIXOO_DEVICES"); v != "" {
		devices, err := ParseDeviceShorthand(v)
		if err != nil {
			return fmt.Errorf("PIXOO_DEVICES: %w", err)
		}
		cfg.Devices = append(cfg.Devices, devices...)
	}

	return nil
}

// ParseDeviceShorthand parses the PIXOO_DEVICES registration format.
//
// Format: "<ip>=<type>:<driver>" entries joined by ";". The driver part is
// optional and defaults to "real".
//
// Parameters:
//   - s: The shorthand string
//
// Returns:
//   - []DeviceConfig: Parsed device entries with defaults applied
//   - error: If an entry is malformed
func ParseDeviceShorthand(s string) ([]DeviceConfig, error) {
	var devices []DeviceConfig
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		id, spec, ok := strings.Cut(entry, "=")
		if !ok || id == "" || spec == "" {
			return nil, fmt.Errorf("malformed device entry %q (want <ip>=<type>:<driver>)", entry)
		}

		deviceType, driver, ok := strings.Cut(spec, ":")
		if !ok {
			driver = "real"
		}
		if deviceType == "" {
			return nil, fmt.Errorf("malformed device entry %q: missing type", entry)
		}

		devices = append(devices, DeviceConfig{
			ID:         strings.TrimSpace(id),
			Name:       strings.TrimSpace(id),
			Type:       strings.TrimSpace(deviceType),
			Driver:     strings.TrimSpace(driver),
			Brightness: 100,
			DisplayOn:  true,
		})
	}
	return devices, nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}

	// API validation
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		if c.API.Auth != "" && !strings.Contains(c.API.Auth, ":") {
			errs = append(errs, "api.auth must be in user:pass format")
		}
	}

	// Storage validation
	if c.Storage.DataDir == "" {
		errs = append(errs, "storage.data_dir is required")
	}

	// Scheduler validation
	if c.Scheduler.MinFrameDelayMS < 0 {
		errs = append(errs, "scheduler.min_frame_delay_ms must not be negative")
	}

	// Device validation
	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if d.ID == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].id is required", i))
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Sprintf("devices[%d]: duplicate id %q", i, d.ID))
		}
		seen[d.ID] = true
		if d.Type == "" {
			errs = append(errs, fmt.Sprintf("devices[%d] (%s): type is required", i, d.ID))
		}
		switch d.Driver {
		case "", "real", "mock":
		default:
			errs = append(errs, fmt.Sprintf("devices[%d] (%s): driver must be real or mock", i, d.ID))
		}
		if d.Brightness < 0 || d.Brightness > 100 {
			errs = append(errs, fmt.Sprintf("devices[%d] (%s): brightness must be 0-100", i, d.ID))
		}
	}

	// Schedule validation
	for i, s := range c.Schedules {
		if s.Cron == "" || s.Device == "" || s.Scene == "" {
			errs = append(errs, fmt.Sprintf("schedules[%d]: cron, device and scene are required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// StateFilePath resolves the devices state file location.
//
// Priority order: explicit storage.state_file → PIXOO_STATE_FILE environment
// override → <data_dir>/devices.json.
func (c *Config) StateFilePath() string {
	if c.Storage.StateFile != "" {
		return c.Storage.StateFile
	}
	if v := os.Getenv("PIXOO_STATE_FILE"); v != "" {
		return v
	}
	return filepath.Join(c.Storage.DataDir, "devices.json")
}

// JournalPath returns the sqlite journal location inside the data directory.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Storage.DataDir, "journal.db")
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
