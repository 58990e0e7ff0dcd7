package main

import (
	"testing"
	"time"

	"github.com/openpixel/pixood/internal/infrastructure/config"
	"github.com/openpixel/pixood/internal/scheduler"
	"github.com/openpixel/pixood/internal/store"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv("PIXOO_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("PIXOO_CONFIG", "/etc/pixood/config.yaml")
	if got := getConfigPath(); got != "/etc/pixood/config.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}

func TestSchedulerConfigConversion(t *testing.T) {
	got := schedulerConfig(config.SchedulerConfig{
		MinFrameDelayMS:   50,
		MaxRenderFailures: 10,
		PushRetries:       5,
		InitBudgetMS:      3000,
		RenderBudgetMS:    750,
		ShutdownGraceMS:   1000,
	})

	if got.MinFrameDelay != 50*time.Millisecond {
		t.Errorf("MinFrameDelay = %v", got.MinFrameDelay)
	}
	if got.MaxRenderFailures != 10 || got.PushRetries != 5 {
		t.Errorf("failure policy = %+v", got)
	}
	if got.InitBudget != 3*time.Second || got.RenderBudget != 750*time.Millisecond {
		t.Errorf("budgets = %+v", got)
	}
	if got.ShutdownGrace != time.Second {
		t.Errorf("ShutdownGrace = %v", got.ShutdownGrace)
	}
}

func TestSchedulerConfigDefaults(t *testing.T) {
	got := schedulerConfig(config.SchedulerConfig{})
	want := scheduler.DefaultConfig()
	if got != want {
		t.Errorf("zero config = %+v, want defaults %+v", got, want)
	}
}

func TestDeviceStateFromConfig(t *testing.T) {
	dc := config.DeviceConfig{
		ID:           "192.168.1.100",
		Type:         "pixoo64",
		Driver:       "real",
		Brightness:   80,
		DisplayOn:    true,
		StartupScene: "clock",
	}

	state := deviceState(dc, nil)
	if state.ID != "192.168.1.100" || state.Address != "192.168.1.100" {
		t.Errorf("identity = %q / %q", state.ID, state.Address)
	}
	if state.Name != "192.168.1.100" {
		t.Errorf("name default = %q, want device ID", state.Name)
	}
	if state.DriverKind != "real" || state.Brightness != 80 || state.StartupScene != "clock" {
		t.Errorf("state = %+v", state)
	}
}

func TestDeviceStateRecoversPersisted(t *testing.T) {
	dc := config.DeviceConfig{
		ID:           "192.168.1.100",
		Name:         "kitchen",
		Type:         "pixoo64",
		Driver:       "real",
		Brightness:   100,
		DisplayOn:    true,
		StartupScene: "empty",
	}
	persisted := map[string]store.PersistedDevice{
		"192.168.1.100": {
			ID:         "192.168.1.100",
			Brightness: 35,
			DisplayOn:  false,
			DriverKind: "mock",
			LastScene:  "clock",
		},
	}

	state := deviceState(dc, persisted)
	if state.Brightness != 35 || state.DisplayOn {
		t.Errorf("output settings not recovered: %+v", state)
	}
	if state.DriverKind != "mock" {
		t.Errorf("driver = %q, want recovered mock", state.DriverKind)
	}
	if state.StartupScene != "clock" {
		t.Errorf("startupScene = %q, want last running scene", state.StartupScene)
	}
}
