package schedule

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/openpixel/pixood/internal/device"
	"github.com/openpixel/pixood/internal/infrastructure/config"
	"github.com/openpixel/pixood/internal/scene"
	"github.com/openpixel/pixood/internal/scheduler"
	"github.com/openpixel/pixood/internal/store"
)

func newTestScheduler(t *testing.T) (*scheduler.Scheduler, *store.Store) {
	t.Helper()
	st := store.New(filepath.Join(t.TempDir(), "devices.json"), nil)
	reg := scene.NewRegistry()
	if err := scene.RegisterBuiltins(reg); err != nil {
		t.Fatal(err)
	}
	cfg := scheduler.DefaultConfig()
	cfg.MinFrameDelay = time.Millisecond
	sched := scheduler.New(cfg, scheduler.Deps{Store: st, Registry: reg, Factory: &device.Factory{}})
	t.Cleanup(func() { sched.Close() })
	return sched, st
}

func TestNewValidatesCronExpressions(t *testing.T) {
	sched, _ := newTestScheduler(t)

	_, err := New([]config.ScheduleEntry{
		{Cron: "not a cron", Device: "dev1", Scene: "clock"},
	}, sched, nil)
	if err == nil {
		t.Fatal("invalid cron expression accepted")
	}
}

func TestNewAcceptsStandardExpressions(t *testing.T) {
	sched, _ := newTestScheduler(t)

	r, err := New([]config.ScheduleEntry{
		{Cron: "0 7 * * *", Device: "dev1", Scene: "clock"},
		{Cron: "30 22 * * 1-5", Device: "dev1", Scene: "empty"},
	}, sched, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestFireSwitchesScene(t *testing.T) {
	sched, st := newTestScheduler(t)
	if err := sched.AddDevice(store.DeviceState{
		ID:         "dev1",
		Type:       "pixoo64",
		DriverKind: "mock",
		Brightness: 100,
		DisplayOn:  true,
	}); err != nil {
		t.Fatal(err)
	}

	r, err := New(nil, sched, nil)
	if err != nil {
		t.Fatal(err)
	}
	r.fire(config.ScheduleEntry{Cron: "* * * * *", Device: "dev1", Scene: "fill"})

	got, _ := st.Get("dev1")
	if got.Scene.CurrentScene != "fill" {
		t.Errorf("currentScene = %q, want fill", got.Scene.CurrentScene)
	}
}

func TestFireUnknownDeviceDoesNotPanic(t *testing.T) {
	sched, _ := newTestScheduler(t)
	r, err := New(nil, sched, nil)
	if err != nil {
		t.Fatal(err)
	}
	r.fire(config.ScheduleEntry{Cron: "* * * * *", Device: "ghost", Scene: "fill"})
}

func TestStartAndClose(t *testing.T) {
	sched, _ := newTestScheduler(t)
	r, err := New([]config.ScheduleEntry{
		{Cron: "0 0 1 1 *", Device: "dev1", Scene: "clock"},
	}, sched, nil)
	if err != nil {
		t.Fatal(err)
	}
	r.Start()
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
