package watchdog

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/openpixel/pixood/internal/device"
	"github.com/openpixel/pixood/internal/infrastructure/config"
	"github.com/openpixel/pixood/internal/scene"
	"github.com/openpixel/pixood/internal/scheduler"
	"github.com/openpixel/pixood/internal/store"
)

type capturePublisher struct {
	mu       sync.Mutex
	messages []struct{ topic, payload string }
}

func (c *capturePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, struct{ topic, payload string }{topic, string(payload)})
	return nil
}

type wdRig struct {
	wd     *Watchdog
	store  *store.Store
	sched  *scheduler.Scheduler
	pub    *capturePublisher
	events *[]store.Event
	evMu   *sync.Mutex
}

func newWatchdogRig(t *testing.T) *wdRig {
	t.Helper()

	st := store.New(filepath.Join(t.TempDir(), "devices.json"), nil)
	reg := scene.NewRegistry()
	if err := scene.RegisterBuiltins(reg); err != nil {
		t.Fatal(err)
	}

	cfg := scheduler.DefaultConfig()
	cfg.MinFrameDelay = time.Millisecond
	cfg.PushBackoff = time.Millisecond
	sched := scheduler.New(cfg, scheduler.Deps{Store: st, Registry: reg, Factory: &device.Factory{}})
	t.Cleanup(func() { sched.Close() })

	var evMu sync.Mutex
	var events []store.Event
	st.Subscribe(func(ev store.Event) {
		evMu.Lock()
		defer evMu.Unlock()
		events = append(events, ev)
	})

	pub := &capturePublisher{}
	wd := New(time.Hour, Deps{Store: st, Scheduler: sched, Registry: reg, Publisher: pub})

	return &wdRig{wd: wd, store: st, sched: sched, pub: pub, events: &events, evMu: &evMu}
}

func (r *wdRig) addDevice(t *testing.T, id string, wd config.DeviceWatchdogConfig) *device.Mock {
	t.Helper()
	err := r.sched.AddDevice(store.DeviceState{
		ID:         id,
		Type:       "pixoo64",
		DriverKind: "mock",
		Brightness: 100,
		DisplayOn:  true,
		Watchdog:   wd,
	})
	if err != nil {
		t.Fatal(err)
	}
	drv, err := r.sched.Driver(id)
	if err != nil {
		t.Fatal(err)
	}
	return drv.(*device.Mock)
}

// stall rewinds lastSeenTs so the device looks frozen.
func (r *wdRig) stall(t *testing.T, id string, age time.Duration) {
	t.Helper()
	if _, err := r.store.Update(id, func(st *store.DeviceState) {
		st.Scene.LastSeenTS = time.Now().Add(-age)
	}); err != nil {
		t.Fatal(err)
	}
}

func (r *wdRig) watchdogEvents() []store.Event {
	r.evMu.Lock()
	defer r.evMu.Unlock()
	var out []store.Event
	for _, ev := range *r.events {
		if ev.Type == store.EventWatchdog {
			out = append(out, ev)
		}
	}
	return out
}

func enabledConfig(action string) config.DeviceWatchdogConfig {
	return config.DeviceWatchdogConfig{
		Enabled:        true,
		TimeoutMinutes: 1,
		Action:         action,
	}
}

func TestTwoStrikeHysteresis(t *testing.T) {
	rig := newWatchdogRig(t)
	mock := rig.addDevice(t, "dev1", enabledConfig(ActionRestart))
	rig.sched.SwitchScene("dev1", "clock", nil)

	// Freeze pushes so lastSeenTs cannot advance, then age it past the
	// timeout.
	mock.SetPushHook(func(string) error { return errors.New("frozen") })
	rig.stall(t, "dev1", 2*time.Minute)

	st, _ := rig.store.Get("dev1")
	genBefore := st.Scene.Generation

	// First strike: no action yet.
	rig.wd.CheckAll()
	if len(rig.watchdogEvents()) != 0 {
		t.Fatal("watchdog acted on first strike")
	}
	st, _ = rig.store.Get("dev1")
	if st.Scene.Generation != genBefore {
		t.Fatal("generation moved on first strike")
	}

	// Second strike: restart runs (reset + re-switch, two increments)
	// and a notify event goes out.
	rig.stall(t, "dev1", 2*time.Minute)
	rig.wd.CheckAll()

	if len(rig.watchdogEvents()) != 1 {
		t.Fatalf("watchdog events = %d, want 1", len(rig.watchdogEvents()))
	}
	st, _ = rig.store.Get("dev1")
	if st.Scene.Generation != genBefore+2 {
		t.Errorf("generation = %d, want %d", st.Scene.Generation, genBefore+2)
	}
	if st.Scene.CurrentScene != "clock" {
		t.Errorf("currentScene = %q, want clock restored", st.Scene.CurrentScene)
	}
}

func TestRecoveryClearsStrikes(t *testing.T) {
	rig := newWatchdogRig(t)
	mock := rig.addDevice(t, "dev1", enabledConfig(ActionRestart))
	rig.sched.SwitchScene("dev1", "clock", nil)
	mock.SetPushHook(func(string) error { return errors.New("frozen") })

	rig.stall(t, "dev1", 2*time.Minute)
	rig.wd.CheckAll() // strike one

	// The device recovers before the second check.
	rig.stall(t, "dev1", 0)
	rig.wd.CheckAll()

	// The next stall must need two fresh strikes again.
	rig.stall(t, "dev1", 2*time.Minute)
	rig.wd.CheckAll()
	if len(rig.watchdogEvents()) != 0 {
		t.Error("stale strike carried over a recovery")
	}
}

func TestFallbackSceneAction(t *testing.T) {
	rig := newWatchdogRig(t)
	cfg := enabledConfig(ActionFallbackScene)
	cfg.FallbackScene = "empty"
	mock := rig.addDevice(t, "dev1", cfg)
	rig.sched.SwitchScene("dev1", "clock", nil)
	mock.SetPushHook(func(string) error { return errors.New("frozen") })

	rig.stall(t, "dev1", 2*time.Minute)
	rig.wd.CheckAll()
	rig.stall(t, "dev1", 2*time.Minute)
	rig.wd.CheckAll()

	st, _ := rig.store.Get("dev1")
	if st.Scene.CurrentScene != "empty" {
		t.Errorf("currentScene = %q, want fallback empty", st.Scene.CurrentScene)
	}
}

func TestCommandSequenceAction(t *testing.T) {
	rig := newWatchdogRig(t)
	cfg := enabledConfig(ActionCommandSequence)
	cfg.Commands = []config.WatchdogCommand{
		{Topic: "power/plug1/set", Payload: "off"},
		{Topic: "power/plug1/set", Payload: "on"},
	}
	mock := rig.addDevice(t, "dev1", cfg)
	rig.sched.SwitchScene("dev1", "clock", nil)
	mock.SetPushHook(func(string) error { return errors.New("frozen") })

	rig.stall(t, "dev1", 2*time.Minute)
	rig.wd.CheckAll()
	rig.stall(t, "dev1", 2*time.Minute)
	rig.wd.CheckAll()

	rig.pub.mu.Lock()
	defer rig.pub.mu.Unlock()
	if len(rig.pub.messages) != 2 {
		t.Fatalf("published commands = %d, want 2", len(rig.pub.messages))
	}
	if rig.pub.messages[0].payload != "off" || rig.pub.messages[1].payload != "on" {
		t.Errorf("command order wrong: %+v", rig.pub.messages)
	}
}

func TestDisplayOffSuppressesAction(t *testing.T) {
	rig := newWatchdogRig(t)
	cfg := enabledConfig(ActionRestart)
	cfg.CheckWhenOff = false
	mock := rig.addDevice(t, "dev1", cfg)
	rig.sched.SwitchScene("dev1", "clock", nil)
	mock.SetPushHook(func(string) error { return errors.New("frozen") })
	rig.sched.SetDisplayOn("dev1", false)

	rig.stall(t, "dev1", 2*time.Minute)
	rig.wd.CheckAll()
	rig.stall(t, "dev1", 2*time.Minute)
	rig.wd.CheckAll()

	if len(rig.watchdogEvents()) != 0 {
		t.Error("watchdog acted while display off and checkWhenOff=false")
	}
}

func TestNonLoopingSceneNotMonitored(t *testing.T) {
	rig := newWatchdogRig(t)
	rig.addDevice(t, "dev1", enabledConfig(ActionRestart))
	rig.sched.SwitchScene("dev1", "fill", nil) // one-shot scene

	rig.stall(t, "dev1", 2*time.Minute)
	rig.wd.CheckAll()
	rig.stall(t, "dev1", 2*time.Minute)
	rig.wd.CheckAll()

	if len(rig.watchdogEvents()) != 0 {
		t.Error("watchdog monitored a one-shot scene")
	}
}

func TestDisabledWatchdogNeverActs(t *testing.T) {
	rig := newWatchdogRig(t)
	mock := rig.addDevice(t, "dev1", config.DeviceWatchdogConfig{Enabled: false, TimeoutMinutes: 1, Action: ActionRestart})
	rig.sched.SwitchScene("dev1", "clock", nil)
	mock.SetPushHook(func(string) error { return errors.New("frozen") })

	for i := 0; i < 4; i++ {
		rig.stall(t, "dev1", 2*time.Minute)
		rig.wd.CheckAll()
	}
	if len(rig.watchdogEvents()) != 0 {
		t.Error("disabled watchdog acted")
	}
}
