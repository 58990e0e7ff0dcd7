package watchdog

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/openpixel/pixood/internal/scene"
	"github.com/openpixel/pixood/internal/scheduler"
	"github.com/openpixel/pixood/internal/store"
)

// Watchdog action names, matched against DeviceWatchdogConfig.Action.
const (
	ActionRestart         = "restart"
	ActionFallbackScene   = "fallback-scene"
	ActionCommandSequence = "mqtt-command-sequence"
	ActionNotify          = "notify"
)

// Publisher ships the messages of an mqtt-command-sequence action.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Watchdog is the independent liveness checker.
//
// It runs on its own ticker, deliberately outside the scheduler's frame
// loops: if every scene on every device stalls, the watchdog is the
// component that still fires. A device counts as stalled when it is
// expected to be pushing (a self-looping scene in the running play
// state) but lastSeenTs has not advanced within the configured timeout.
// Two consecutive over-threshold checks are required before acting, so
// a single slow frame does not trigger remediation.
type Watchdog struct {
	interval time.Duration
	store    *store.Store
	sched    *scheduler.Scheduler
	registry *scene.Registry
	pub      Publisher
	log      *slog.Logger

	mu      sync.Mutex
	strikes map[string]int

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Deps carries the watchdog's dependencies.
type Deps struct {
	Store     *store.Store
	Scheduler *scheduler.Scheduler
	Registry  *scene.Registry
	Publisher Publisher
	Logger    *slog.Logger
}

// New creates a watchdog checking at the given interval.
func New(interval time.Duration, deps Deps) *Watchdog {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Watchdog{
		interval: interval,
		store:    deps.Store,
		sched:    deps.Scheduler,
		registry: deps.Registry,
		pub:      deps.Publisher,
		log:      log,
		strikes:  make(map[string]int),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the check loop.
func (w *Watchdog) Start() {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				w.CheckAll()
			}
		}
	}()
	w.log.Info("watchdog started", "interval", w.interval)
}

// Close stops the check loop and waits for it to exit.
func (w *Watchdog) Close() error {
	w.once.Do(func() { close(w.stop) })
	<-w.done
	return nil
}

// CheckAll runs one watchdog pass over every device.
func (w *Watchdog) CheckAll() {
	for _, st := range w.store.List() {
		w.check(st)
	}
}

// check evaluates one device and acts on the second consecutive strike.
func (w *Watchdog) check(st store.DeviceState) {
	if !w.shouldMonitor(st) {
		w.resetStrikes(st.ID)
		return
	}

	timeout := time.Duration(st.Watchdog.TimeoutMinutes) * time.Minute
	stalled := time.Since(st.Scene.LastSeenTS)
	if stalled <= timeout {
		w.resetStrikes(st.ID)
		return
	}

	w.mu.Lock()
	w.strikes[st.ID]++
	strikes := w.strikes[st.ID]
	w.mu.Unlock()

	w.log.Warn("device stalled",
		"device", st.ID,
		"scene", st.Scene.CurrentScene,
		"stalled", stalled,
		"strikes", strikes)

	if strikes < 2 {
		return
	}
	w.resetStrikes(st.ID)
	w.act(st)
}

// shouldMonitor decides whether a device is expected to be pushing
// frames right now.
func (w *Watchdog) shouldMonitor(st store.DeviceState) bool {
	if !st.Watchdog.Enabled || st.Watchdog.TimeoutMinutes <= 0 {
		return false
	}
	if !st.Watchdog.CheckWhenOff && !st.DisplayOn {
		return false
	}
	if st.Scene.CurrentScene == "" || st.Scene.PlayState != store.PlayRunning {
		return false
	}
	desc, err := w.registry.Lookup(st.Scene.CurrentScene)
	if err != nil || !desc.WantsLoop {
		return false
	}
	return !st.Scene.LastSeenTS.IsZero()
}

// act performs the configured remediation. The watchdog never
// propagates failures; it logs and moves on.
func (w *Watchdog) act(st store.DeviceState) {
	action := st.Watchdog.Action
	w.store.Emit(store.Event{
		Type:     store.EventWatchdog,
		DeviceID: st.ID,
		Scene:    st.Scene.CurrentScene,
		Error:    "watchdog triggered: " + action,
	})

	switch action {
	case ActionRestart:
		if err := w.sched.ResetDevice(st.ID); err != nil {
			w.log.Error("watchdog reset failed", "device", st.ID, "error", err)
			return
		}
		if st.Scene.CurrentScene != "" {
			if err := w.sched.SwitchScene(st.ID, st.Scene.CurrentScene, nil); err != nil {
				w.log.Error("watchdog re-switch failed",
					"device", st.ID,
					"scene", st.Scene.CurrentScene,
					"error", err)
			}
		}

	case ActionFallbackScene:
		if st.Watchdog.FallbackScene == "" {
			w.log.Error("watchdog fallback action without fallback scene", "device", st.ID)
			return
		}
		if err := w.sched.SwitchScene(st.ID, st.Watchdog.FallbackScene, nil); err != nil {
			w.log.Error("watchdog fallback switch failed", "device", st.ID, "error", err)
		}

	case ActionCommandSequence:
		if w.pub == nil {
			w.log.Error("watchdog command sequence without publisher", "device", st.ID)
			return
		}
		for _, cmd := range st.Watchdog.Commands {
			if err := w.pub.Publish(cmd.Topic, []byte(cmd.Payload), 0, false); err != nil {
				w.log.Error("watchdog command publish failed",
					"device", st.ID,
					"topic", cmd.Topic,
					"error", err)
			}
		}

	case ActionNotify, "":
		w.log.Warn("device requires attention", "device", st.ID, "scene", st.Scene.CurrentScene)

	default:
		w.log.Error("unknown watchdog action", "device", st.ID, "action", action)
	}
}

func (w *Watchdog) resetStrikes(deviceID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.strikes, deviceID)
}
