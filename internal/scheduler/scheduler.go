package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/openpixel/pixood/internal/device"
	"github.com/openpixel/pixood/internal/scene"
	"github.com/openpixel/pixood/internal/store"
)

// Domain-specific errors. Use errors.Is() in calling code.
var (
	// ErrSceneInit is returned when a scene's Init fails during a switch.
	ErrSceneInit = errors.New("scheduler: scene init failed")

	// ErrClosed is returned for operations after shutdown has begun.
	ErrClosed = errors.New("scheduler: shut down")
)

// Config tunes the scheduler's loop and failure policy.
type Config struct {
	// MinFrameDelay is the floor applied to every scene-requested delay,
	// preventing runaway loops from scenes that return 0.
	MinFrameDelay time.Duration

	// MaxRenderFailures is the consecutive render failure count that
	// halts a scene's loop.
	MaxRenderFailures int

	// PushRetries bounds push attempts after the first failure.
	PushRetries int

	// PushBackoff is the linear backoff unit between push retries.
	PushBackoff time.Duration

	// InitBudget is the soft ceiling for scene init and cleanup calls.
	// Exceeding it is logged, never enforced by killing the call.
	InitBudget time.Duration

	// RenderBudget is the soft ceiling for a single render call.
	RenderBudget time.Duration

	// ResetTimeout bounds a driver reset.
	ResetTimeout time.Duration

	// ShutdownGrace bounds the wait for in-flight frames at shutdown.
	ShutdownGrace time.Duration
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		MinFrameDelay:     20 * time.Millisecond,
		MaxRenderFailures: 5,
		PushRetries:       3,
		PushBackoff:       250 * time.Millisecond,
		InitBudget:        2 * time.Second,
		RenderBudget:      500 * time.Millisecond,
		ResetTimeout:      30 * time.Second,
		ShutdownGrace:     2 * time.Second,
	}
}

// Scheduler drives one frame loop per device.
//
// Each device owns a lane: its driver, its wakeup timer and its switch
// bookkeeping, all serialized by the lane mutex. Distinct devices never
// contend. The authoritative scene state (generation, status, play
// state) lives in the store; the lane holds only what the store cannot,
// the live driver and renderer handles and the armed timer.
type Scheduler struct {
	cfg      Config
	store    *store.Store
	registry *scene.Registry
	factory  *device.Factory
	log      *slog.Logger

	mu     sync.RWMutex
	lanes  map[string]*lane
	closed bool
}

// lane is the per-device scheduling state.
type lane struct {
	mu sync.Mutex

	driver   device.Driver
	renderer scene.Renderer
	scene    string
	payload  map[string]any

	timer *time.Timer

	switching     bool
	pending       *pendingSwitch
	resumePending bool

	renderFails int
	framesLeft  int // -1 means unlimited
	lastDelay   time.Duration
}

type pendingSwitch struct {
	desc    scene.Descriptor
	payload map[string]any
}

// Deps carries the scheduler's dependencies.
type Deps struct {
	Store    *store.Store
	Registry *scene.Registry
	Factory  *device.Factory
	Logger   *slog.Logger
}

// New creates a scheduler. Devices are attached with AddDevice.
func New(cfg Config, deps Deps) *Scheduler {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.MinFrameDelay <= 0 {
		cfg.MinFrameDelay = DefaultConfig().MinFrameDelay
	}
	if cfg.MaxRenderFailures <= 0 {
		cfg.MaxRenderFailures = DefaultConfig().MaxRenderFailures
	}
	return &Scheduler{
		cfg:      cfg,
		store:    deps.Store,
		registry: deps.Registry,
		factory:  deps.Factory,
		log:      log,
		lanes:    make(map[string]*lane),
	}
}

// AddDevice registers a device, builds its driver and brings the
// hardware to the configured brightness and display power.
func (s *Scheduler) AddDevice(st store.DeviceState) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, exists := s.lanes[st.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", store.ErrDeviceExists, st.ID)
	}
	s.mu.Unlock()

	drv, err := s.factory.New(st.ID, st.Type, st.Address, device.Kind(st.DriverKind))
	if err != nil {
		return err
	}
	if err := drv.Init(); err != nil {
		s.log.Warn("driver init failed, device starts degraded",
			"device", st.ID,
			"error", err)
		st.Scene.Degraded = true
	}
	s.applyOutputSettings(st.ID, drv, st.Brightness, st.DisplayOn)

	if err := s.store.AddDevice(st); err != nil {
		drv.Close()
		return err
	}

	s.mu.Lock()
	s.lanes[st.ID] = &lane{driver: drv, framesLeft: -1}
	s.mu.Unlock()

	s.log.Info("device registered",
		"device", st.ID,
		"type", st.Type,
		"driver", st.DriverKind)
	return nil
}

// RemoveDevice stops the device's loop, closes its driver and drops it
// from the store.
func (s *Scheduler) RemoveDevice(deviceID string) error {
	l, err := s.lane(deviceID)
	if err != nil {
		return err
	}

	s.StopScene(deviceID)

	s.mu.Lock()
	delete(s.lanes, deviceID)
	s.mu.Unlock()

	l.mu.Lock()
	drv := l.driver
	l.driver = nil
	l.mu.Unlock()
	if drv != nil {
		drv.Close()
	}

	return s.store.RemoveDevice(deviceID)
}

// Close stops every device's loop and waits for in-flight pushes up to
// the shutdown grace window, then closes the drivers.
//
// Stopping a device blocks on its lane mutex, which is exactly the
// wait for any render+push in flight; the grace window bounds that
// wait across all devices.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	ids := make([]string, 0, len(s.lanes))
	for id := range s.lanes {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.StopScene(id); err != nil {
				s.log.Warn("stop during shutdown failed", "device", id, "error", err)
			}
		}(id)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGrace):
		s.log.Warn("shutdown grace expired with frames in flight")
	}

	s.mu.Lock()
	s.closed = true
	lanes := make([]*lane, 0, len(s.lanes))
	for _, l := range s.lanes {
		lanes = append(lanes, l)
	}
	s.mu.Unlock()

	for _, l := range lanes {
		l.mu.Lock()
		l.cancelTimerLocked()
		if l.driver != nil {
			l.driver.Close()
		}
		l.mu.Unlock()
	}
	return nil
}

// lane fetches the per-device lane.
func (s *Scheduler) lane(deviceID string) (*lane, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	l, ok := s.lanes[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownDevice, deviceID)
	}
	return l, nil
}

// cancelTimerLocked stops the armed wakeup, if any. Idempotent.
// Callers hold l.mu.
func (l *lane) cancelTimerLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// sceneContext builds the renderer context for one (device, scene) pair.
func (s *Scheduler) sceneContext(deviceID, sceneName string, canvas device.Canvas, payload map[string]any) *scene.Context {
	return &scene.Context{
		DeviceID: deviceID,
		Scene:    sceneName,
		Canvas:   canvas,
		Payload:  payload,
		Log:      s.log.With("device", deviceID, "scene", sceneName),
		Get: func(key string) (any, bool) {
			return s.store.SceneValue(deviceID, sceneName, key)
		},
		Set: func(key string, value any) {
			s.store.SetSceneValue(deviceID, sceneName, key, value)
		},
	}
}

// applyOutputSettings pushes brightness and display power to hardware,
// tolerating unsupported operations.
func (s *Scheduler) applyOutputSettings(deviceID string, drv device.Driver, brightness int, displayOn bool) {
	if err := drv.SetBrightness(brightness); err != nil && !errors.Is(err, device.ErrUnsupported) {
		s.log.Warn("apply brightness failed", "device", deviceID, "error", err)
	}
	if err := drv.SetDisplayOn(displayOn); err != nil && !errors.Is(err, device.ErrUnsupported) {
		s.log.Warn("apply display power failed", "device", deviceID, "error", err)
	}
}

// clampDelay applies the minimum frame delay floor.
func (s *Scheduler) clampDelay(d time.Duration) time.Duration {
	if d < s.cfg.MinFrameDelay {
		return s.cfg.MinFrameDelay
	}
	return d
}

// resetCtx returns a bounded context for driver resets.
func (s *Scheduler) resetCtx() (context.Context, context.CancelFunc) {
	timeout := s.cfg.ResetTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ResetTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}
