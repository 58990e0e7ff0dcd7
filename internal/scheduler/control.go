package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/openpixel/pixood/internal/device"
	"github.com/openpixel/pixood/internal/store"
)

// PauseScene suspends a device's frame loop without losing state.
// Idempotent; pausing an already-paused device does nothing.
func (s *Scheduler) PauseScene(deviceID string) error {
	l, err := s.lane(deviceID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	snap, err := s.store.Update(deviceID, func(st *store.DeviceState) {
		if st.Scene.PlayState == store.PlayRunning {
			st.Scene.PlayState = store.PlayPaused
			changed = true
		}
	})
	if err != nil {
		return err
	}
	if changed {
		s.store.Emit(store.Event{
			Type:       store.EventPaused,
			DeviceID:   deviceID,
			Scene:      snap.Scene.CurrentScene,
			Generation: snap.Scene.Generation,
		})
	}
	return nil
}

// ResumeScene resumes a paused frame loop. If a wakeup fired during
// the pause, a fresh frame is requested immediately; the generation is
// untouched either way. Idempotent.
func (s *Scheduler) ResumeScene(deviceID string) error {
	l, err := s.lane(deviceID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	snap, err := s.store.Update(deviceID, func(st *store.DeviceState) {
		if st.Scene.PlayState == store.PlayPaused {
			st.Scene.PlayState = store.PlayRunning
			changed = true
		}
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if l.resumePending && snap.Scene.Status == store.StatusRunning {
		l.resumePending = false
		s.scheduleWakeupLocked(deviceID, l, snap.Scene.Generation, s.cfg.MinFrameDelay)
	}

	s.store.Emit(store.Event{
		Type:       store.EventResumed,
		DeviceID:   deviceID,
		Scene:      snap.Scene.CurrentScene,
		Generation: snap.Scene.Generation,
	})
	return nil
}

// StopScene cancels the device's loop, runs the scene's cleanup,
// clears the framebuffer and bumps the generation so any stragglers
// are discarded. Display power is untouched. Idempotent.
func (s *Scheduler) StopScene(deviceID string) error {
	l, err := s.lane(deviceID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return s.stopLocked(deviceID, l)
}

// stopLocked is StopScene under an already-held lane mutex.
func (s *Scheduler) stopLocked(deviceID string, l *lane) error {
	l.cancelTimerLocked()

	outgoing := l.renderer
	outgoingScene := l.scene
	l.renderer = nil
	l.scene = ""
	l.payload = nil
	l.renderFails = 0
	l.resumePending = false
	l.framesLeft = -1
	l.lastDelay = 0

	if outgoing != nil {
		cctx := s.sceneContext(deviceID, outgoingScene, l.driver, nil)
		if err := outgoing.Cleanup(cctx); err != nil {
			s.log.Warn("scene cleanup failed",
				"device", deviceID,
				"scene", outgoingScene,
				"error", err)
		}
		s.store.ClearSceneState(deviceID, outgoingScene)
	}

	if l.driver != nil {
		l.driver.Clear()
	}

	var gen uint64
	snap, err := s.store.Update(deviceID, func(st *store.DeviceState) {
		st.Scene.Generation++
		st.Scene.TargetScene = ""
		st.Scene.Status = store.StatusStopped
		st.Scene.PlayState = store.PlayStopped
		gen = st.Scene.Generation
	})
	if err != nil {
		return err
	}

	s.store.Emit(store.Event{
		Type:       store.EventStopped,
		DeviceID:   deviceID,
		Scene:      snap.Scene.CurrentScene,
		Generation: gen,
		Status:     store.StatusStopped,
	})
	return nil
}

// ResetDevice cancels the loop, soft-resets the hardware and
// re-initializes the driver. The generation increments so frames of
// the interrupted scene cannot surface after the reset.
func (s *Scheduler) ResetDevice(deviceID string) error {
	l, err := s.lane(deviceID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cancelTimerLocked()

	var gen uint64
	snap, err := s.store.Update(deviceID, func(st *store.DeviceState) {
		st.Scene.Generation++
		st.Scene.TargetScene = ""
		st.Scene.Status = store.StatusStopped
		st.Scene.PlayState = store.PlayStopped
		gen = st.Scene.Generation
	})
	if err != nil {
		return err
	}

	ctx, cancel := s.resetCtx()
	defer cancel()
	if err := l.driver.Reset(ctx); err != nil {
		return fmt.Errorf("reset %s: %w", deviceID, err)
	}
	l.driver.Clear()
	if err := l.driver.Init(); err != nil {
		s.log.Warn("driver re-init after reset failed", "device", deviceID, "error", err)
	}
	s.applyOutputSettings(deviceID, l.driver, snap.Brightness, snap.DisplayOn)

	s.store.Emit(store.Event{
		Type:       store.EventReset,
		DeviceID:   deviceID,
		Generation: gen,
	})
	return nil
}

// SwapDriver replaces a device's driver in place.
//
// The running scene is stopped first, the old driver closed, the new
// one built and initialized, and the prior scene re-switched onto the
// new driver best-effort. The generation therefore increments exactly
// twice: once for the stop, once for the re-switch.
func (s *Scheduler) SwapDriver(deviceID string, kind device.Kind) error {
	l, err := s.lane(deviceID)
	if err != nil {
		return err
	}

	st, err := s.store.Get(deviceID)
	if err != nil {
		return err
	}
	priorScene := st.Scene.CurrentScene

	l.mu.Lock()
	if err := s.stopLocked(deviceID, l); err != nil {
		l.mu.Unlock()
		return err
	}

	drv, err := s.factory.New(deviceID, st.Type, st.Address, kind)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	old := l.driver
	l.driver = drv
	l.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if err := drv.Init(); err != nil {
		s.log.Warn("new driver init failed", "device", deviceID, "error", err)
	}
	s.applyOutputSettings(deviceID, drv, st.Brightness, st.DisplayOn)

	snap, err := s.store.Update(deviceID, func(ds *store.DeviceState) {
		ds.DriverKind = string(kind)
	})
	if err != nil {
		return err
	}
	s.store.Emit(store.Event{
		Type:       store.EventDriverChanged,
		DeviceID:   deviceID,
		Generation: snap.Scene.Generation,
	})

	if priorScene != "" {
		if err := s.SwitchScene(deviceID, priorScene, nil); err != nil {
			s.log.Warn("re-switch after driver swap failed",
				"device", deviceID,
				"scene", priorScene,
				"error", err)
		}
	}
	return nil
}

// SetBrightness validates, pushes to hardware and records the level.
func (s *Scheduler) SetBrightness(deviceID string, level int) error {
	if level < 0 || level > 100 {
		return device.ErrInvalidBrightness
	}
	l, err := s.lane(deviceID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.driver.SetBrightness(level); err != nil && !errors.Is(err, device.ErrUnsupported) {
		return err
	}
	_, err = s.store.Update(deviceID, func(st *store.DeviceState) {
		st.Brightness = level
	})
	return err
}

// SetDisplayOn flips display power and records it.
func (s *Scheduler) SetDisplayOn(deviceID string, on bool) error {
	l, err := s.lane(deviceID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.driver.SetDisplayOn(on); err != nil && !errors.Is(err, device.ErrUnsupported) {
		return err
	}
	_, err = s.store.Update(deviceID, func(st *store.DeviceState) {
		st.DisplayOn = on
	})
	return err
}

// DeviceMetrics is the per-device throughput snapshot served over REST.
type DeviceMetrics struct {
	FPS        float64       `json:"fps"`
	Frametime  time.Duration `json:"frametime"`
	PushCount  int64         `json:"pushCount"`
	ErrorCount int64         `json:"errorCount"`
	LastSeenTS time.Time     `json:"lastSeenTs"`
}

// Metrics returns push statistics for one device. FPS derives from the
// loop's current frame delay, zero when no loop is running.
func (s *Scheduler) Metrics(deviceID string) (DeviceMetrics, error) {
	l, err := s.lane(deviceID)
	if err != nil {
		return DeviceMetrics{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.driver.Metrics()
	out := DeviceMetrics{
		Frametime:  m.LastFrametime,
		PushCount:  m.PushCount,
		ErrorCount: m.ErrorCount,
		LastSeenTS: m.LastSeen,
	}
	if l.lastDelay > 0 && l.timer != nil {
		out.FPS = float64(time.Second) / float64(l.lastDelay)
	}
	return out, nil
}

// Driver exposes the live driver for diagnostics. The caller must not
// retain it past the request.
func (s *Scheduler) Driver(deviceID string) (device.Driver, error) {
	l, err := s.lane(deviceID)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.driver, nil
}
