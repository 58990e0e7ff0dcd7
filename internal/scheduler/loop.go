package scheduler

import (
	"time"

	"github.com/openpixel/pixood/internal/store"
)

// frameResult is the scheduler-internal outcome of one render pass.
type frameResult struct {
	loop   bool
	halted bool
	delay  time.Duration
}

// scheduleWakeupLocked arms the device's single wakeup timer, tagged
// with the generation it was scheduled under. Callers hold l.mu.
func (s *Scheduler) scheduleWakeupLocked(deviceID string, l *lane, gen uint64, delay time.Duration) {
	l.cancelTimerLocked()
	l.timer = time.AfterFunc(delay, func() {
		s.onWake(deviceID, gen)
	})
}

// onWake services one frame wakeup.
//
// The stale-frame gate lives here: a wakeup tagged with a generation
// older than the device's current one is discarded without rendering,
// pushing or rescheduling. A wakeup that fires while paused renders
// nothing but leaves a marker so Resume can pick the loop back up.
func (s *Scheduler) onWake(deviceID string, gen uint64) {
	l, err := s.lane(deviceID)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.timer = nil

	st, err := s.store.Get(deviceID)
	if err != nil {
		return
	}
	if st.Scene.Generation != gen {
		return
	}
	if st.Scene.PlayState == store.PlayPaused {
		l.resumePending = true
		return
	}
	if l.renderer == nil {
		return
	}

	res := s.renderFrame(deviceID, l, gen)
	if res.loop {
		s.scheduleWakeupLocked(deviceID, l, gen, res.delay)
		return
	}
	if !res.halted {
		// Clean loop end: the scene declared itself finished.
		s.store.Update(deviceID, func(ds *store.DeviceState) {
			ds.Scene.Status = store.StatusIdle
		})
	}
}

// renderFrame runs one render+push pass for the active scene and
// decides whether the loop continues. Callers hold l.mu.
func (s *Scheduler) renderFrame(deviceID string, l *lane, gen uint64) frameResult {
	ctx := s.sceneContext(deviceID, l.scene, l.driver, l.payload)

	start := time.Now()
	res, err := l.renderer.Render(ctx)
	if took := time.Since(start); took > s.cfg.RenderBudget && s.cfg.RenderBudget > 0 {
		s.log.Warn("scene render over budget",
			"device", deviceID,
			"scene", l.scene,
			"took", took)
	}

	if err != nil {
		l.renderFails++
		s.log.Error("scene render failed",
			"device", deviceID,
			"scene", l.scene,
			"consecutive", l.renderFails,
			"error", err)
		s.store.Emit(store.Event{
			Type:       store.EventRenderError,
			DeviceID:   deviceID,
			Scene:      l.scene,
			Generation: gen,
			Error:      err.Error(),
		})

		if l.renderFails >= s.cfg.MaxRenderFailures {
			s.store.Emit(store.Event{
				Type:       store.EventSceneHalted,
				DeviceID:   deviceID,
				Scene:      l.scene,
				Generation: gen,
				Error:      err.Error(),
			})
			return frameResult{halted: true}
		}

		delay := res.Delay
		if delay <= 0 {
			delay = l.lastDelay
		}
		if delay <= 0 {
			return frameResult{halted: true}
		}
		return frameResult{loop: true, delay: s.clampDelay(delay)}
	}

	l.renderFails = 0
	s.push(deviceID, l, gen)

	if l.framesLeft > 0 {
		l.framesLeft--
		if l.framesLeft == 0 {
			return frameResult{}
		}
	}
	if res.Terminal {
		return frameResult{}
	}

	delay := res.Delay
	if ov := intervalOverride(l.payload); ov > 0 {
		delay = ov
	}
	delay = s.clampDelay(delay)
	l.lastDelay = delay
	return frameResult{loop: true, delay: delay}
}

// push ships the framebuffer with bounded linear-backoff retries. On
// exhaustion the device is marked degraded and the loop carries on; a
// later successful push clears the mark. Callers hold l.mu.
func (s *Scheduler) push(deviceID string, l *lane, gen uint64) {
	retries := s.cfg.PushRetries
	if retries < 0 {
		retries = 0
	}
	attempts := 1 + retries

	var pushErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * s.cfg.PushBackoff)
		}
		if _, pushErr = l.driver.Push(l.scene); pushErr == nil {
			break
		}
	}

	if pushErr != nil {
		s.log.Error("push retries exhausted, device degraded",
			"device", deviceID,
			"scene", l.scene,
			"attempts", attempts,
			"error", pushErr)
		already := false
		s.store.Update(deviceID, func(st *store.DeviceState) {
			already = st.Scene.Degraded
			st.Scene.Degraded = true
		})
		if already {
			return
		}
		s.store.Emit(store.Event{
			Type:       store.EventDegraded,
			DeviceID:   deviceID,
			Scene:      l.scene,
			Generation: gen,
			Error:      pushErr.Error(),
		})
		return
	}

	now := time.Now()
	wasDegraded := false
	s.store.Update(deviceID, func(st *store.DeviceState) {
		wasDegraded = st.Scene.Degraded
		st.Scene.Degraded = false
		st.Scene.LastFrameTS = now
		st.Scene.LastSeenTS = now
	})
	if wasDegraded {
		s.log.Info("device recovered from degraded state", "device", deviceID)
	}

	m := l.driver.Metrics()
	s.store.Emit(store.Event{
		Type:       store.EventFrame,
		DeviceID:   deviceID,
		Scene:      l.scene,
		Generation: gen,
		Frametime:  m.LastFrametime,
		PushCount:  m.PushCount,
	})
}
