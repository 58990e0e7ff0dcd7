package scheduler

import (
	"fmt"
	"time"

	"github.com/openpixel/pixood/internal/scene"
	"github.com/openpixel/pixood/internal/store"
)

// SwitchScene transitions a device to the named scene.
//
// If a switch is already executing for the device, the request is kept
// as the pending switch (newest wins, older pending requests are
// overwritten) and runs as soon as the current one completes. On
// return from a directly-executed switch the new generation has been
// recorded and the first frame has been requested.
func (s *Scheduler) SwitchScene(deviceID, sceneName string, payload map[string]any) error {
	desc, err := s.registry.Lookup(sceneName)
	if err != nil {
		return err
	}
	l, err := s.lane(deviceID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.switching {
		l.pending = &pendingSwitch{desc: desc, payload: payload}
		l.mu.Unlock()
		return nil
	}
	l.switching = true
	l.mu.Unlock()

	for {
		err = s.doSwitch(deviceID, l, desc, payload)

		l.mu.Lock()
		next := l.pending
		l.pending = nil
		if next == nil {
			l.switching = false
			l.mu.Unlock()
			return err
		}
		l.mu.Unlock()
		desc, payload = next.desc, next.payload
	}
}

// doSwitch runs the switch protocol once. The caller has claimed the
// lane's switching flag, so no second switch can interleave.
func (s *Scheduler) doSwitch(deviceID string, l *lane, desc scene.Descriptor, payload map[string]any) error {
	l.mu.Lock()
	l.cancelTimerLocked()
	outgoing := l.renderer
	outgoingScene := l.scene
	drv := l.driver

	var gen uint64
	snap, err := s.store.Update(deviceID, func(st *store.DeviceState) {
		if st.Scene.CurrentScene == desc.Name {
			// A re-switch tears the scene down and re-initializes it; it
			// is not current while the switch is in flight, and status
			// switching requires targetScene to differ from currentScene.
			st.Scene.CurrentScene = ""
		}
		st.Scene.Status = store.StatusSwitching
		st.Scene.TargetScene = desc.Name
		st.Scene.Generation++
		gen = st.Scene.Generation
	})
	if err != nil {
		l.mu.Unlock()
		return err
	}
	l.mu.Unlock()

	s.store.Emit(store.Event{
		Type:        store.EventSwitching,
		DeviceID:    deviceID,
		Scene:       snap.Scene.CurrentScene,
		TargetScene: desc.Name,
		Generation:  gen,
		Status:      store.StatusSwitching,
	})

	// Outgoing cleanup runs outside the lane mutex: it may block up to
	// its budget and must not stall pause/stop requests for the device.
	if outgoing != nil {
		cctx := s.sceneContext(deviceID, outgoingScene, drv, nil)
		start := time.Now()
		if err := outgoing.Cleanup(cctx); err != nil {
			s.log.Warn("scene cleanup failed",
				"device", deviceID,
				"scene", outgoingScene,
				"error", err)
		}
		if d := time.Since(start); d > s.cfg.InitBudget {
			s.log.Warn("scene cleanup over budget",
				"device", deviceID,
				"scene", outgoingScene,
				"took", d)
		}
		s.store.ClearSceneState(deviceID, outgoingScene)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// A stop or reset may have bumped the generation while cleanup ran;
	// this switch is then superseded and must not touch the device.
	cur, err := s.store.Get(deviceID)
	if err != nil {
		return err
	}
	if cur.Scene.Generation != gen {
		return nil
	}

	ctx := s.sceneContext(deviceID, desc.Name, l.driver, payload)

	if scene.PayloadBool(payload, "clear", false) {
		l.driver.Clear()
	}

	start := time.Now()
	initErr := desc.Renderer.Init(ctx)
	if d := time.Since(start); d > s.cfg.InitBudget {
		s.log.Warn("scene init over budget",
			"device", deviceID,
			"scene", desc.Name,
			"took", d)
	}
	if initErr != nil {
		return s.failSwitch(deviceID, desc.Name, gen, initErr)
	}

	l.renderer = desc.Renderer
	l.scene = desc.Name
	l.payload = payload
	l.renderFails = 0
	l.resumePending = false
	l.framesLeft = framesBudget(payload)

	res := s.renderFrame(deviceID, l, gen)

	s.store.Update(deviceID, func(st *store.DeviceState) {
		st.Scene.CurrentScene = desc.Name
		st.Scene.TargetScene = ""
		st.Scene.Status = store.StatusRunning
		st.Scene.PlayState = store.PlayRunning
	})

	if res.loop {
		s.scheduleWakeupLocked(deviceID, l, gen, res.delay)
	}

	s.store.Emit(store.Event{
		Type:       store.EventRunning,
		DeviceID:   deviceID,
		Scene:      desc.Name,
		Generation: gen,
		Status:     store.StatusRunning,
	})
	return nil
}

// failSwitch reverts a device to its prior scene after a failed init.
// The incremented generation stays, so frames of the aborted target can
// never surface. Callers hold l.mu.
func (s *Scheduler) failSwitch(deviceID, target string, gen uint64, cause error) error {
	snap, _ := s.store.Update(deviceID, func(st *store.DeviceState) {
		st.Scene.TargetScene = ""
		if st.Scene.CurrentScene != "" {
			st.Scene.Status = store.StatusRunning
		} else {
			st.Scene.Status = store.StatusIdle
		}
	})

	s.store.Emit(store.Event{
		Type:        store.EventSwitchFailed,
		DeviceID:    deviceID,
		Scene:       snap.Scene.CurrentScene,
		TargetScene: target,
		Generation:  gen,
		Error:       cause.Error(),
	})
	return fmt.Errorf("%w: %s on %s: %v", ErrSceneInit, target, deviceID, cause)
}

// framesBudget reads the optional frame budget from a switch payload.
// Absent or negative means unlimited; zero is promoted to one because a
// switched-to scene always renders at least one frame.
func framesBudget(payload map[string]any) int {
	n := scene.PayloadInt(payload, "frames", -1)
	if n < 0 {
		return -1
	}
	if n == 0 {
		return 1
	}
	return n
}

// intervalOverride reads the optional per-switch delay override.
func intervalOverride(payload map[string]any) time.Duration {
	ms := scene.PayloadInt(payload, "interval", 0)
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
