package router

import (
	"time"

	"github.com/openpixel/pixood/internal/store"
)

// eventBufferSize bounds the queue between store emissions and bus
// publishes.
const eventBufferSize = 256

// onEvent is the store-event listener. It runs on the emitting
// goroutine, often inside a device's frame loop with the lane mutex
// held, so it only enqueues. When the buffer is full the oldest queued
// event is dropped; a congested broker must never stall a frame loop.
func (r *Router) onEvent(ev store.Event) {
	for {
		select {
		case r.events <- ev:
			return
		default:
		}
		select {
		case dropped := <-r.events:
			r.log.Warn("event backlog full, dropping oldest",
				"type", string(dropped.Type),
				"device", dropped.DeviceID)
		default:
		}
	}
}

// dispatchEvents publishes queued events until Close.
func (r *Router) dispatchEvents() {
	for {
		select {
		case <-r.done:
			return
		case ev := <-r.events:
			r.publishEvent(ev)
		}
	}
}

// publishEvent fans one state transition out to the bus.
func (r *Router) publishEvent(ev store.Event) {
	switch ev.Type {
	case store.EventSwitching:
		r.publishSceneState(ev)

	case store.EventRunning:
		r.publishSceneState(ev)
		r.publishRetainedString(r.topics.DeviceScene(ev.DeviceID), ev.Scene)

	case store.EventFrame:
		r.publishJSON(r.topics.DeviceOK(ev.DeviceID), map[string]any{
			"scene":       ev.Scene,
			"frametime":   ev.Frametime.Milliseconds(),
			"pushCount":   ev.PushCount,
			"version":     r.info.Version,
			"buildNumber": r.info.BuildNumber,
			"gitCommit":   r.info.GitCommit,
		}, false)

	case store.EventDriverChanged:
		st, err := r.store.Get(ev.DeviceID)
		if err != nil {
			return
		}
		r.publishRetainedString(r.topics.DeviceDriver(ev.DeviceID), st.DriverKind)

	case store.EventSwitchFailed, store.EventDegraded, store.EventSceneHalted, store.EventRenderError:
		r.publishJSON(r.topics.DeviceError(ev.DeviceID), map[string]any{
			"error":     string(ev.Type) + ": " + ev.Error,
			"timestamp": time.Now().UnixMilli(),
		}, false)
	}
}

// publishRetainedString publishes a bare-string marker topic.
func (r *Router) publishRetainedString(topic, value string) {
	if err := r.bus.Publish(topic, []byte(value), 0, true); err != nil {
		r.log.Warn("outbound publish failed", "topic", topic, "error", err)
	}
}

// publishSceneState emits the switching/running transition payload to
// the scene/state topic under the prefix the device was last addressed
// with.
func (r *Router) publishSceneState(ev store.Event) {
	current := ev.Scene
	status := "running"
	if ev.Type == store.EventSwitching {
		status = "switching"
	}

	topic := r.topics.SceneState(r.commandPrefix(ev.DeviceID), ev.DeviceID)
	r.publishJSON(topic, map[string]any{
		"status":       status,
		"currentScene": current,
		"targetScene":  ev.TargetScene,
		"generationId": ev.Generation,
		"version":      r.info.Version,
		"buildNumber":  r.info.BuildNumber,
		"gitCommit":    r.info.GitCommit,
	}, false)
}
