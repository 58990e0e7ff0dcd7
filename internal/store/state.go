package store

import (
	"time"

	"github.com/openpixel/pixood/internal/infrastructure/config"
)

// Status is the scheduler-visible lifecycle state of a device.
type Status string

// Status constants.
const (
	StatusIdle      Status = "idle"
	StatusSwitching Status = "switching"
	StatusRunning   Status = "running"
	StatusStopped   Status = "stopped"
)

// PlayState gates the frame loop without touching the lifecycle state.
type PlayState string

// PlayState constants.
const (
	PlayRunning PlayState = "running"
	PlayPaused  PlayState = "paused"
	PlayStopped PlayState = "stopped"
)

// SceneState is the per-device scheduler state.
//
// Generation only moves forward, and only on switch, stop or reset.
// Wakeups tagged with an older generation are discarded unseen.
type SceneState struct {
	CurrentScene string    `json:"currentScene,omitempty"`
	TargetScene  string    `json:"targetScene,omitempty"`
	Generation   uint64    `json:"generationId"`
	Status       Status    `json:"status"`
	PlayState    PlayState `json:"playState"`
	Degraded     bool      `json:"degraded,omitempty"`
	LastFrameTS  time.Time `json:"lastFrameTs,omitempty"`
	LastSeenTS   time.Time `json:"lastSeenTs,omitempty"`
}

// DeviceState is everything the store tracks for one device.
type DeviceState struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Address      string `json:"address,omitempty"`
	Type         string `json:"type"`
	DriverKind   string `json:"driver"`
	Brightness   int    `json:"brightness"`
	DisplayOn    bool   `json:"displayOn"`
	StartupScene string `json:"startupScene,omitempty"`

	Watchdog config.DeviceWatchdogConfig `json:"watchdog,omitempty"`

	Scene SceneState `json:"scene"`
}

// EventType classifies a state transition event.
type EventType string

// Event types emitted through the store's subscription spine.
const (
	EventDeviceAdded   EventType = "device_added"
	EventDeviceRemoved EventType = "device_removed"
	EventSwitching     EventType = "switching"
	EventRunning       EventType = "running"
	EventSwitchFailed  EventType = "switch_failed"
	EventStopped       EventType = "stopped"
	EventPaused        EventType = "paused"
	EventResumed       EventType = "resumed"
	EventFrame         EventType = "frame"
	EventRenderError   EventType = "render_error"
	EventDegraded      EventType = "degraded"
	EventSceneHalted   EventType = "scene_halted"
	EventReset         EventType = "reset"
	EventDriverChanged EventType = "driver_changed"
	EventWatchdog      EventType = "watchdog"
)

// Event is one state transition, published to all subscribers.
//
// Listeners receive events after the mutation they describe has been
// applied; the embedded fields are a snapshot, not live references.
type Event struct {
	Type         EventType     `json:"type"`
	DeviceID     string        `json:"deviceId"`
	Scene        string        `json:"scene,omitempty"`
	TargetScene  string        `json:"targetScene,omitempty"`
	Generation   uint64        `json:"generationId"`
	Status       Status        `json:"status,omitempty"`
	Error        string        `json:"error,omitempty"`
	Frametime    time.Duration `json:"frametime,omitempty"`
	PushCount    int64         `json:"pushCount,omitempty"`
	TS           time.Time     `json:"timestamp"`
}
