package scene

import (
	"log/slog"
	"time"

	"github.com/openpixel/pixood/internal/device"
)

// Result tells the scheduler what to do after a render pass.
//
// Delay is the requested time until the next render of the same scene;
// the scheduler clamps it to its minimum frame delay. Terminal marks a
// one-shot scene whose loop ends after this frame.
type Result struct {
	Delay    time.Duration
	Terminal bool
}

// Context carries everything a renderer needs for one device activation.
//
// Renderers themselves are stateless and shared across devices; state
// that must survive between Render calls of the same activation lives
// in the context's bag via Get and Set. The bag is cleared when the
// scene is switched away, so renderers never see another activation's
// leftovers.
type Context struct {
	// DeviceID identifies the device being rendered.
	DeviceID string

	// Scene is the active scene name.
	Scene string

	// Canvas is the device's drawing surface. Never nil.
	Canvas device.Canvas

	// Payload is the optional JSON object given with the scene switch.
	// May be nil.
	Payload map[string]any

	// Log is scoped to the device and scene. Never nil.
	Log *slog.Logger

	// Get reads a value from the activation's state bag.
	Get func(key string) (any, bool)

	// Set writes a value to the activation's state bag.
	Set func(key string, value any)
}

// Renderer produces frames for one scene.
//
// Init runs once when the scene becomes active, before the first Render.
// Render draws one frame onto ctx.Canvas and returns the delay until
// the next one. Cleanup runs once when the scene is switched away or
// stopped; it must not assume Init succeeded.
//
// Thread Safety: the scheduler never calls a renderer concurrently for
// the same device, but the same Renderer value serves many devices at
// once. Keep per-activation state in the context bag.
type Renderer interface {
	Init(ctx *Context) error
	Render(ctx *Context) (Result, error)
	Cleanup(ctx *Context) error
}

// PayloadString reads a string field from a switch payload, with fallback.
func PayloadString(payload map[string]any, key, fallback string) string {
	if payload == nil {
		return fallback
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return fallback
}

// PayloadBool reads a boolean field from a switch payload, with fallback.
func PayloadBool(payload map[string]any, key string, fallback bool) bool {
	if payload == nil {
		return fallback
	}
	if v, ok := payload[key].(bool); ok {
		return v
	}
	return fallback
}

// PayloadInt reads a numeric field from a switch payload, with fallback.
// JSON numbers decode as float64, so both forms are accepted.
func PayloadInt(payload map[string]any, key string, fallback int) int {
	if payload == nil {
		return fallback
	}
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}
