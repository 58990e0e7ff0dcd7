package device

import (
	"context"
	"time"
)

// Kind identifies the driver implementation family.
type Kind string

// Kind constants.
const (
	KindReal Kind = "real"
	KindMock Kind = "mock"
)

// ParseKind validates a driver kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindReal, KindMock:
		return Kind(s), nil
	default:
		return "", ErrUnknownDriverKind
	}
}

// Color is a single RGBA pixel value.
type Color struct {
	R, G, B, A uint8
}

// Common colors.
var (
	Black = Color{0, 0, 0, 255}
	White = Color{255, 255, 255, 255}
)

// Point is a pixel coordinate. The origin is the top-left corner.
type Point struct {
	X, Y int
}

// Align controls horizontal text placement relative to the anchor point.
type Align string

// Align constants.
const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Metrics holds per-driver push statistics.
type Metrics struct {
	PushCount     int64         `json:"pushCount"`
	ErrorCount    int64         `json:"errorCount"`
	LastSeen      time.Time     `json:"lastSeenTs"`
	LastFrametime time.Duration `json:"lastFrametime"`
}

// Canvas is the drawing surface exposed to scenes.
//
// All primitives clip against the device's capability width/height;
// drawing outside the canvas is not an error, the out-of-range pixels
// are simply dropped.
type Canvas interface {
	// Capabilities returns the display's capability descriptor.
	Capabilities() Capabilities

	// Clear resets the framebuffer to black (does not push).
	Clear()

	DrawPixel(p Point, c Color)
	DrawLine(a, b Point, c Color)
	FillRect(a, b Point, c Color)
	DrawRect(a, b Point, c Color)
	DrawText(s string, p Point, c Color, align Align)
	DrawNumber(value float64, p Point, c Color, align Align, decimals int)
}

// Driver mediates all hardware I/O for one device.
//
// A Driver owns its framebuffer. Scenes draw onto the Canvas portion;
// the scheduler ships frames with Push. Optional operations (brightness,
// display power, icons, tones) return ErrUnsupported when the device's
// capabilities do not include them. ErrDriver, by contrast, signals an
// I/O failure on a supported operation.
//
// Thread Safety: drivers are NOT internally serialized across operations;
// the scheduler guarantees per-device serial access.
type Driver interface {
	Canvas

	// Init establishes readiness. Idempotent.
	Init() error

	// IsReady reports whether the driver can accept pushes.
	IsReady() bool

	// Kind returns the driver implementation family.
	Kind() Kind

	// Push atomically ships the current framebuffer to hardware and
	// returns the number of pixels that changed since the last push.
	Push(sceneName string) (int, error)

	// SetBrightness sets display brightness (0-100).
	SetBrightness(level int) error

	// SetDisplayOn turns the display panel on or off.
	SetDisplayOn(on bool) error

	// SetIcon shows a device-native icon by ID.
	SetIcon(id int) error

	// PlayTone plays a tone at the given frequency for the given duration.
	PlayTone(freqHz, durationMS int) error

	// Metrics returns push statistics.
	Metrics() Metrics

	// Reset issues a device-level soft reset. May block up to the
	// context deadline.
	Reset(ctx context.Context) error

	// Close releases driver resources. The driver must not be used after.
	Close() error
}
