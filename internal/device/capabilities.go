package device

import "fmt"

// Capabilities describes what a display device can do.
//
// It is an immutable value object referenced by drivers and scenes.
// Width, Height and ColorDepth are always positive for a valid profile;
// the boolean flags gate optional driver operations.
type Capabilities struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	ColorDepth int `json:"color_depth"` // bits per pixel

	Audio            bool `json:"audio"`
	NativeText       bool `json:"native_text"`
	NativeIcons      bool `json:"native_icons"`
	NativePrimitives bool `json:"native_primitives"`
	CustomApp        bool `json:"custom_app"`

	MinBrightness int `json:"min_brightness"`
	MaxBrightness int `json:"max_brightness"`
}

// Valid reports whether the capability descriptor describes a usable display.
func (c Capabilities) Valid() bool {
	return c.Width*c.Height*c.ColorDepth > 0
}

// HasBrightness reports whether the device supports brightness control.
func (c Capabilities) HasBrightness() bool {
	return c.MaxBrightness > c.MinBrightness
}

// PixelCount returns the total number of pixels on the display.
func (c Capabilities) PixelCount() int {
	return c.Width * c.Height
}

// Transport identifies how a real driver reaches its hardware.
type Transport string

// Transport constants.
const (
	TransportHTTP Transport = "http"
	TransportBus  Transport = "bus"
)

// Profile binds a device type key to its capabilities and transport.
type Profile struct {
	Type      string
	Transport Transport
	Caps      Capabilities
}

// builtinProfiles are the known device profiles.
//
// pixoo64 is the square 64x64 HTTP-driven panel; matrix32x8 is the wide
// 32x8 message-bus-driven panel.
var builtinProfiles = map[string]Profile{
	"pixoo64": {
		Type:      "pixoo64",
		Transport: TransportHTTP,
		Caps: Capabilities{
			Width:         64,
			Height:        64,
			ColorDepth:    24,
			Audio:         true,
			NativeText:    true,
			NativeIcons:   true,
			CustomApp:     true,
			MinBrightness: 0,
			MaxBrightness: 100,
		},
	},
	"matrix32x8": {
		Type:      "matrix32x8",
		Transport: TransportBus,
		Caps: Capabilities{
			Width:         32,
			Height:        8,
			ColorDepth:    24,
			MinBrightness: 0,
			MaxBrightness: 100,
		},
	},
}

// LookupProfile returns the profile for a device type key.
//
// Returns ErrUnknownDeviceType if the key is not registered.
func LookupProfile(deviceType string) (Profile, error) {
	p, ok := builtinProfiles[deviceType]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownDeviceType, deviceType)
	}
	return p, nil
}

// ProfileTypes returns the registered device type keys.
func ProfileTypes() []string {
	types := make([]string, 0, len(builtinProfiles))
	for t := range builtinProfiles {
		types = append(types, t)
	}
	return types
}
