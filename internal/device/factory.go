package device

import (
	"fmt"
	"log/slog"
	"time"
)

// Factory builds drivers from a device type key and driver kind.
//
// The factory holds the transports shared across devices (the bus
// publisher for bus-transported panels, the HTTP timeout for direct
// panels) so callers only name what they want.
type Factory struct {
	// Publisher ships frames for bus-transported panels. Required only
	// when a bus-profile device is built with KindReal.
	Publisher Publisher

	// FrameTopic builds the per-device frame topic for bus panels.
	FrameTopic func(deviceID string) string

	// HTTPTimeout bounds each HTTP panel request. Zero selects the default.
	HTTPTimeout time.Duration

	// Logger receives driver debug output. Optional.
	Logger *slog.Logger
}

// New builds a driver for the device. Address is the device's network
// address and is only consulted for HTTP transports.
//
// Returns ErrUnknownDeviceType or ErrUnknownDriverKind for bad keys.
func (f *Factory) New(deviceID, deviceType, address string, kind Kind) (Driver, error) {
	profile, err := LookupProfile(deviceType)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindMock:
		return NewMock(profile.Caps), nil

	case KindReal:
		switch profile.Transport {
		case TransportHTTP:
			if address == "" {
				return nil, fmt.Errorf("%w: device %s has no address", ErrDriver, deviceID)
			}
			return NewHTTPPanel(address, profile.Caps, f.HTTPTimeout, f.Logger), nil

		case TransportBus:
			if f.Publisher == nil || f.FrameTopic == nil {
				return nil, fmt.Errorf("%w: device %s needs a bus transport", ErrDriver, deviceID)
			}
			return NewBusPanel(deviceID, f.FrameTopic(deviceID), profile.Caps, f.Publisher, f.Logger), nil

		default:
			return nil, fmt.Errorf("%w: profile %s has transport %q", ErrUnknownDeviceType, deviceType, profile.Transport)
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriverKind, kind)
	}
}
