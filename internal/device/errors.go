package device

import "errors"

// Domain-specific errors for driver operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownDeviceType is returned when a device type key has no profile.
	ErrUnknownDeviceType = errors.New("device: unknown device type")

	// ErrUnknownDriverKind is returned for a driver kind other than real/mock.
	ErrUnknownDriverKind = errors.New("device: unknown driver kind")

	// ErrUnsupported is returned when an optional operation is invoked on a
	// device whose capabilities do not include it. This is distinct from
	// ErrDriver: the device is healthy, the operation just does not exist.
	ErrUnsupported = errors.New("device: operation not supported")

	// ErrDriver is returned for driver-level I/O failures (timeouts,
	// non-2xx HTTP responses, bus publish failures).
	ErrDriver = errors.New("device: driver failure")

	// ErrNotReady is returned when a push is attempted before Init.
	ErrNotReady = errors.New("device: driver not ready")

	// ErrInvalidBrightness is returned for brightness values outside 0-100.
	ErrInvalidBrightness = errors.New("device: brightness must be 0-100")
)
