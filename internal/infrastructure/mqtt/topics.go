package mqtt

import "fmt"

// Topic prefixes for the pixood MQTT surface.
//
// Two command prefix families are accepted for backward compatibility:
// the flat scheme pixoo/<deviceId>/... and the legacy scheme
// /home/pixoo/<deviceId>/... Outbound topics always use the flat scheme,
// except scene-state events which mirror the prefix the device was
// addressed with.
const (
	// TopicPrefix is the base for all pixood topics.
	TopicPrefix = "pixoo"

	// TopicPrefixLegacy is the backward-compatible command prefix.
	TopicPrefixLegacy = "/home/pixoo"

	// TopicPrefixSystem is the base for daemon-level status topics.
	TopicPrefixSystem = "pixoo/system"
)

// Topics provides builders for pixood MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	okTopic := topics.DeviceOK("192.168.1.100")
//	// Returns: "pixoo/192.168.1.100/ok"
type Topics struct{}

// =============================================================================
// Outbound Device Topics
// =============================================================================

// DeviceOK returns the per-device acknowledgement topic.
//
// Example: pixoo/192.168.1.100/ok
func (Topics) DeviceOK(deviceID string) string {
	return fmt.Sprintf("%s/%s/ok", TopicPrefix, deviceID)
}

// DeviceError returns the per-device error topic.
//
// Example: pixoo/192.168.1.100/error
func (Topics) DeviceError(deviceID string) string {
	return fmt.Sprintf("%s/%s/error", TopicPrefix, deviceID)
}

// DeviceScene returns the retained last-known-scene topic.
//
// Example: pixoo/192.168.1.100/scene
func (Topics) DeviceScene(deviceID string) string {
	return fmt.Sprintf("%s/%s/scene", TopicPrefix, deviceID)
}

// DeviceDriver returns the retained last-known-driver topic.
//
// Example: pixoo/192.168.1.100/driver
func (Topics) DeviceDriver(deviceID string) string {
	return fmt.Sprintf("%s/%s/driver", TopicPrefix, deviceID)
}

// SceneState returns the scene state-transition topic under the given prefix.
//
// Example: pixoo/192.168.1.100/scene/state
func (Topics) SceneState(prefix, deviceID string) string {
	return fmt.Sprintf("%s/%s/scene/state", prefix, deviceID)
}

// DeviceFrame returns the outbound frame topic for message-bus panels.
//
// Example: pixoo/192.168.1.100/frame
func (Topics) DeviceFrame(deviceID string) string {
	return fmt.Sprintf("%s/%s/frame", TopicPrefix, deviceID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the daemon status topic (online/offline, LWT).
//
// Example: pixoo/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// CommandWildcard returns a pattern matching all flat-scheme device commands.
//
// Pattern: pixoo/+/+/+
func (Topics) CommandWildcard() string {
	return fmt.Sprintf("%s/+/+/+", TopicPrefix)
}

// LegacyCommandWildcard returns a pattern matching all legacy-scheme commands.
//
// Pattern: /home/pixoo/+/+/+
func (Topics) LegacyCommandWildcard() string {
	return fmt.Sprintf("%s/+/+/+", TopicPrefixLegacy)
}
