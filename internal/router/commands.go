package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openpixel/pixood/internal/device"
	"github.com/openpixel/pixood/internal/infrastructure/mqtt"
	"github.com/openpixel/pixood/internal/scene"
)

// command is a parsed inbound topic.
type command struct {
	prefix   string
	deviceID string
	resource string
	verb     string
}

// parseTopic splits an inbound topic into its command parts. The bool
// result is false for topics that are not commands at all (including
// the daemon's own outbound publishes caught by the wildcard).
func parseTopic(topic string) (command, bool) {
	var prefix, rest string
	switch {
	case strings.HasPrefix(topic, mqtt.TopicPrefixLegacy+"/"):
		prefix = mqtt.TopicPrefixLegacy
		rest = strings.TrimPrefix(topic, mqtt.TopicPrefixLegacy+"/")
	case strings.HasPrefix(topic, mqtt.TopicPrefix+"/"):
		prefix = mqtt.TopicPrefix
		rest = strings.TrimPrefix(topic, mqtt.TopicPrefix+"/")
	default:
		return command{}, false
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return command{}, false
	}
	return command{
		prefix:   prefix,
		deviceID: parts[0],
		resource: parts[1],
		verb:     parts[2],
	}, true
}

// isCommand reports whether a resource/verb pair names an operation.
// The command wildcard also matches the daemon's own outbound topics
// (scene/state, frame/cmd); those must be ignored without an error
// publish or every state event would echo an error.
func (c command) isCommand() bool {
	switch c.prefix {
	case mqtt.TopicPrefixLegacy:
		switch c.resource + "/" + c.verb {
		case "scene/switch", "driver/switch", "device/reset":
			return true
		}
	default:
		switch c.resource + "/" + c.verb {
		case "state/upd", "scene/set", "driver/set", "reset/set":
			return true
		}
	}
	return false
}

// handleCommand is the subscription callback for both command wildcards.
func (r *Router) handleCommand(topic string, payload []byte) error {
	cmd, ok := parseTopic(topic)
	if !ok || !cmd.isCommand() {
		return nil
	}

	r.rememberPrefix(cmd.deviceID, cmd.prefix)

	if len(payload) > mqtt.MaxPayloadSize {
		r.log.Warn("inbound payload refused",
			"topic", topic,
			"size", len(payload),
			"limit", mqtt.MaxPayloadSize)
		r.publishError(cmd.deviceID,
			fmt.Sprintf("payload too large: %d bytes exceeds maximum %d", len(payload), mqtt.MaxPayloadSize))
		return nil
	}
	if len(payload) > mqtt.WarnPayloadSize {
		r.log.Warn("inbound payload above soft limit",
			"topic", topic,
			"size", len(payload),
			"soft_limit", mqtt.WarnPayloadSize)
	}

	if !r.store.Has(cmd.deviceID) {
		r.publishError(cmd.deviceID, fmt.Sprintf("unknown device: %s", cmd.deviceID))
		return nil
	}

	var err error
	var okScene string
	switch cmd.resource + "/" + cmd.verb {
	case "state/upd":
		okScene, err = r.handleStateUpdate(cmd.deviceID, payload)
	case "scene/set", "scene/switch":
		okScene, err = r.handleSceneSet(cmd.deviceID, payload)
	case "driver/set", "driver/switch":
		err = r.handleDriverSet(cmd.deviceID, payload)
	case "reset/set", "device/reset":
		err = r.sched.ResetDevice(cmd.deviceID)
	}

	if err != nil {
		r.log.Warn("command failed",
			"topic", topic,
			"device", cmd.deviceID,
			"error", err)
		r.publishError(cmd.deviceID, err.Error())
		return nil
	}

	r.publishOK(cmd.deviceID, okScene)
	return nil
}

// handleStateUpdate services state/upd: a scene switch carrying the
// full payload. Unknown fields ride along into the scene untouched.
func (r *Router) handleStateUpdate(deviceID string, payload []byte) (string, error) {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", fmt.Errorf("malformed payload: %v", err)
	}
	sceneName, _ := body["scene"].(string)
	if sceneName == "" {
		return "", errors.New("payload missing scene")
	}
	return sceneName, r.sched.SwitchScene(deviceID, sceneName, body)
}

// handleSceneSet services scene/set and the legacy scene/switch.
func (r *Router) handleSceneSet(deviceID string, payload []byte) (string, error) {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", fmt.Errorf("malformed payload: %v", err)
	}
	name := scene.PayloadString(body, "name", "")
	if name == "" {
		return "", errors.New("payload missing name")
	}
	return name, r.sched.SwitchScene(deviceID, name, body)
}

// handleDriverSet services driver/set and the legacy driver/switch.
// Both JSON {"driver":"mock"} and a bare string body "mock" are valid.
func (r *Router) handleDriverSet(deviceID string, payload []byte) error {
	raw := strings.TrimSpace(string(payload))

	var name string
	if strings.HasPrefix(raw, "{") {
		var body struct {
			Driver string `json:"driver"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return fmt.Errorf("malformed payload: %v", err)
		}
		name = body.Driver
	} else {
		name = strings.Trim(raw, `"`)
	}

	kind, err := device.ParseKind(name)
	if err != nil {
		return fmt.Errorf("unknown driver %q", name)
	}
	return r.sched.SwapDriver(deviceID, kind)
}

// publishOK acknowledges a successful command.
func (r *Router) publishOK(deviceID, sceneName string) {
	body := map[string]any{
		"status":      "ok",
		"timestamp":   time.Now().UnixMilli(),
		"version":     r.info.Version,
		"buildNumber": r.info.BuildNumber,
		"gitCommit":   r.info.GitCommit,
	}
	if sceneName != "" {
		body["scene"] = sceneName
	}
	r.publishJSON(r.topics.DeviceOK(deviceID), body, false)
}

// publishError reports a command failure. Message text only, never a
// stack trace.
func (r *Router) publishError(deviceID, msg string) {
	r.publishJSON(r.topics.DeviceError(deviceID), map[string]any{
		"error":     msg,
		"timestamp": time.Now().UnixMilli(),
	}, false)
}

func (r *Router) publishJSON(topic string, body any, retained bool) {
	data, err := json.Marshal(body)
	if err != nil {
		r.log.Error("marshal outbound payload", "topic", topic, "error", err)
		return
	}
	if err := r.bus.Publish(topic, data, 0, retained); err != nil {
		r.log.Warn("outbound publish failed", "topic", topic, "error", err)
	}
}
