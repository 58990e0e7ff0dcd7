package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device ok", topics.DeviceOK("192.168.1.100"), "pixoo/192.168.1.100/ok"},
		{"device error", topics.DeviceError("192.168.1.100"), "pixoo/192.168.1.100/error"},
		{"device scene", topics.DeviceScene("192.168.1.100"), "pixoo/192.168.1.100/scene"},
		{"device driver", topics.DeviceDriver("192.168.1.100"), "pixoo/192.168.1.100/driver"},
		{"device frame", topics.DeviceFrame("matrix-hall"), "pixoo/matrix-hall/frame"},
		{"scene state flat", topics.SceneState(TopicPrefix, "192.168.1.100"), "pixoo/192.168.1.100/scene/state"},
		{"scene state legacy", topics.SceneState(TopicPrefixLegacy, "192.168.1.100"), "/home/pixoo/192.168.1.100/scene/state"},
		{"system status", topics.SystemStatus(), "pixoo/system/status"},
		{"command wildcard", topics.CommandWildcard(), "pixoo/+/+/+"},
		{"legacy command wildcard", topics.LegacyCommandWildcard(), "/home/pixoo/+/+/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
