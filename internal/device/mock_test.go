package device

import (
	"context"
	"errors"
	"testing"
)

func TestMockRecordsFrames(t *testing.T) {
	m := NewMock(testCaps())
	if err := m.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	m.DrawPixel(Point{X: 1, Y: 1}, White)
	if _, err := m.Push("scene-a"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	m.DrawPixel(Point{X: 2, Y: 2}, White)
	if _, err := m.Push("scene-a"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	frames := m.Frames()
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	if frames[0].Scene != "scene-a" {
		t.Errorf("frame scene = %q", frames[0].Scene)
	}
	if frames[1].Changed != 1 {
		t.Errorf("second frame changed = %d, want 1", frames[1].Changed)
	}
}

func TestMockPushHookFailure(t *testing.T) {
	m := NewMock(testCaps())
	m.Init()

	boom := errors.New("panel frozen")
	m.SetPushHook(func(scene string) error { return boom })

	if _, err := m.Push("s"); !errors.Is(err, boom) {
		t.Errorf("error = %v, want hook error", err)
	}
	if m.FrameCount() != 0 {
		t.Error("failed push recorded a frame")
	}
	if m.Metrics().ErrorCount != 1 {
		t.Error("failed push not counted as error")
	}

	m.SetPushHook(nil)
	if _, err := m.Push("s"); err != nil {
		t.Errorf("push after hook removal error = %v", err)
	}
}

func TestMockBrightnessAndDisplay(t *testing.T) {
	m := NewMock(testCaps())

	if err := m.SetBrightness(40); err != nil {
		t.Fatalf("SetBrightness error = %v", err)
	}
	if m.Brightness() != 40 {
		t.Errorf("Brightness() = %d, want 40", m.Brightness())
	}
	if err := m.SetBrightness(150); !errors.Is(err, ErrInvalidBrightness) {
		t.Errorf("error = %v, want ErrInvalidBrightness", err)
	}

	if err := m.SetDisplayOn(false); err != nil {
		t.Fatalf("SetDisplayOn error = %v", err)
	}
	if m.DisplayOn() {
		t.Error("display still on")
	}
}

func TestMockResetError(t *testing.T) {
	m := NewMock(testCaps())
	m.Init()

	fail := errors.New("reset refused")
	m.SetResetError(fail)
	if err := m.Reset(context.Background()); !errors.Is(err, fail) {
		t.Errorf("error = %v, want configured reset error", err)
	}
	if !m.IsReady() {
		t.Error("failed reset cleared readiness")
	}

	m.SetResetError(nil)
	if err := m.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if m.IsReady() {
		t.Error("successful reset left driver ready")
	}
}

func TestMockCapabilityGates(t *testing.T) {
	bare := NewMock(Capabilities{Width: 4, Height: 4, ColorDepth: 24})

	if err := bare.SetIcon(1); !errors.Is(err, ErrUnsupported) {
		t.Errorf("SetIcon error = %v, want ErrUnsupported", err)
	}
	if err := bare.PlayTone(440, 100); !errors.Is(err, ErrUnsupported) {
		t.Errorf("PlayTone error = %v, want ErrUnsupported", err)
	}

	rich, _ := LookupProfile("pixoo64")
	full := NewMock(rich.Caps)
	if err := full.SetIcon(1); err != nil {
		t.Errorf("SetIcon error = %v", err)
	}
	if err := full.PlayTone(440, 100); err != nil {
		t.Errorf("PlayTone error = %v", err)
	}
}
