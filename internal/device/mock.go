package device

import (
	"context"
	"sync"
	"time"
)

// Mock is an in-memory driver for tests and for running the daemon
// against hardware that is not plugged in yet. It records every pushed
// frame and exposes hooks so tests can inject failures.
type Mock struct {
	*framebuffer

	mu         sync.Mutex
	ready      bool
	frames     []MockFrame
	pushHook   func(sceneName string) error
	resetErr   error
	brightness int
	displayOn  bool
	closed     bool
}

// MockFrame is one recorded push.
type MockFrame struct {
	Scene   string
	Pixels  []Color
	Changed int
	TS      time.Time
}

// NewMock creates a mock driver with the given capabilities.
func NewMock(caps Capabilities) *Mock {
	return &Mock{
		framebuffer: newFramebuffer(caps),
		brightness:  100,
		displayOn:   true,
	}
}

// Kind returns KindMock.
func (m *Mock) Kind() Kind {
	return KindMock
}

// Init marks the driver ready.
func (m *Mock) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = true
	return nil
}

// IsReady reports whether Init has been called.
func (m *Mock) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Push records the current framebuffer. If a push hook is set and
// returns an error, the push fails with that error.
func (m *Mock) Push(sceneName string) (int, error) {
	m.mu.Lock()
	hook := m.pushHook
	ready := m.ready
	m.mu.Unlock()

	if !ready {
		return 0, ErrNotReady
	}
	if hook != nil {
		if err := hook(sceneName); err != nil {
			m.recordError()
			return 0, err
		}
	}

	pix, changed := m.snapshot()

	m.mu.Lock()
	m.frames = append(m.frames, MockFrame{
		Scene:   sceneName,
		Pixels:  pix,
		Changed: changed,
		TS:      time.Now(),
	})
	m.mu.Unlock()

	m.recordPush(0)
	return changed, nil
}

// SetBrightness stores the requested level.
func (m *Mock) SetBrightness(level int) error {
	if level < 0 || level > 100 {
		return ErrInvalidBrightness
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brightness = level
	return nil
}

// SetDisplayOn stores the requested power state.
func (m *Mock) SetDisplayOn(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.displayOn = on
	return nil
}

// SetIcon honors the capability flag, otherwise succeeds silently.
func (m *Mock) SetIcon(id int) error {
	if !m.Capabilities().NativeIcons {
		return ErrUnsupported
	}
	return nil
}

// PlayTone honors the capability flag, otherwise succeeds silently.
func (m *Mock) PlayTone(freqHz, durationMS int) error {
	if !m.Capabilities().Audio {
		return ErrUnsupported
	}
	return nil
}

// Reset returns the configured reset error, clears readiness on success.
func (m *Mock) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resetErr != nil {
		return m.resetErr
	}
	m.ready = false
	return nil
}

// Close marks the driver closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = false
	m.closed = true
	return nil
}

// Test hooks and observers.

// SetPushHook installs a function invoked before each push; a non-nil
// return fails the push. Pass nil to remove.
func (m *Mock) SetPushHook(fn func(sceneName string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushHook = fn
}

// SetResetError makes Reset fail with err until cleared with nil.
func (m *Mock) SetResetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetErr = err
}

// Frames returns a copy of all recorded pushes.
func (m *Mock) Frames() []MockFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockFrame, len(m.frames))
	copy(out, m.frames)
	return out
}

// FrameCount returns the number of recorded pushes.
func (m *Mock) FrameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

// Brightness returns the last level set.
func (m *Mock) Brightness() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.brightness
}

// DisplayOn returns the last power state set.
func (m *Mock) DisplayOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.displayOn
}

// Closed reports whether Close has been called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
