package device

import (
	"errors"
	"sync"
	"testing"
)

// fakePublisher records bus publishes for assertions.
type fakePublisher struct {
	mu       sync.Mutex
	messages []fakeMessage
	err      error
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, fakeMessage{topic: topic, payload: payload})
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func newTestFactory(pub Publisher) *Factory {
	return &Factory{
		Publisher:  pub,
		FrameTopic: func(id string) string { return "pixoo/" + id + "/frame" },
	}
}

func TestFactoryBuildsMock(t *testing.T) {
	f := newTestFactory(nil)

	drv, err := f.New("dev1", "pixoo64", "", KindMock)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if drv.Kind() != KindMock {
		t.Errorf("Kind() = %v, want mock", drv.Kind())
	}
	caps := drv.Capabilities()
	if caps.Width != 64 || caps.Height != 64 {
		t.Errorf("capabilities = %dx%d, want 64x64", caps.Width, caps.Height)
	}
}

func TestFactoryBuildsHTTPPanel(t *testing.T) {
	f := newTestFactory(nil)

	drv, err := f.New("dev1", "pixoo64", "192.168.1.50", KindReal)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := drv.(*HTTPPanel); !ok {
		t.Errorf("driver type = %T, want *HTTPPanel", drv)
	}
}

func TestFactoryBuildsBusPanel(t *testing.T) {
	pub := &fakePublisher{}
	f := newTestFactory(pub)

	drv, err := f.New("matrix1", "matrix32x8", "", KindReal)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := drv.(*BusPanel); !ok {
		t.Errorf("driver type = %T, want *BusPanel", drv)
	}
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	f := newTestFactory(nil)

	_, err := f.New("dev1", "nosuchpanel", "", KindMock)
	if !errors.Is(err, ErrUnknownDeviceType) {
		t.Errorf("error = %v, want ErrUnknownDeviceType", err)
	}
}

func TestFactoryRejectsUnknownKind(t *testing.T) {
	f := newTestFactory(nil)

	_, err := f.New("dev1", "pixoo64", "", Kind("virtual"))
	if !errors.Is(err, ErrUnknownDriverKind) {
		t.Errorf("error = %v, want ErrUnknownDriverKind", err)
	}
}

func TestFactoryHTTPRequiresAddress(t *testing.T) {
	f := newTestFactory(nil)

	_, err := f.New("dev1", "pixoo64", "", KindReal)
	if !errors.Is(err, ErrDriver) {
		t.Errorf("error = %v, want ErrDriver", err)
	}
}

func TestFactoryBusRequiresPublisher(t *testing.T) {
	f := &Factory{}

	_, err := f.New("matrix1", "matrix32x8", "", KindReal)
	if !errors.Is(err, ErrDriver) {
		t.Errorf("error = %v, want ErrDriver", err)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("real"); err != nil || k != KindReal {
		t.Errorf("ParseKind(real) = %v, %v", k, err)
	}
	if k, err := ParseKind("mock"); err != nil || k != KindMock {
		t.Errorf("ParseKind(mock) = %v, %v", k, err)
	}
	if _, err := ParseKind("hardware"); !errors.Is(err, ErrUnknownDriverKind) {
		t.Errorf("ParseKind(hardware) error = %v, want ErrUnknownDriverKind", err)
	}
}
