package scene

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/openpixel/pixood/internal/device"
)

func newTestContext(t *testing.T, payload map[string]any) *Context {
	t.Helper()
	bag := make(map[string]any)
	return &Context{
		DeviceID: "test-device",
		Scene:    "test",
		Canvas:   device.NewMock(device.Capabilities{Width: 16, Height: 16, ColorDepth: 24}),
		Payload:  payload,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Get: func(key string) (any, bool) {
			v, ok := bag[key]
			return v, ok
		},
		Set: func(key string, value any) {
			bag[key] = value
		},
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()

	d := Descriptor{Name: "clock", Renderer: &clockScene{}}
	if err := r.Register(d); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := r.Register(d); !errors.Is(err, ErrDuplicateScene) {
		t.Errorf("second Register() error = %v, want ErrDuplicateScene", err)
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins() error = %v", err)
	}

	if _, err := r.Lookup("clock"); err != nil {
		t.Errorf("Lookup(clock) error = %v", err)
	}
	if _, err := r.Lookup("nope"); !errors.Is(err, ErrUnknownScene) {
		t.Errorf("Lookup(nope) error = %v, want ErrUnknownScene", err)
	}

	names := r.Names()
	want := []string{"bounce", "clock", "empty", "fill"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRegistryValidation(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(Descriptor{Renderer: &emptyScene{}}); err == nil {
		t.Error("Register with empty name succeeded")
	}
	if err := r.Register(Descriptor{Name: "x"}); err == nil {
		t.Error("Register with nil renderer succeeded")
	}
}

func TestEmptySceneIsTerminal(t *testing.T) {
	ctx := newTestContext(t, nil)
	s := &emptyScene{}

	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	res, err := s.Render(ctx)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !res.Terminal {
		t.Error("empty scene not terminal")
	}
}

func TestFillSceneHexPayload(t *testing.T) {
	ctx := newTestContext(t, map[string]any{"color": "#ff8000"})
	s := &fillScene{}

	res, err := s.Render(ctx)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !res.Terminal {
		t.Error("fill scene not terminal")
	}
}

func TestFillSceneBadColor(t *testing.T) {
	ctx := newTestContext(t, map[string]any{"color": "red"})
	s := &fillScene{}

	if _, err := s.Render(ctx); err == nil {
		t.Error("Render() with bad color succeeded")
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := parseHexColor("#ff8000")
	if err != nil {
		t.Fatalf("parseHexColor error = %v", err)
	}
	if c.R != 255 || c.G != 128 || c.B != 0 || c.A != 255 {
		t.Errorf("color = %+v", c)
	}

	if _, err := parseHexColor("#ff80"); err == nil {
		t.Error("short hex accepted")
	}
	if _, err := parseHexColor("#zzzzzz"); err == nil {
		t.Error("non-hex accepted")
	}
}

func TestClockSceneDelay(t *testing.T) {
	ctx := newTestContext(t, nil)
	s := &clockScene{}

	res, err := s.Render(ctx)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if res.Terminal {
		t.Error("clock scene terminal")
	}
	if res.Delay <= 0 || res.Delay > time.Second {
		t.Errorf("delay = %v, want within (0, 1s]", res.Delay)
	}
}

func TestBounceSceneReflects(t *testing.T) {
	ctx := newTestContext(t, nil)
	s := &bounceScene{}

	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	caps := ctx.Canvas.Capabilities()
	for i := 0; i < 500; i++ {
		res, err := s.Render(ctx)
		if err != nil {
			t.Fatalf("Render() #%d error = %v", i, err)
		}
		if res.Delay <= 0 {
			t.Fatalf("Render() #%d delay = %v", i, res.Delay)
		}

		v, ok := ctx.Get("state")
		if !ok {
			t.Fatal("bounce state missing")
		}
		st := v.(*bounceState)
		if st.pos.X < 0 || st.pos.X >= caps.Width || st.pos.Y < 0 || st.pos.Y >= caps.Height {
			t.Fatalf("pixel escaped canvas at %+v", st.pos)
		}
	}
}

func TestPayloadHelpers(t *testing.T) {
	p := map[string]any{"name": "clock", "count": float64(3)}

	if got := PayloadString(p, "name", "x"); got != "clock" {
		t.Errorf("PayloadString = %q", got)
	}
	if got := PayloadString(p, "missing", "x"); got != "x" {
		t.Errorf("PayloadString fallback = %q", got)
	}
	if got := PayloadString(nil, "name", "x"); got != "x" {
		t.Errorf("PayloadString nil payload = %q", got)
	}
	if got := PayloadInt(p, "count", 0); got != 3 {
		t.Errorf("PayloadInt = %d", got)
	}
	if got := PayloadInt(p, "missing", 7); got != 7 {
		t.Errorf("PayloadInt fallback = %d", got)
	}
}
