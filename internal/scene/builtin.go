package scene

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openpixel/pixood/internal/device"
)

// RegisterBuiltins adds the scenes every deployment gets for free.
func RegisterBuiltins(r *Registry) error {
	builtins := []Descriptor{
		{Name: "empty", Description: "blank the display", Category: "system", Renderer: &emptyScene{}},
		{Name: "fill", Description: "solid color fill", Category: "system", Renderer: &fillScene{}},
		{Name: "clock", Description: "HH:MM digital clock", Category: "ambient", WantsLoop: true, Renderer: &clockScene{}},
		{Name: "bounce", Description: "bouncing pixel demo", Category: "demo", WantsLoop: true, Renderer: &bounceScene{}},
	}
	for _, d := range builtins {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// emptyScene blanks the display with a single black frame.
type emptyScene struct{}

func (s *emptyScene) Init(ctx *Context) error { return nil }

func (s *emptyScene) Render(ctx *Context) (Result, error) {
	ctx.Canvas.Clear()
	return Result{Terminal: true}, nil
}

func (s *emptyScene) Cleanup(ctx *Context) error { return nil }

// fillScene paints a solid color and stops.
//
// The color comes from the switch payload, either as a "color" hex
// string ("#RRGGBB") or as separate "r"/"g"/"b" fields. No payload
// means white.
type fillScene struct{}

func (s *fillScene) Init(ctx *Context) error { return nil }

func (s *fillScene) Render(ctx *Context) (Result, error) {
	c, err := payloadColor(ctx.Payload)
	if err != nil {
		return Result{}, err
	}
	caps := ctx.Canvas.Capabilities()
	ctx.Canvas.FillRect(device.Point{}, device.Point{X: caps.Width - 1, Y: caps.Height - 1}, c)
	return Result{Terminal: true}, nil
}

func (s *fillScene) Cleanup(ctx *Context) error { return nil }

func payloadColor(payload map[string]any) (device.Color, error) {
	if hex := PayloadString(payload, "color", ""); hex != "" {
		return parseHexColor(hex)
	}
	if payload != nil {
		return device.Color{
			R: uint8(PayloadInt(payload, "r", 255)),
			G: uint8(PayloadInt(payload, "g", 255)),
			B: uint8(PayloadInt(payload, "b", 255)),
			A: 255,
		}, nil
	}
	return device.White, nil
}

func parseHexColor(s string) (device.Color, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return device.Color{}, fmt.Errorf("scene: bad color %q, want #RRGGBB", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return device.Color{}, fmt.Errorf("scene: bad color %q: %w", s, err)
	}
	return device.Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// clockScene renders an HH:MM clock, centered, updating each second so
// the colon can blink.
type clockScene struct{}

func (s *clockScene) Init(ctx *Context) error { return nil }

func (s *clockScene) Render(ctx *Context) (Result, error) {
	now := time.Now()
	sep := ":"
	if now.Second()%2 == 1 {
		sep = " "
	}
	text := fmt.Sprintf("%02d%s%02d", now.Hour(), sep, now.Minute())

	caps := ctx.Canvas.Capabilities()
	ctx.Canvas.Clear()
	ctx.Canvas.DrawText(text, device.Point{X: caps.Width / 2, Y: caps.Height/2 - 2}, device.White, device.AlignCenter)

	// Wake at the next wall-clock second boundary.
	delay := time.Second - time.Duration(now.Nanosecond())
	return Result{Delay: delay}, nil
}

func (s *clockScene) Cleanup(ctx *Context) error { return nil }

// bounceScene moves a single pixel around the display, reflecting off
// edges. Position and velocity live in the activation state bag.
type bounceScene struct{}

type bounceState struct {
	pos device.Point
	vel device.Point
}

func (s *bounceScene) Init(ctx *Context) error {
	ctx.Set("state", &bounceState{
		pos: device.Point{X: 0, Y: 0},
		vel: device.Point{X: 1, Y: 1},
	})
	return nil
}

func (s *bounceScene) Render(ctx *Context) (Result, error) {
	v, ok := ctx.Get("state")
	if !ok {
		return Result{}, fmt.Errorf("scene: bounce state missing")
	}
	st := v.(*bounceState)
	caps := ctx.Canvas.Capabilities()

	st.pos.X += st.vel.X
	st.pos.Y += st.vel.Y
	if st.pos.X <= 0 || st.pos.X >= caps.Width-1 {
		st.vel.X = -st.vel.X
	}
	if st.pos.Y <= 0 || st.pos.Y >= caps.Height-1 {
		st.vel.Y = -st.vel.Y
	}

	ctx.Canvas.Clear()
	ctx.Canvas.DrawPixel(st.pos, device.White)
	return Result{Delay: 50 * time.Millisecond}, nil
}

func (s *bounceScene) Cleanup(ctx *Context) error { return nil }
