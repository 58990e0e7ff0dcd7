package device

import (
	"testing"
)

func testCaps() Capabilities {
	return Capabilities{Width: 8, Height: 8, ColorDepth: 24, MinBrightness: 0, MaxBrightness: 100}
}

func TestDrawPixelClipping(t *testing.T) {
	fb := newFramebuffer(testCaps())

	fb.DrawPixel(Point{X: 3, Y: 4}, White)
	fb.DrawPixel(Point{X: -1, Y: 0}, White)
	fb.DrawPixel(Point{X: 0, Y: -1}, White)
	fb.DrawPixel(Point{X: 8, Y: 0}, White)
	fb.DrawPixel(Point{X: 0, Y: 8}, White)

	pix, changed := fb.snapshot()
	if changed != fb.caps.PixelCount() {
		t.Errorf("first snapshot changed = %d, want full frame %d", changed, fb.caps.PixelCount())
	}
	lit := 0
	for _, p := range pix {
		if p == White {
			lit++
		}
	}
	if lit != 1 {
		t.Errorf("lit pixels = %d, want 1 (out-of-range draws must be dropped)", lit)
	}
	if pix[4*8+3] != White {
		t.Error("expected pixel (3,4) to be set")
	}
}

func TestChangedPixelDiffing(t *testing.T) {
	fb := newFramebuffer(testCaps())

	fb.DrawPixel(Point{X: 0, Y: 0}, White)
	fb.snapshot()

	// Identical frame: nothing changed.
	if _, changed := fb.snapshot(); changed != 0 {
		t.Errorf("unchanged frame reported %d changed pixels", changed)
	}

	fb.DrawPixel(Point{X: 1, Y: 1}, White)
	fb.DrawPixel(Point{X: 2, Y: 2}, White)
	if _, changed := fb.snapshot(); changed != 2 {
		t.Errorf("changed = %d, want 2", changed)
	}
}

func TestFillRectCornerOrder(t *testing.T) {
	fb := newFramebuffer(testCaps())

	// Corners given in reverse order must fill the same area.
	fb.FillRect(Point{X: 5, Y: 5}, Point{X: 2, Y: 2}, White)

	pix, _ := fb.snapshot()
	lit := 0
	for _, p := range pix {
		if p == White {
			lit++
		}
	}
	if lit != 16 {
		t.Errorf("filled pixels = %d, want 16", lit)
	}
}

func TestDrawRectOutlineOnly(t *testing.T) {
	fb := newFramebuffer(testCaps())
	fb.DrawRect(Point{X: 1, Y: 1}, Point{X: 4, Y: 4}, White)

	pix, _ := fb.snapshot()
	if pix[2*8+2] == White {
		t.Error("interior pixel set, outline expected")
	}
	if pix[1*8+1] != White || pix[4*8+4] != White {
		t.Error("corner pixels not set")
	}
}

func TestDrawLineEndpoints(t *testing.T) {
	fb := newFramebuffer(testCaps())
	fb.DrawLine(Point{X: 0, Y: 0}, Point{X: 7, Y: 7}, White)

	pix, _ := fb.snapshot()
	if pix[0] != White {
		t.Error("line start not set")
	}
	if pix[7*8+7] != White {
		t.Error("line end not set")
	}
	// Diagonal of an 8x8 square lights exactly 8 pixels.
	lit := 0
	for _, p := range pix {
		if p == White {
			lit++
		}
	}
	if lit != 8 {
		t.Errorf("diagonal lit %d pixels, want 8", lit)
	}
}

func TestDrawTextAlignment(t *testing.T) {
	caps := Capabilities{Width: 32, Height: 8, ColorDepth: 24}
	fb := newFramebuffer(caps)

	fb.DrawText("1", Point{X: 31, Y: 0}, White, AlignRight)
	pix, _ := fb.snapshot()

	// Right-aligned single glyph spans columns 28 through 30.
	for x := 0; x < 28; x++ {
		for y := 0; y < 5; y++ {
			if pix[y*32+x] == White {
				t.Fatalf("pixel (%d,%d) set left of right-aligned glyph", x, y)
			}
		}
	}
	if pix[4*32+28] != White {
		t.Error("glyph baseline missing at expected x")
	}
}

func TestDrawNumberDecimals(t *testing.T) {
	caps := Capabilities{Width: 64, Height: 8, ColorDepth: 24}
	fb := newFramebuffer(caps)

	// "21.5" must render strictly wider than "21".
	fb.DrawNumber(21.5, Point{X: 0, Y: 0}, White, AlignLeft, 1)
	wide, _ := fb.snapshot()

	fb.Clear()
	fb.snapshot()
	fb.DrawNumber(21, Point{X: 0, Y: 0}, White, AlignLeft, 0)
	narrow, _ := fb.snapshot()

	maxX := func(pix []Color) int {
		max := -1
		for i, p := range pix {
			if p == White && i%64 > max {
				max = i % 64
			}
		}
		return max
	}
	if maxX(wide) <= maxX(narrow) {
		t.Errorf("decimal render width %d not wider than integer width %d", maxX(wide), maxX(narrow))
	}
}

func TestTextWidth(t *testing.T) {
	if w := textWidth(""); w != 0 {
		t.Errorf("empty width = %d, want 0", w)
	}
	if w := textWidth("0"); w != 3 {
		t.Errorf("single glyph width = %d, want 3", w)
	}
	if w := textWidth("12:30"); w != 19 {
		t.Errorf("clock width = %d, want 19", w)
	}
}

func TestMetricsRecording(t *testing.T) {
	fb := newFramebuffer(testCaps())

	fb.recordPush(42)
	fb.recordPush(17)
	fb.recordError()

	m := fb.Metrics()
	if m.PushCount != 2 {
		t.Errorf("PushCount = %d, want 2", m.PushCount)
	}
	if m.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", m.ErrorCount)
	}
	if m.LastFrametime != 17 {
		t.Errorf("LastFrametime = %v, want 17", m.LastFrametime)
	}
	if m.LastSeen.IsZero() {
		t.Error("LastSeen not set")
	}
}
