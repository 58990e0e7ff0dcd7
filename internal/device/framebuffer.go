package device

import (
	"strconv"
	"sync"
	"time"
)

// framebuffer is the shared canvas implementation embedded by all drivers.
//
// It holds the pixel buffer, implements the drawing primitives with
// clipping, and tracks push metrics. The previous pushed frame is retained
// so Push implementations can report how many pixels changed.
type framebuffer struct {
	caps Capabilities

	mu       sync.Mutex
	pix      []Color
	lastPush []Color

	metricsMu sync.Mutex
	metrics   Metrics
}

func newFramebuffer(caps Capabilities) *framebuffer {
	return &framebuffer{
		caps: caps,
		pix:  make([]Color, caps.PixelCount()),
	}
}

// Capabilities returns the display's capability descriptor.
func (f *framebuffer) Capabilities() Capabilities {
	return f.caps
}

// Clear resets the framebuffer to black (does not push).
func (f *framebuffer) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.pix {
		f.pix[i] = Black
	}
}

// DrawPixel sets a single pixel. Out-of-range coordinates are dropped.
func (f *framebuffer) DrawPixel(p Point, c Color) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set(p.X, p.Y, c)
}

// set writes a pixel without locking. Callers hold f.mu.
func (f *framebuffer) set(x, y int, c Color) {
	if x < 0 || y < 0 || x >= f.caps.Width || y >= f.caps.Height {
		return
	}
	f.pix[y*f.caps.Width+x] = c
}

// DrawLine draws a line between two points using Bresenham's algorithm.
func (f *framebuffer) DrawLine(a, b Point, c Color) {
	f.mu.Lock()
	defer f.mu.Unlock()

	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx := 1
	if a.X > b.X {
		sx = -1
	}
	sy := 1
	if a.Y > b.Y {
		sy = -1
	}
	err := dx + dy

	x, y := a.X, a.Y
	for {
		f.set(x, y, c)
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// FillRect fills the rectangle spanned by two corner points (inclusive).
func (f *framebuffer) FillRect(a, b Point, c Color) {
	f.mu.Lock()
	defer f.mu.Unlock()

	x0, x1 := minMax(a.X, b.X)
	y0, y1 := minMax(a.Y, b.Y)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			f.set(x, y, c)
		}
	}
}

// DrawRect outlines the rectangle spanned by two corner points (inclusive).
func (f *framebuffer) DrawRect(a, b Point, c Color) {
	f.mu.Lock()
	defer f.mu.Unlock()

	x0, x1 := minMax(a.X, b.X)
	y0, y1 := minMax(a.Y, b.Y)
	for x := x0; x <= x1; x++ {
		f.set(x, y0, c)
		f.set(x, y1, c)
	}
	for y := y0; y <= y1; y++ {
		f.set(x0, y, c)
		f.set(x1, y, c)
	}
}

// DrawText renders a string with the built-in bitmap font.
//
// The anchor point is the top-left of the rendered text for AlignLeft;
// AlignCenter and AlignRight shift the string accordingly. Glyphs without
// a font entry advance the cursor but draw nothing.
func (f *framebuffer) DrawText(s string, p Point, c Color, align Align) {
	f.mu.Lock()
	defer f.mu.Unlock()

	width := textWidth(s)
	x := p.X
	switch align {
	case AlignCenter:
		x -= width / 2
	case AlignRight:
		x -= width
	}

	for _, r := range s {
		glyph, ok := font[r]
		if ok {
			for row := 0; row < glyphHeight; row++ {
				bits := glyph[row]
				for col := 0; col < glyphWidth; col++ {
					if bits&(1<<(glyphWidth-1-col)) != 0 {
						f.set(x+col, p.Y+row, c)
					}
				}
			}
		}
		x += glyphWidth + 1
	}
}

// DrawNumber renders a numeric value with a fixed number of decimals.
func (f *framebuffer) DrawNumber(value float64, p Point, c Color, align Align, decimals int) {
	f.DrawText(strconv.FormatFloat(value, 'f', decimals, 64), p, c, align)
}

// snapshot returns a copy of the current pixel buffer and the number of
// pixels changed since the previous snapshot, updating the comparison
// baseline. Used by Push implementations.
func (f *framebuffer) snapshot() ([]Color, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	changed := 0
	if f.lastPush == nil {
		changed = len(f.pix)
	} else {
		for i := range f.pix {
			if f.pix[i] != f.lastPush[i] {
				changed++
			}
		}
	}

	cpy := make([]Color, len(f.pix))
	copy(cpy, f.pix)
	f.lastPush = cpy

	out := make([]Color, len(cpy))
	copy(out, cpy)
	return out, changed
}

// rgbBytes flattens a pixel slice into packed RGB byte order.
func rgbBytes(pix []Color) []byte {
	out := make([]byte, 0, len(pix)*3)
	for _, p := range pix {
		out = append(out, p.R, p.G, p.B)
	}
	return out
}

// recordPush updates metrics after a successful push.
func (f *framebuffer) recordPush(frametime time.Duration) {
	f.metricsMu.Lock()
	defer f.metricsMu.Unlock()
	f.metrics.PushCount++
	f.metrics.LastSeen = time.Now().UTC()
	f.metrics.LastFrametime = frametime
}

// recordError updates metrics after a failed driver operation.
func (f *framebuffer) recordError() {
	f.metricsMu.Lock()
	defer f.metricsMu.Unlock()
	f.metrics.ErrorCount++
}

// Metrics returns a copy of the current push statistics.
func (f *framebuffer) Metrics() Metrics {
	f.metricsMu.Lock()
	defer f.metricsMu.Unlock()
	return f.metrics
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func minMax(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
