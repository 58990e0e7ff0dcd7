package device

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// Publisher is the transport a BusPanel ships frames through. The MQTT
// client satisfies it; tests inject a fake.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// BusPanel drives a pixel matrix that is reached over the message bus
// rather than direct HTTP. Frames are published as JSON to a per-device
// frame topic; a bridge on the far side (an ESP firmware or another
// daemon) paints them.
type BusPanel struct {
	*framebuffer

	deviceID string
	topic    string
	pub      Publisher
	log      *slog.Logger

	ready atomic.Bool
}

// busFrame is the wire format for a published frame.
type busFrame struct {
	Device string `json:"device"`
	Scene  string `json:"scene"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	RGB    []byte `json:"rgb"` // base64 in JSON encoding
	TS     int64  `json:"ts"`
}

// busCommand is the wire format for brightness/power/tone side commands.
type busCommand struct {
	Device string `json:"device"`
	Op     string `json:"op"`
	Value  int    `json:"value,omitempty"`
	Extra  int    `json:"extra,omitempty"`
}

// NewBusPanel creates a bus-transported driver publishing to frameTopic.
func NewBusPanel(deviceID, frameTopic string, caps Capabilities, pub Publisher, log *slog.Logger) *BusPanel {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BusPanel{
		framebuffer: newFramebuffer(caps),
		deviceID:    deviceID,
		topic:       frameTopic,
		pub:         pub,
		log:         log,
	}
}

// Kind returns KindReal.
func (p *BusPanel) Kind() Kind {
	return KindReal
}

// Init marks the driver ready. The bus connection is owned elsewhere, so
// there is no handshake to perform here.
func (p *BusPanel) Init() error {
	if p.pub == nil {
		return fmt.Errorf("%w: no publisher", ErrDriver)
	}
	p.ready.Store(true)
	return nil
}

// IsReady reports whether the driver can accept pushes.
func (p *BusPanel) IsReady() bool {
	return p.ready.Load()
}

// Push publishes the current framebuffer to the frame topic.
func (p *BusPanel) Push(sceneName string) (int, error) {
	if !p.ready.Load() {
		return 0, ErrNotReady
	}

	pix, changed := p.snapshot()
	caps := p.Capabilities()

	payload, err := json.Marshal(busFrame{
		Device: p.deviceID,
		Scene:  sceneName,
		Width:  caps.Width,
		Height: caps.Height,
		RGB:    rgbBytes(pix),
		TS:     time.Now().UnixMilli(),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: marshal frame: %v", ErrDriver, err)
	}

	start := time.Now()
	if err := p.pub.Publish(p.topic, payload, 0, false); err != nil {
		p.recordError()
		return 0, fmt.Errorf("%w: publish frame: %v", ErrDriver, err)
	}

	p.recordPush(time.Since(start))
	p.log.Debug("frame published",
		"device", p.deviceID,
		"scene", sceneName,
		"changed", changed)
	return changed, nil
}

// SetBrightness publishes a brightness side command.
func (p *BusPanel) SetBrightness(level int) error {
	if !p.Capabilities().HasBrightness() {
		return ErrUnsupported
	}
	if level < 0 || level > 100 {
		return ErrInvalidBrightness
	}
	return p.sideCommand(busCommand{Device: p.deviceID, Op: "brightness", Value: level})
}

// SetDisplayOn publishes a display power side command.
func (p *BusPanel) SetDisplayOn(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return p.sideCommand(busCommand{Device: p.deviceID, Op: "display", Value: v})
}

// SetIcon is unsupported on bus matrices.
func (p *BusPanel) SetIcon(id int) error {
	return ErrUnsupported
}

// PlayTone publishes a tone side command if the matrix has audio.
func (p *BusPanel) PlayTone(freqHz, durationMS int) error {
	if !p.Capabilities().Audio {
		return ErrUnsupported
	}
	return p.sideCommand(busCommand{Device: p.deviceID, Op: "tone", Value: freqHz, Extra: durationMS})
}

// Reset publishes a reboot side command.
func (p *BusPanel) Reset(ctx context.Context) error {
	return p.sideCommand(busCommand{Device: p.deviceID, Op: "reset"})
}

// Close releases driver resources.
func (p *BusPanel) Close() error {
	p.ready.Store(false)
	return nil
}

func (p *BusPanel) sideCommand(cmd busCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("%w: marshal command: %v", ErrDriver, err)
	}
	if err := p.pub.Publish(p.topic+"/cmd", payload, 0, false); err != nil {
		p.recordError()
		return fmt.Errorf("%w: publish %s: %v", ErrDriver, cmd.Op, err)
	}
	return nil
}
