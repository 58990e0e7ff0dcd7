package device

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// defaultHTTPTimeout bounds every request to the panel. The panels answer
// on the local network in well under a second when healthy; anything
// slower is treated as a driver failure.
const defaultHTTPTimeout = 5 * time.Second

// HTTPPanel drives an HTTP-addressable pixel panel (Divoom-style JSON
// command API). Each command is a POST of a JSON body to the panel's
// /post endpoint; the panel replies with an error_code field where zero
// means success.
type HTTPPanel struct {
	*framebuffer

	address string
	url     string
	client  *http.Client
	log     *slog.Logger

	picID int32
	ready atomic.Bool
}

// panelResponse is the panel's JSON reply envelope.
type panelResponse struct {
	ErrorCode int `json:"error_code"`
}

// NewHTTPPanel creates a driver for the panel at the given IP or host.
// Timeout zero selects the default request timeout.
func NewHTTPPanel(address string, caps Capabilities, timeout time.Duration, log *slog.Logger) *HTTPPanel {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTTPPanel{
		framebuffer: newFramebuffer(caps),
		address:     address,
		url:         fmt.Sprintf("http://%s/post", address),
		client:      &http.Client{Timeout: timeout},
		log:         log,
	}
}

// Kind returns KindReal.
func (p *HTTPPanel) Kind() Kind {
	return KindReal
}

// Init resets the panel's GIF buffer so the next frame starts clean.
// Idempotent; safe to call on every scene switch.
func (p *HTTPPanel) Init() error {
	if err := p.command(map[string]any{"Command": "Draw/ResetHttpGifId"}); err != nil {
		return err
	}
	p.ready.Store(true)
	return nil
}

// IsReady reports whether Init has completed successfully.
func (p *HTTPPanel) IsReady() bool {
	return p.ready.Load()
}

// Push ships the current framebuffer as a single-frame animation.
func (p *HTTPPanel) Push(sceneName string) (int, error) {
	if !p.ready.Load() {
		return 0, ErrNotReady
	}

	pix, changed := p.snapshot()
	caps := p.Capabilities()

	start := time.Now()
	err := p.command(map[string]any{
		"Command":   "Draw/SendHttpGif",
		"PicNum":    1,
		"PicWidth":  caps.Width,
		"PicOffset": 0,
		"PicID":     atomic.AddInt32(&p.picID, 1),
		"PicSpeed":  1000,
		"PicData":   base64.StdEncoding.EncodeToString(rgbBytes(pix)),
	})
	if err != nil {
		p.recordError()
		return 0, err
	}

	p.recordPush(time.Since(start))
	p.log.Debug("frame pushed",
		"device", p.address,
		"scene", sceneName,
		"changed", changed)
	return changed, nil
}

// SetBrightness sets panel brightness (0-100).
func (p *HTTPPanel) SetBrightness(level int) error {
	if !p.Capabilities().HasBrightness() {
		return ErrUnsupported
	}
	if level < 0 || level > 100 {
		return ErrInvalidBrightness
	}
	return p.command(map[string]any{
		"Command":    "Channel/SetBrightness",
		"Brightness": level,
	})
}

// SetDisplayOn turns the screen on or off without losing panel state.
func (p *HTTPPanel) SetDisplayOn(on bool) error {
	onOff := 0
	if on {
		onOff = 1
	}
	return p.command(map[string]any{
		"Command": "Channel/OnOffScreen",
		"OnOff":   onOff,
	})
}

// SetIcon shows a device-native icon by gallery ID.
func (p *HTTPPanel) SetIcon(id int) error {
	if !p.Capabilities().NativeIcons {
		return ErrUnsupported
	}
	return p.command(map[string]any{
		"Command": "Device/PlayTFGif",
		"FileType": 0,
		"FileName": fmt.Sprintf("%d", id),
	})
}

// PlayTone plays the panel buzzer.
func (p *HTTPPanel) PlayTone(freqHz, durationMS int) error {
	if !p.Capabilities().Audio {
		return ErrUnsupported
	}
	return p.command(map[string]any{
		"Command":           "Device/PlayBuzzer",
		"ActiveTimeInCycle": freqHz,
		"OffTimeInCycle":    0,
		"PlayTotalTime":     durationMS,
	})
}

// Reset issues a device-level soft reboot. The panel drops off the
// network for a few seconds afterwards, so readiness is cleared and the
// caller is expected to Init again.
func (p *HTTPPanel) Reset(ctx context.Context) error {
	p.ready.Store(false)

	body, err := json.Marshal(map[string]any{"Command": "Device/SoftReset"})
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrDriver, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDriver, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.recordError()
		return fmt.Errorf("%w: reset %s: %v", ErrDriver, p.address, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		p.recordError()
		return fmt.Errorf("%w: reset %s: status %d", ErrDriver, p.address, resp.StatusCode)
	}
	return nil
}

// Close releases driver resources.
func (p *HTTPPanel) Close() error {
	p.ready.Store(false)
	p.client.CloseIdleConnections()
	return nil
}

// command posts a JSON command to the panel and checks the reply envelope.
func (p *HTTPPanel) command(payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrDriver, err)
	}

	resp, err := p.client.Post(p.url, "application/json", bytes.NewReader(body))
	if err != nil {
		p.recordError()
		return fmt.Errorf("%w: post %s: %v", ErrDriver, p.address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.recordError()
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s: status %d", ErrDriver, p.address, resp.StatusCode)
	}

	var pr panelResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		p.recordError()
		return fmt.Errorf("%w: %s: decode reply: %v", ErrDriver, p.address, err)
	}
	if pr.ErrorCode != 0 {
		p.recordError()
		return fmt.Errorf("%w: %s: error_code %d", ErrDriver, p.address, pr.ErrorCode)
	}
	return nil
}
