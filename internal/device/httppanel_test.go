package device

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// panelServer fakes the panel's JSON command endpoint.
type panelServer struct {
	mu        sync.Mutex
	commands  []map[string]any
	errorCode int
	status    int
}

func (s *panelServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd map[string]any
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		code := s.errorCode
		status := s.status
		s.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"error_code": code})
	}
}

func (s *panelServer) lastCommand(t *testing.T) map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.commands) == 0 {
		t.Fatal("no commands received")
	}
	return s.commands[len(s.commands)-1]
}

func newTestPanel(t *testing.T, srv *panelServer) (*HTTPPanel, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	addr := strings.TrimPrefix(ts.URL, "http://")
	caps, _ := LookupProfile("pixoo64")
	return NewHTTPPanel(addr, caps.Caps, time.Second, nil), ts
}

func TestHTTPPanelInitAndPush(t *testing.T) {
	srv := &panelServer{}
	panel, _ := newTestPanel(t, srv)

	if panel.IsReady() {
		t.Error("panel ready before Init")
	}
	if err := panel.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !panel.IsReady() {
		t.Error("panel not ready after Init")
	}
	if cmd := srv.lastCommand(t); cmd["Command"] != "Draw/ResetHttpGifId" {
		t.Errorf("Init command = %v", cmd["Command"])
	}

	panel.DrawPixel(Point{X: 0, Y: 0}, White)
	changed, err := panel.Push("test-scene")
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if changed != panel.Capabilities().PixelCount() {
		t.Errorf("first push changed = %d, want full frame", changed)
	}

	cmd := srv.lastCommand(t)
	if cmd["Command"] != "Draw/SendHttpGif" {
		t.Errorf("push command = %v", cmd["Command"])
	}
	if cmd["PicWidth"] != float64(64) {
		t.Errorf("PicWidth = %v, want 64", cmd["PicWidth"])
	}
	if cmd["PicData"] == "" {
		t.Error("PicData empty")
	}
}

func TestHTTPPanelPushBeforeInit(t *testing.T) {
	srv := &panelServer{}
	panel, _ := newTestPanel(t, srv)

	if _, err := panel.Push("s"); !errors.Is(err, ErrNotReady) {
		t.Errorf("error = %v, want ErrNotReady", err)
	}
}

func TestHTTPPanelErrorCode(t *testing.T) {
	srv := &panelServer{errorCode: 7}
	panel, _ := newTestPanel(t, srv)

	err := panel.Init()
	if !errors.Is(err, ErrDriver) {
		t.Errorf("error = %v, want ErrDriver", err)
	}
}

func TestHTTPPanelHTTPFailure(t *testing.T) {
	srv := &panelServer{status: http.StatusInternalServerError}
	panel, _ := newTestPanel(t, srv)

	if err := panel.Init(); !errors.Is(err, ErrDriver) {
		t.Errorf("error = %v, want ErrDriver", err)
	}
	if m := panel.Metrics(); m.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", m.ErrorCount)
	}
}

func TestHTTPPanelBrightnessValidation(t *testing.T) {
	srv := &panelServer{}
	panel, _ := newTestPanel(t, srv)

	if err := panel.SetBrightness(101); !errors.Is(err, ErrInvalidBrightness) {
		t.Errorf("error = %v, want ErrInvalidBrightness", err)
	}
	if err := panel.SetBrightness(-1); !errors.Is(err, ErrInvalidBrightness) {
		t.Errorf("error = %v, want ErrInvalidBrightness", err)
	}
	if err := panel.SetBrightness(55); err != nil {
		t.Fatalf("SetBrightness(55) error = %v", err)
	}
	cmd := srv.lastCommand(t)
	if cmd["Command"] != "Channel/SetBrightness" || cmd["Brightness"] != float64(55) {
		t.Errorf("brightness command = %v", cmd)
	}
}

func TestHTTPPanelDisplayOnOff(t *testing.T) {
	srv := &panelServer{}
	panel, _ := newTestPanel(t, srv)

	if err := panel.SetDisplayOn(false); err != nil {
		t.Fatalf("SetDisplayOn(false) error = %v", err)
	}
	cmd := srv.lastCommand(t)
	if cmd["Command"] != "Channel/OnOffScreen" || cmd["OnOff"] != float64(0) {
		t.Errorf("display command = %v", cmd)
	}
}

func TestHTTPPanelResetClearsReadiness(t *testing.T) {
	srv := &panelServer{}
	panel, _ := newTestPanel(t, srv)

	if err := panel.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := panel.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if panel.IsReady() {
		t.Error("panel still ready after reset")
	}
	if cmd := srv.lastCommand(t); cmd["Command"] != "Device/SoftReset" {
		t.Errorf("reset command = %v", cmd["Command"])
	}
}
