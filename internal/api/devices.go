package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openpixel/pixood/internal/device"
	"github.com/openpixel/pixood/internal/store"
)

// deviceJSON is the REST projection of a device record.
func deviceJSON(st store.DeviceState) map[string]any {
	body := map[string]any{
		"ip":           st.ID,
		"name":         st.Name,
		"type":         st.Type,
		"driver":       string(st.DriverKind),
		"status":       string(st.Scene.Status),
		"playState":    string(st.Scene.PlayState),
		"brightness":   st.Brightness,
		"displayOn":    st.DisplayOn,
		"degraded":     st.Scene.Degraded,
		"generationId": st.Scene.Generation,
	}
	if st.Scene.CurrentScene != "" {
		body["currentScene"] = st.Scene.CurrentScene
	}
	if !st.Scene.LastSeenTS.IsZero() {
		body["lastSeen"] = st.Scene.LastSeenTS.UTC().Format(time.RFC3339)
	} else {
		body["lastSeen"] = nil
	}
	return body
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	states := s.store.List()
	devices := make([]map[string]any, 0, len(states))
	for _, st := range states {
		devices = append(devices, deviceJSON(st))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Get(chi.URLParam(r, "ip"))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deviceJSON(st))
}

func (s *Server) handleDeviceMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.sched.Metrics(chi.URLParam(r, "ip"))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// handleSetScene switches a device to the named scene. The body is
// `{scene, clear?, payload?, ...}`; unrecognized fields travel on to
// the scene as payload entries.
func (s *Server) handleSetScene(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "ip")

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sceneName, _ := body["scene"].(string)
	if sceneName == "" {
		writeError(w, http.StatusBadRequest, "scene is required")
		return
	}

	payload := make(map[string]any)
	for k, v := range body {
		if k == "scene" || k == "payload" {
			continue
		}
		payload[k] = v
	}
	if nested, ok := body["payload"].(map[string]any); ok {
		for k, v := range nested {
			payload[k] = v
		}
	}
	if len(payload) == 0 {
		payload = nil
	}

	if err := s.sched.SwitchScene(deviceID, sceneName, payload); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"scene":    sceneName,
		"deviceIp": deviceID,
	})
}

func (s *Server) handlePauseScene(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.PauseScene(chi.URLParam(r, "ip")); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "playState": "paused"})
}

func (s *Server) handleResumeScene(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.ResumeScene(chi.URLParam(r, "ip")); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "playState": "running"})
}

func (s *Server) handleStopScene(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.StopScene(chi.URLParam(r, "ip")); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "playState": "stopped"})
}

func (s *Server) handleSetBrightness(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Brightness *int `json:"brightness"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Brightness == nil {
		writeError(w, http.StatusBadRequest, "brightness is required")
		return
	}
	if err := s.sched.SetBrightness(chi.URLParam(r, "ip"), *body.Brightness); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleSetDisplay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		On *bool `json:"on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.On == nil {
		writeError(w, http.StatusBadRequest, "on is required")
		return
	}
	if err := s.sched.SetDisplayOn(chi.URLParam(r, "ip"), *body.On); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "displayOn": *body.On})
}

func (s *Server) handleReboot(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.ResetDevice(chi.URLParam(r, "ip")); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "device rebooting",
	})
}

func (s *Server) handleSetDriver(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Driver string `json:"driver"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Driver == "" {
		writeError(w, http.StatusBadRequest, "driver is required")
		return
	}
	kind, err := device.ParseKind(body.Driver)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	if err := s.sched.SwapDriver(chi.URLParam(r, "ip"), kind); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.ResetDevice(chi.URLParam(r, "ip")); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
