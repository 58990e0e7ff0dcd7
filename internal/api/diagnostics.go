package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Diagnostic status values. Green is healthy, yellow is degraded or
// unconfigured, red is failed.
const (
	DiagGreen  = "green"
	DiagYellow = "yellow"
	DiagRed    = "red"
)

// diagTimeout bounds a single diagnostic run.
const diagTimeout = 10 * time.Second

// DiagResult is the outcome of one diagnostic test run.
type DiagResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Duration  int64          `json:"duration"`
	Timestamp string         `json:"timestamp"`
}

type diagTest struct {
	ID          string
	Name        string
	Description string
	run         func(ctx context.Context) (status, message string, details map[string]any)
}

// diagTests enumerates the built-in diagnostics.
func (s *Server) diagTests() []diagTest {
	return []diagTest{
		{
			ID:          "mqtt-connection",
			Name:        "Message bus connection",
			Description: "Verifies the MQTT client is connected to the broker",
			run:         s.diagMQTT,
		},
		{
			ID:          "state-store",
			Name:        "State store persistence",
			Description: "Writes the device state file and verifies it succeeds",
			run:         s.diagStore,
		},
		{
			ID:          "event-journal",
			Name:        "Event journal",
			Description: "Verifies the SQLite event journal is reachable",
			run:         s.diagJournal,
		},
		{
			ID:          "device-health",
			Name:        "Device health",
			Description: "Checks registered devices for degraded drivers",
			run:         s.diagDevices,
		},
		{
			ID:          "scene-registry",
			Name:        "Scene registry",
			Description: "Verifies scenes are registered and listable",
			run:         s.diagScenes,
		},
	}
}

func (s *Server) diagMQTT(_ context.Context) (string, string, map[string]any) {
	if s.bus == nil {
		return DiagYellow, "message bus not configured", nil
	}
	connected, retryCount, lastError := s.bus.Status()
	details := map[string]any{"retryCount": retryCount}
	if lastError != nil {
		details["lastError"] = lastError.Error()
	}
	if !connected {
		return DiagRed, "not connected to broker", details
	}
	return DiagGreen, "connected", details
}

func (s *Server) diagStore(_ context.Context) (string, string, map[string]any) {
	devices := s.store.List()
	if err := s.store.Persist(); err != nil {
		return DiagRed, "state file write failed", map[string]any{"error": err.Error()}
	}
	return DiagGreen, "state file written", map[string]any{"deviceCount": len(devices)}
}

func (s *Server) diagJournal(ctx context.Context) (string, string, map[string]any) {
	if s.journal == nil {
		return DiagYellow, "event journal not configured", nil
	}
	if err := s.journal.HealthCheck(ctx); err != nil {
		return DiagRed, "journal unreachable", map[string]any{"error": err.Error()}
	}
	return DiagGreen, "journal reachable", map[string]any{"path": s.journal.Path()}
}

func (s *Server) diagDevices(_ context.Context) (string, string, map[string]any) {
	devices := s.store.List()
	if len(devices) == 0 {
		return DiagYellow, "no devices registered", nil
	}
	var degraded []string
	for _, st := range devices {
		if st.Scene.Degraded {
			degraded = append(degraded, st.ID)
		}
	}
	details := map[string]any{"deviceCount": len(devices)}
	if len(degraded) > 0 {
		details["degraded"] = degraded
		return DiagYellow, "devices degraded", details
	}
	return DiagGreen, "all devices healthy", details
}

func (s *Server) diagScenes(_ context.Context) (string, string, map[string]any) {
	names := s.registry.Names()
	if len(names) == 0 {
		return DiagRed, "no scenes registered", nil
	}
	return DiagGreen, "scenes registered", map[string]any{"sceneCount": len(names)}
}

// runDiag executes one test with timing and a bounded context.
func (s *Server) runDiag(parent context.Context, t diagTest) DiagResult {
	ctx, cancel := context.WithTimeout(parent, diagTimeout)
	defer cancel()

	start := time.Now()
	status, message, details := t.run(ctx)
	return DiagResult{
		Status:    status,
		Message:   message,
		Details:   details,
		Duration:  time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleListTests(w http.ResponseWriter, _ *http.Request) {
	tests := make([]map[string]any, 0)
	for _, t := range s.diagTests() {
		tests = append(tests, map[string]any{
			"id":          t.ID,
			"name":        t.Name,
			"description": t.Description,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tests": tests})
}

func (s *Server) handleRunTest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, t := range s.diagTests() {
		if t.ID == id {
			writeJSON(w, http.StatusOK, s.runDiag(r.Context(), t))
			return
		}
	}
	writeError(w, http.StatusNotFound, "unknown test: "+id)
}

func (s *Server) handleRunAllTests(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	results := make(map[string]DiagResult)
	overall := DiagGreen
	for _, t := range s.diagTests() {
		res := s.runDiag(r.Context(), t)
		results[t.ID] = res
		overall = worstStatus(overall, res.Status)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    overall,
		"tests":     results,
		"duration":  time.Since(start).Milliseconds(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func worstStatus(a, b string) string {
	rank := map[string]int{DiagGreen: 0, DiagYellow: 1, DiagRed: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
