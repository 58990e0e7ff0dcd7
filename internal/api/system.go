package api

import (
	"net/http"
	"runtime"
	"time"
)

// restartDelay gives the restart acknowledgment time to flush before
// the daemon begins tearing down.
const restartDelay = 100 * time.Millisecond

// handleStatus reports daemon identity, uptime and bus connectivity.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	uptime := time.Since(s.startTime)

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	body := map[string]any{
		"version":       s.info.Version,
		"buildNumber":   s.info.BuildNumber,
		"gitCommit":     s.info.GitCommit,
		"status":        "ok",
		"uptime":        uptime.Round(time.Second).String(),
		"uptimeSeconds": int64(uptime.Seconds()),
		"memory": map[string]any{
			"rss": ms.Sys,
		},
		"goVersion": runtime.Version(),
		"startTime": s.startTime.UTC().Format(time.RFC3339),
	}

	mqttStatus := map[string]any{"connected": false}
	if s.bus != nil {
		connected, retryCount, lastError := s.bus.Status()
		mqttStatus["connected"] = connected
		mqttStatus["retryCount"] = retryCount
		if lastError != nil {
			mqttStatus["lastError"] = lastError.Error()
		}
	}
	body["mqttStatus"] = mqttStatus

	writeJSON(w, http.StatusOK, body)
}

// handleDaemonRestart acknowledges and then triggers a daemon restart.
// Without a configured restart hook the request is acknowledged but
// only logged.
func (s *Server) handleDaemonRestart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "daemon restarting",
	})

	if s.restart == nil {
		s.log.Warn("daemon restart requested but no restart hook configured")
		return
	}
	s.log.Info("daemon restart requested via API")
	go func() {
		time.Sleep(restartDelay)
		s.restart()
	}()
}
