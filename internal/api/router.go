package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/status", s.handleStatus)
		r.Get("/scenes", s.handleListScenes)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{ip}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/metrics", s.handleDeviceMetrics)

				r.Post("/scene", s.handleSetScene)
				r.Post("/scene/pause", s.handlePauseScene)
				r.Post("/scene/resume", s.handleResumeScene)
				r.Post("/scene/stop", s.handleStopScene)

				r.Post("/brightness", s.handleSetBrightness)
				r.Post("/display", s.handleSetDisplay)
				r.Post("/reboot", s.handleReboot)
				r.Post("/driver", s.handleSetDriver)
				r.Post("/reset", s.handleReset)
			})
		})

		r.Post("/daemon/restart", s.handleDaemonRestart)

		r.Route("/tests", func(r chi.Router) {
			r.Get("/", s.handleListTests)
			r.Post("/run", s.handleRunAllTests)
			r.Post("/{id}/run", s.handleRunTest)
		})
	})

	return r
}
