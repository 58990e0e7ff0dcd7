// Package api provides the HTTP REST surface of the daemon.
//
// It exposes device state, scene control, driver management and
// diagnostics to dashboards and automation tooling.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start()
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/openpixel/pixood/internal/infrastructure/config"
	"github.com/openpixel/pixood/internal/journal"
	"github.com/openpixel/pixood/internal/scene"
	"github.com/openpixel/pixood/internal/scheduler"
	"github.com/openpixel/pixood/internal/store"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BusStatus reports message bus connectivity for the status endpoint.
// *mqtt.Client satisfies it.
type BusStatus interface {
	Status() (connected bool, retryCount int, lastError error)
}

// BuildInfo identifies the running daemon in status responses.
type BuildInfo struct {
	Version     string
	BuildNumber string
	GitCommit   string
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *slog.Logger
	Scheduler *scheduler.Scheduler
	Store     *store.Store
	Registry  *scene.Registry
	Journal   *journal.Journal // optional, enables the journal diagnostic
	Bus       BusStatus        // optional, enables mqttStatus reporting
	Restart   func()           // optional, invoked by POST /api/daemon/restart
	Info      BuildInfo
}

// Server is the daemon's HTTP API server.
//
// It manages the listener, routes and middleware. Created with New()
// and started with Start().
type Server struct {
	cfg       config.APIConfig
	log       *slog.Logger
	sched     *scheduler.Scheduler
	store     *store.Store
	registry  *scene.Registry
	journal   *journal.Journal
	bus       BusStatus
	restart   func()
	info      BuildInfo
	startTime time.Time
	server    *http.Server
}

// New creates an API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: required dependencies (config, scheduler, store, registry)
//
// Returns:
//   - *Server: configured server ready to start
//   - error: if required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("scene registry is required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Server{
		cfg:       deps.Config,
		log:       log,
		sched:     deps.Scheduler,
		store:     deps.Store,
		registry:  deps.Registry,
		journal:   deps.Journal,
		bus:       deps.Bus,
		restart:   deps.Restart,
		info:      deps.Info,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections in a background
// goroutine. The server is stopped with Close().
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.log.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds
// for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.log.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
