// pixood - multi-device pixel display controller
//
// The daemon renders named scenes onto per-device pixel canvases and
// ships the frames to heterogeneous displays (HTTP driven 64x64 panels,
// bus driven 32x8 matrices, mocks for testing). Scenes are selected
// over MQTT and a REST API; a watchdog restarts devices that stop
// accepting frames.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openpixel/pixood/internal/api"
	"github.com/openpixel/pixood/internal/device"
	"github.com/openpixel/pixood/internal/infrastructure/config"
	"github.com/openpixel/pixood/internal/infrastructure/logging"
	"github.com/openpixel/pixood/internal/infrastructure/mqtt"
	"github.com/openpixel/pixood/internal/journal"
	"github.com/openpixel/pixood/internal/router"
	"github.com/openpixel/pixood/internal/scene"
	"github.com/openpixel/pixood/internal/schedule"
	"github.com/openpixel/pixood/internal/scheduler"
	"github.com/openpixel/pixood/internal/store"
	"github.com/openpixel/pixood/internal/watchdog"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version     = "dev"     // Semantic version (e.g., "1.0.0")
	buildNumber = "0"       // CI build number
	commit      = "unknown" // Git commit hash
	date        = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// journalPruneInterval is how often old journal rows are removed.
const journalPruneInterval = 24 * time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting pixood",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// The restart endpoint shuts the daemon down cleanly; the process
	// supervisor brings it back up.
	ctx, shutdown := context.WithCancel(ctx)
	defer shutdown()

	// State store and crash recovery
	st := store.New(cfg.StateFilePath(), log.With("component", "store").Logger)
	persisted, err := st.Load()
	if err != nil {
		return fmt.Errorf("loading device state: %w", err)
	}
	log.Info("state file loaded", "path", cfg.StateFilePath(), "devices", len(persisted))

	// Scene registry
	registry := scene.NewRegistry()
	if err := scene.RegisterBuiltins(registry); err != nil {
		return fmt.Errorf("registering scenes: %w", err)
	}
	log.Info("scene registry initialised", "scenes", len(registry.Names()))

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	topics := mqtt.Topics{}

	// Event journal (optional)
	var eventJournal *journal.Journal
	if cfg.Storage.JournalEnabled {
		eventJournal, err = journal.Open(cfg.JournalPath(), log.With("component", "journal").Logger)
		if err != nil {
			return fmt.Errorf("opening event journal: %w", err)
		}
		defer func() {
			log.Info("closing event journal")
			if closeErr := eventJournal.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
		}()
		st.Subscribe(eventJournal.Listener())
		go pruneJournalLoop(ctx, eventJournal, cfg.Storage.JournalRetentionDays, log)
		log.Info("event journal opened", "path", eventJournal.Path())
	} else {
		log.Info("event journal disabled")
	}

	// Driver factory and frame scheduler
	factory := &device.Factory{
		Publisher:  mqttClient,
		FrameTopic: topics.DeviceFrame,
		Logger:     log.With("component", "device").Logger,
	}
	sched := scheduler.New(schedulerConfig(cfg.Scheduler), scheduler.Deps{
		Store:    st,
		Registry: registry,
		Factory:  factory,
		Logger:   log.With("component", "scheduler").Logger,
	})
	defer func() {
		log.Info("stopping scheduler")
		if closeErr := sched.Close(); closeErr != nil {
			log.Error("error stopping scheduler", "error", closeErr)
		}
	}()

	// Register devices, merging persisted state over config
	for _, dc := range cfg.Devices {
		state := deviceState(dc, persisted)
		if err := sched.AddDevice(state); err != nil {
			log.Error("device registration failed", "device", dc.ID, "error", err)
			continue
		}
		log.Info("device registered",
			"device", state.ID,
			"type", state.Type,
			"driver", string(state.DriverKind),
		)
	}

	// Command router (MQTT adapter)
	cmdRouter := router.New(router.Deps{
		Bus:       mqttClient,
		Scheduler: sched,
		Store:     st,
		Logger:    log.With("component", "router").Logger,
		Info:      router.BuildInfo{Version: version, BuildNumber: buildNumber, GitCommit: commit},
	})
	if err := cmdRouter.Start(); err != nil {
		return fmt.Errorf("starting command router: %w", err)
	}
	defer func() {
		log.Info("stopping command router")
		if closeErr := cmdRouter.Close(); closeErr != nil {
			log.Error("error stopping command router", "error", closeErr)
		}
	}()
	log.Info("command router started")

	// Watchdog
	wd := watchdog.New(time.Duration(cfg.Watchdog.CheckIntervalSeconds)*time.Second, watchdog.Deps{
		Store:     st,
		Scheduler: sched,
		Registry:  registry,
		Publisher: mqttClient,
		Logger:    log.With("component", "watchdog").Logger,
	})
	wd.Start()
	defer func() {
		log.Info("stopping watchdog")
		if closeErr := wd.Close(); closeErr != nil {
			log.Error("error stopping watchdog", "error", closeErr)
		}
	}()

	// Cron scene schedules
	scheduleRunner, err := schedule.New(cfg.Schedules, sched, log.With("component", "schedule").Logger)
	if err != nil {
		return fmt.Errorf("loading schedules: %w", err)
	}
	scheduleRunner.Start()
	defer func() {
		log.Info("stopping schedule runner")
		if closeErr := scheduleRunner.Close(); closeErr != nil {
			log.Error("error stopping schedule runner", "error", closeErr)
		}
	}()

	// REST API
	if cfg.API.Enabled {
		apiServer, err := api.New(api.Deps{
			Config:    cfg.API,
			Logger:    log.With("component", "api").Logger,
			Scheduler: sched,
			Store:     st,
			Registry:  registry,
			Journal:   eventJournal,
			Bus:       mqttClient,
			Restart:   shutdown,
			Info:      api.BuildInfo{Version: version, BuildNumber: buildNumber, GitCommit: commit},
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("REST API disabled")
	}

	// Startup scenes
	for _, devState := range st.List() {
		if devState.StartupScene == "" {
			continue
		}
		if err := sched.SwitchScene(devState.ID, devState.StartupScene, nil); err != nil {
			log.Error("startup scene failed",
				"device", devState.ID,
				"scene", devState.StartupScene,
				"error", err)
		}
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses the PIXOO_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PIXOO_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// schedulerConfig converts YAML tuning values into scheduler settings,
// falling back to defaults for anything unset.
func schedulerConfig(sc config.SchedulerConfig) scheduler.Config {
	cfg := scheduler.DefaultConfig()
	if sc.MinFrameDelayMS > 0 {
		cfg.MinFrameDelay = time.Duration(sc.MinFrameDelayMS) * time.Millisecond
	}
	if sc.MaxRenderFailures > 0 {
		cfg.MaxRenderFailures = sc.MaxRenderFailures
	}
	if sc.PushRetries > 0 {
		cfg.PushRetries = sc.PushRetries
	}
	if sc.InitBudgetMS > 0 {
		cfg.InitBudget = time.Duration(sc.InitBudgetMS) * time.Millisecond
	}
	if sc.RenderBudgetMS > 0 {
		cfg.RenderBudget = time.Duration(sc.RenderBudgetMS) * time.Millisecond
	}
	if sc.ShutdownGraceMS > 0 {
		cfg.ShutdownGrace = time.Duration(sc.ShutdownGraceMS) * time.Millisecond
	}
	return cfg
}

// deviceState builds the initial store record for a configured device,
// overlaying any persisted runtime state from a previous run.
func deviceState(dc config.DeviceConfig, persisted map[string]store.PersistedDevice) store.DeviceState {
	state := store.DeviceState{
		ID:           dc.ID,
		Name:         dc.Name,
		Address:      dc.ID,
		Type:         dc.Type,
		DriverKind:   dc.Driver,
		Brightness:   dc.Brightness,
		DisplayOn:    dc.DisplayOn,
		StartupScene: dc.StartupScene,
		Watchdog:     dc.Watchdog,
	}
	if state.Name == "" {
		state.Name = dc.ID
	}
	if p, ok := persisted[dc.ID]; ok {
		store.Recover(&state, p)
	}
	return state
}

// pruneJournalLoop removes aged journal rows once at startup and then
// daily until shutdown.
func pruneJournalLoop(ctx context.Context, j *journal.Journal, retentionDays int, log *logging.Logger) {
	if retentionDays <= 0 {
		return
	}
	retention := time.Duration(retentionDays) * 24 * time.Hour

	prune := func() {
		n, err := j.Prune(ctx, retention)
		if err != nil {
			log.Warn("journal prune failed", "error", err)
			return
		}
		if n > 0 {
			log.Info("journal pruned", "removed", n)
		}
	}

	prune()
	ticker := time.NewTicker(journalPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
