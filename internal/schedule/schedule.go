// Package schedule runs cron driven scene switches.
package schedule

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/openpixel/pixood/internal/infrastructure/config"
	"github.com/openpixel/pixood/internal/scheduler"
)

// Runner owns the cron engine and translates firing entries into scene
// switches on the frame scheduler.
type Runner struct {
	cron  *cron.Cron
	sched *scheduler.Scheduler
	log   *slog.Logger
	count int
}

// New creates a runner for the given schedule entries. Entries are
// validated up front so a bad cron expression fails at startup rather
// than silently never firing.
//
// Parameters:
//   - entries: cron/device/scene triples from configuration
//   - sched: scheduler the switches are issued to
//   - log: structured logger (nil for discard)
//
// Returns:
//   - *Runner: configured but not yet started runner
//   - error: first invalid entry encountered
func New(entries []config.ScheduleEntry, sched *scheduler.Scheduler, log *slog.Logger) (*Runner, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &Runner{
		// Standard 5 field expressions: minute hour dom month dow.
		cron:  cron.New(),
		sched: sched,
		log:   log,
	}

	for i, e := range entries {
		entry := e
		_, err := r.cron.AddFunc(entry.Cron, func() { r.fire(entry) })
		if err != nil {
			return nil, fmt.Errorf("schedules[%d]: invalid cron %q: %w", i, entry.Cron, err)
		}
		r.count++
	}
	return r, nil
}

// Start launches the cron engine. Entries fire on their own goroutine.
func (r *Runner) Start() {
	r.cron.Start()
	r.log.Info("schedule runner started", "entries", r.count)
}

// Close stops the engine and waits for any running entry to finish.
func (r *Runner) Close() error {
	<-r.cron.Stop().Done()
	return nil
}

// Len returns the number of registered schedule entries.
func (r *Runner) Len() int {
	return r.count
}

// fire issues one scheduled switch. Failures are logged, never fatal;
// the entry fires again on its next cron tick.
func (r *Runner) fire(e config.ScheduleEntry) {
	r.log.Info("scheduled scene switch", "device", e.Device, "scene", e.Scene, "cron", e.Cron)
	if err := r.sched.SwitchScene(e.Device, e.Scene, nil); err != nil {
		r.log.Error("scheduled switch failed",
			"device", e.Device,
			"scene", e.Scene,
			"error", err)
	}
}
