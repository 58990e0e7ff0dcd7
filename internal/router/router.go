package router

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/openpixel/pixood/internal/infrastructure/mqtt"
	"github.com/openpixel/pixood/internal/scheduler"
	"github.com/openpixel/pixood/internal/store"
)

// Bus is the slice of the MQTT client the router needs. The concrete
// client satisfies it; tests inject a fake.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// BuildInfo identifies the running daemon in outbound payloads.
type BuildInfo struct {
	Version     string
	BuildNumber string
	GitCommit   string
}

// Router connects the message bus to the scheduler.
//
// Inbound, it subscribes to both command prefix families and dispatches
// scene switches, driver swaps and resets. Outbound, it listens on the
// store's event spine and publishes state transitions, frame acks and
// errors to the per-device topics.
type Router struct {
	bus   Bus
	sched *scheduler.Scheduler
	store *store.Store
	log   *slog.Logger
	info  BuildInfo

	topics mqtt.Topics

	// events decouples store emissions from bus publishes. Store
	// listeners run on the emitting goroutine and must not block, but a
	// publish can wait on the broker; the dispatcher goroutine drains
	// this buffer.
	events    chan store.Event
	done      chan struct{}
	closeOnce sync.Once

	// prefixMu guards the per-device command prefix memory: scene state
	// events mirror whichever prefix the device was last addressed with.
	prefixMu sync.Mutex
	prefixes map[string]string
}

// Deps carries the router's dependencies.
type Deps struct {
	Bus       Bus
	Scheduler *scheduler.Scheduler
	Store     *store.Store
	Logger    *slog.Logger
	Info      BuildInfo
}

// New creates a router. Call Start to begin handling traffic.
func New(deps Deps) *Router {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{
		bus:      deps.Bus,
		sched:    deps.Scheduler,
		store:    deps.Store,
		log:      log,
		info:     deps.Info,
		events:   make(chan store.Event, eventBufferSize),
		done:     make(chan struct{}),
		prefixes: make(map[string]string),
	}
}

// Start subscribes to both command wildcards, registers the outbound
// event listener and launches the event dispatcher.
func (r *Router) Start() error {
	if err := r.bus.Subscribe(r.topics.CommandWildcard(), 1, r.handleCommand); err != nil {
		return fmt.Errorf("subscribe commands: %w", err)
	}
	if err := r.bus.Subscribe(r.topics.LegacyCommandWildcard(), 1, r.handleCommand); err != nil {
		return fmt.Errorf("subscribe legacy commands: %w", err)
	}

	r.store.Subscribe(r.onEvent)
	go r.dispatchEvents()

	r.log.Info("command router started",
		"commands", r.topics.CommandWildcard(),
		"legacy", r.topics.LegacyCommandWildcard())
	return nil
}

// Close stops the event dispatcher. Events emitted afterwards are
// dropped. Idempotent.
func (r *Router) Close() error {
	r.closeOnce.Do(func() { close(r.done) })
	return nil
}

// commandPrefix returns the prefix a device was last addressed with.
func (r *Router) commandPrefix(deviceID string) string {
	r.prefixMu.Lock()
	defer r.prefixMu.Unlock()
	if p, ok := r.prefixes[deviceID]; ok {
		return p
	}
	return mqtt.TopicPrefix
}

func (r *Router) rememberPrefix(deviceID, prefix string) {
	r.prefixMu.Lock()
	defer r.prefixMu.Unlock()
	r.prefixes[deviceID] = prefix
}
