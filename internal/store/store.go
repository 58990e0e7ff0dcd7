package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// Domain-specific errors. Use errors.Is() in calling code.
var (
	// ErrUnknownDevice is returned for operations on an unregistered device.
	ErrUnknownDevice = errors.New("store: unknown device")

	// ErrDeviceExists is returned when adding a device whose ID is taken.
	ErrDeviceExists = errors.New("store: device already registered")
)

// Listener receives state transition events. Listeners run on the
// emitting goroutine and must not block.
type Listener func(Event)

// Store owns every DeviceState in the daemon.
//
// All other components read snapshots or mutate through Update; nobody
// holds a live pointer into the store. Mutations to one device are
// serialized by that device's mutex, so concurrent inputs from the bus,
// REST and the watchdog linearize naturally. Distinct devices do not
// contend.
//
// The durable subset (identity, brightness, display power, last known
// scene) is written to a JSON file after every mutation that changes
// it, using an atomic temp-file-plus-rename. The in-memory state is the
// source of truth; the file only seeds recovery after a restart.
type Store struct {
	path string
	log  *slog.Logger

	mu      sync.RWMutex
	devices map[string]*deviceEntry

	listenerMu sync.RWMutex
	listeners  []Listener
}

type deviceEntry struct {
	mu    sync.Mutex
	state DeviceState
	bags  map[string]map[string]any // sceneName -> state bag
}

// PersistedDevice is the durable subset written to disk.
type PersistedDevice struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Address      string `json:"address,omitempty"`
	Type         string `json:"type"`
	DriverKind   string `json:"driver"`
	Brightness   int    `json:"brightness"`
	DisplayOn    bool   `json:"displayOn"`
	StartupScene string `json:"startupScene,omitempty"`
	LastScene    string `json:"lastScene,omitempty"`
}

// New creates a store persisting to path. The logger may be nil.
func New(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		path:    path,
		log:     log,
		devices: make(map[string]*deviceEntry),
	}
}

// Load reads the persisted device file and returns the recovered
// records so the caller can merge them with configured devices.
//
// A missing file is a clean first start. A corrupt file is logged at
// WARN and treated as empty; it must never prevent startup.
func (s *Store) Load() (map[string]PersistedDevice, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var recovered map[string]PersistedDevice
	if err := json.Unmarshal(data, &recovered); err != nil {
		s.log.Warn("state file corrupt, starting from defaults",
			"path", s.path,
			"error", err)
		return nil, nil
	}
	return recovered, nil
}

// Recover applies a persisted record onto a device state, restoring the
// durable fields the process carried before its last shutdown.
func Recover(st *DeviceState, p PersistedDevice) {
	st.Brightness = p.Brightness
	st.DisplayOn = p.DisplayOn
	st.DriverKind = p.DriverKind
	if p.LastScene != "" {
		st.StartupScene = p.LastScene
	}
}

// AddDevice registers a device. The zero Scene state is normalized to
// idle/stopped before insertion.
func (s *Store) AddDevice(st DeviceState) error {
	if st.ID == "" {
		return fmt.Errorf("store: device has empty ID")
	}
	if st.Scene.Status == "" {
		st.Scene.Status = StatusIdle
	}
	if st.Scene.PlayState == "" {
		st.Scene.PlayState = PlayStopped
	}

	s.mu.Lock()
	if _, exists := s.devices[st.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceExists, st.ID)
	}
	s.devices[st.ID] = &deviceEntry{
		state: st,
		bags:  make(map[string]map[string]any),
	}
	s.mu.Unlock()

	s.persist()
	s.Emit(Event{Type: EventDeviceAdded, DeviceID: st.ID, TS: time.Now()})
	return nil
}

// RemoveDevice deletes a device and its scene state bags.
func (s *Store) RemoveDevice(deviceID string) error {
	s.mu.Lock()
	if _, exists := s.devices[deviceID]; !exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	delete(s.devices, deviceID)
	s.mu.Unlock()

	s.persist()
	s.Emit(Event{Type: EventDeviceRemoved, DeviceID: deviceID, TS: time.Now()})
	return nil
}

// Get returns a snapshot of one device's state.
func (s *Store) Get(deviceID string) (DeviceState, error) {
	entry, err := s.entry(deviceID)
	if err != nil {
		return DeviceState{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.state, nil
}

// Has reports whether a device is registered.
func (s *Store) Has(deviceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.devices[deviceID]
	return ok
}

// List returns snapshots of all devices, sorted by ID.
func (s *Store) List() []DeviceState {
	s.mu.RLock()
	entries := make([]*deviceEntry, 0, len(s.devices))
	for _, e := range s.devices {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]DeviceState, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.state)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Update atomically mutates one device's state under its mutex and
// returns the post-mutation snapshot. The durable file is rewritten
// only when the mutation changed the durable subset, so per-frame
// timestamp updates stay off the disk.
func (s *Store) Update(deviceID string, fn func(*DeviceState)) (DeviceState, error) {
	entry, err := s.entry(deviceID)
	if err != nil {
		return DeviceState{}, err
	}

	entry.mu.Lock()
	before := durable(entry.state)
	fn(&entry.state)
	entry.state.ID = deviceID // identity is not mutable
	after := durable(entry.state)
	snapshot := entry.state
	entry.mu.Unlock()

	if before != after {
		s.persist()
	}
	return snapshot, nil
}

// SceneValue reads a key from a device's per-scene state bag.
func (s *Store) SceneValue(deviceID, sceneName, key string) (any, bool) {
	entry, err := s.entry(deviceID)
	if err != nil {
		return nil, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	bag, ok := entry.bags[sceneName]
	if !ok {
		return nil, false
	}
	v, ok := bag[key]
	return v, ok
}

// SetSceneValue writes a key into a device's per-scene state bag.
func (s *Store) SetSceneValue(deviceID, sceneName, key string, value any) {
	entry, err := s.entry(deviceID)
	if err != nil {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	bag, ok := entry.bags[sceneName]
	if !ok {
		bag = make(map[string]any)
		entry.bags[sceneName] = bag
	}
	bag[key] = value
}

// ClearSceneState drops a scene's state bag, called when the scene is
// switched away so the next activation starts clean.
func (s *Store) ClearSceneState(deviceID, sceneName string) {
	entry, err := s.entry(deviceID)
	if err != nil {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	delete(entry.bags, sceneName)
}

// Subscribe registers a listener for state transition events.
// Subscriptions cannot be removed; the set is fixed at startup.
func (s *Store) Subscribe(l Listener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Emit delivers an event to all listeners. A panicking listener is
// logged and skipped; it cannot take down the emitting component.
func (s *Store) Emit(ev Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now()
	}

	s.listenerMu.RLock()
	listeners := s.listeners
	s.listenerMu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("event listener panicked",
						"event", string(ev.Type),
						"device", ev.DeviceID,
						"panic", r)
				}
			}()
			l(ev)
		}()
	}
}

// Persist forces a durable write, used at shutdown.
func (s *Store) Persist() error {
	return s.writeFile()
}

func (s *Store) entry(deviceID string) (*deviceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return entry, nil
}

func durable(st DeviceState) PersistedDevice {
	return PersistedDevice{
		ID:           st.ID,
		Name:         st.Name,
		Address:      st.Address,
		Type:         st.Type,
		DriverKind:   st.DriverKind,
		Brightness:   st.Brightness,
		DisplayOn:    st.DisplayOn,
		StartupScene: st.StartupScene,
		LastScene:    st.Scene.CurrentScene,
	}
}

func (s *Store) persist() {
	if err := s.writeFile(); err != nil {
		s.log.Error("state persistence failed", "path", s.path, "error", err)
	}
}

func (s *Store) writeFile() error {
	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	entries := make(map[string]*deviceEntry, len(s.devices))
	for id, e := range s.devices {
		entries[id] = e
	}
	s.mu.RUnlock()

	out := make(map[string]PersistedDevice, len(entries))
	for id, e := range entries {
		e.mu.Lock()
		out[id] = durable(e.state)
		e.mu.Unlock()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}
