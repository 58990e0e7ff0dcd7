package scene

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Domain-specific errors for scene lookup and registration.
var (
	// ErrUnknownScene is returned when a scene name is not registered.
	ErrUnknownScene = errors.New("scene: unknown scene")

	// ErrDuplicateScene is returned when a name is registered twice.
	// Callers treat this as fatal at startup; a silently shadowed scene
	// would render the wrong content with no error surfaced anywhere.
	ErrDuplicateScene = errors.New("scene: duplicate scene name")
)

// Descriptor is a registered scene.
//
// WantsLoop marks self-animating scenes whose Render returns a delay
// expecting to be called again; one-shot scenes leave it false. Hidden
// scenes are registered and switchable but omitted from listings.
type Descriptor struct {
	Name        string
	Description string
	Category    string
	WantsLoop   bool
	Hidden      bool
	Renderer    Renderer
}

// Registry maps scene names to renderers.
//
// Thread Safety: safe for concurrent use. Registration normally happens
// once at startup, lookups happen on every switch.
type Registry struct {
	mu     sync.RWMutex
	scenes map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{scenes: make(map[string]Descriptor)}
}

// Register adds a scene. Returns ErrDuplicateScene if the name is taken.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("scene: descriptor has empty name")
	}
	if d.Renderer == nil {
		return fmt.Errorf("scene: descriptor %q has nil renderer", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.scenes[d.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateScene, d.Name)
	}
	r.scenes[d.Name] = d
	return nil
}

// Lookup returns the descriptor for a scene name.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.scenes[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownScene, name)
	}
	return d, nil
}

// Names returns all registered scene names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scenes))
	for name := range r.scenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all descriptors, sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.scenes))
	for _, d := range r.scenes {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
