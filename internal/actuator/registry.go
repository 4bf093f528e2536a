package actuator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"normcode/internal/logging"
)

// Registry holds the available actuators. It is thread-safe and supports
// registration at runtime.
type Registry struct {
	mu        sync.RWMutex
	actuators map[string]Actuator
}

// NewRegistry creates an empty actuator registry.
func NewRegistry() *Registry {
	return &Registry{actuators: make(map[string]Actuator)}
}

// Register adds an actuator. Duplicate names are an error.
func (r *Registry) Register(a Actuator) error {
	if a == nil || a.Name() == "" {
		return ErrNameEmpty
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actuators[a.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, a.Name())
	}
	r.actuators[a.Name()] = a

	logging.ToolsDebug("Registered actuator: %s", a.Name())
	return nil
}

// MustRegister registers an actuator and panics on error. Use for static
// registration during engine construction.
func (r *Registry) MustRegister(a Actuator) {
	if err := r.Register(a); err != nil {
		panic(fmt.Sprintf("failed to register actuator %s: %v", a.Name(), err))
	}
}

// Get returns an actuator by name, or nil if not found.
func (r *Registry) Get(name string) Actuator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.actuators[name]
}

// Has reports whether an actuator with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actuators[name]
	return ok
}

// Names returns all registered actuator names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actuators))
	for name := range r.actuators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered actuators.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actuators)
}

// Actuate runs the named actuator. Failures come back as *ActuationError so
// the engine can attach them to the failing inference's checkpoint entry.
func (r *Registry) Actuate(ctx context.Context, name string, req *Request) (*Result, error) {
	a := r.Get(name)
	if a == nil {
		return nil, &ActuationError{Address: req.Address, Actuator: name, Err: ErrNotFound}
	}

	start := time.Now()
	logging.ActuationDebug("Actuating %s at %s (output=%s)", name, req.Address, req.Output)

	result, err := a.Actuate(ctx, req)

	duration := time.Since(start)
	logging.Actuation("Actuator %s at %s completed in %v (success=%v)",
		name, req.Address, duration, err == nil)

	if err != nil {
		return nil, &ActuationError{Address: req.Address, Actuator: name, Err: err}
	}
	result.DurationMs = duration.Milliseconds()
	return result, nil
}
