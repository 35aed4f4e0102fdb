package tracing

import (
	"slices"
	"sync"
)

// Registry holds the enabled state of every adapter. Adapters are enabled
// unless explicitly disabled. A nil *Registry enables everything.
type Registry struct {
	mu       sync.RWMutex
	disabled map[string]bool
	known    map[string]struct{}
}

// NewRegistry creates a registry with every adapter enabled
func NewRegistry() *Registry {
	return &Registry{
		disabled: make(map[string]bool),
		known:    make(map[string]struct{}),
	}
}

// Enable turns tracing on for adapter. Enabling twice is a no-op.
func (r *Registry) Enable(adapter string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[adapter] = struct{}{}
	delete(r.disabled, adapter)
}

// Disable turns tracing off for adapter; its calls pass straight through
func (r *Registry) Disable(adapter string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[adapter] = struct{}{}
	r.disabled[adapter] = true
}

// Enabled reports whether calls of adapter are traced
func (r *Registry) Enabled(adapter string) bool {
	if r == nil || adapter == "" {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.disabled[adapter]
}

// Adapters returns the names the registry has seen, sorted
func (r *Registry) Adapters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.known))
	for name := range r.known {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
