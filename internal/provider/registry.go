package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lcollado/adforge/internal/domain"
)

// Registry maps provider IDs to adapters. Adapters are registered during
// startup; lookups afterwards are concurrent-safe.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its own ID. Registering the same ID
// twice is a wiring bug and returns an error.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := a.ID()
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("adapter %q already registered", id)
	}
	r.adapters[id] = a
	return nil
}

// Get returns the adapter for the given provider ID.
func (r *Registry) Get(providerID string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, providerID)
	}
	return a, nil
}

// IDs returns the registered provider IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
