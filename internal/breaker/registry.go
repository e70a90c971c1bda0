package breaker

import "sync"

// Registry hands out one breaker per provider ID, created lazily on
// first use and kept for the process lifetime.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*Breaker
}

// NewRegistry creates a Registry whose breakers share the given config.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for the given provider, creating it if needed.
func (r *Registry) Get(providerID string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[providerID]
	if !ok {
		b = New(r.cfg)
		r.breakers[providerID] = b
	}
	return b
}
