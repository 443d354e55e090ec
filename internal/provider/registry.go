package provider

import (
	"fmt"
	"sync"

	"github.com/AntoineXev/miniorg/internal/model"
)

// Registry maps provider names to their adapters.
// It is thread-safe for concurrent access.
type Registry struct {
	mu        sync.RWMutex
	providers map[model.Provider]Provider
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[model.Provider]Provider)}
}

// Register adds an adapter to the registry, replacing any adapter
// previously registered under the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves the adapter for a provider name.
func (r *Registry) Get(name model.Provider) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", name)
	}
	return p, nil
}

// Names returns the registered provider names.
func (r *Registry) Names() []model.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]model.Provider, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
