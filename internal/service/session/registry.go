package session

import (
	"sync"

	"github.com/zhouzirui/clipdesk/backend/internal/transport"
)

// Registry maps a participant identity to its live endpoint, independent of
// channel membership. It backs direct out-of-band delivery, e.g. a synthesis
// error sent after the originating channel was already torn down.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]transport.Endpoint
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]transport.Endpoint)}
}

// Register binds identity to endpoint, overwriting any prior entry.
func (r *Registry) Register(identity string, ep transport.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[identity] = ep
}

// Lookup returns the live endpoint for identity, if any.
func (r *Registry) Lookup(identity string) (transport.Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[identity]
	return ep, ok
}

// Unregister removes the entry for identity. No-op if absent.
func (r *Registry) Unregister(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.endpoints, identity)
}
