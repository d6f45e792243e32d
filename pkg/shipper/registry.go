package shipper

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the dispatch table from carrier identifier to adapter.
type Registry struct {
	shippers map[Carrier]Shipper
	mu       sync.RWMutex
}

// NewRegistry creates a new shipper registry.
func NewRegistry() *Registry {
	return &Registry{
		shippers: make(map[Carrier]Shipper),
	}
}

// Register adds a shipper to the registry, replacing any previous adapter
// for the same carrier.
func (r *Registry) Register(s Shipper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shippers[s.Carrier()] = s
}

// Get returns the adapter of a carrier.
func (r *Registry) Get(c Carrier) (Shipper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.shippers[c]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCarrierNotFound, c)
}

// Carriers returns the identifiers of all registered shippers, sorted.
func (r *Registry) Carriers() []Carrier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	carriers := make([]Carrier, 0, len(r.shippers))
	for c := range r.shippers {
		carriers = append(carriers, c)
	}
	sort.Slice(carriers, func(i, j int) bool { return carriers[i] < carriers[j] })
	return carriers
}

// Count returns the number of registered shippers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shippers)
}
