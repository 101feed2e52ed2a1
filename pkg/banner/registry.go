package banner

import (
	"fmt"
	"sync"
)

// Registry holds banner candidates in declaration order.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	banners    []Banner
	index      map[string]int
	conditions *Conditions
}

// NewRegistry creates an empty registry whose conditions compile against c.
func NewRegistry(c *Conditions) *Registry {
	return &Registry{
		index:      make(map[string]int),
		conditions: c,
	}
}

// Register appends a candidate. Duplicate ids and invalid conditions are rejected.
func (r *Registry) Register(b Banner) error {
	if b.ID == "" {
		return fmt.Errorf("banner id is required")
	}
	if b.CTA != CTASignup && b.CTA != CTAUpgrade {
		return fmt.Errorf("banner %s: unknown cta %q", b.ID, b.CTA)
	}
	if b.Condition != "" {
		if err := r.conditions.Compile(b.Condition); err != nil {
			return fmt.Errorf("banner %s: %w", b.ID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[b.ID]; exists {
		return fmt.Errorf("banner %s already registered", b.ID)
	}
	r.index[b.ID] = len(r.banners)
	r.banners = append(r.banners, b)
	return nil
}

// Get returns the candidate with id.
func (r *Registry) Get(id string) (Banner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return Banner{}, false
	}
	return r.banners[i], true
}

// All returns the candidates in declaration order.
func (r *Registry) All() []Banner {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Banner, len(r.banners))
	copy(out, r.banners)
	return out
}

// Conditions returns the CEL environment used by the registry.
func (r *Registry) Conditions() *Conditions {
	return r.conditions
}
