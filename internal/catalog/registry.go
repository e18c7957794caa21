// Package catalog ships the built-in signature catalogues and the
// registry that serves immutable snapshots of them to the engine.
package catalog

import (
	"sync"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// Registry holds the loaded catalogues. Catalogues are immutable;
// reloads build a fresh value and swap the map entry, so concurrent
// readers always observe a consistent version.
type Registry struct {
	mu         sync.RWMutex
	catalogues map[string]*domain.Catalogue
}

// NewRegistry creates a registry preloaded with the built-in
// catalogues.
func NewRegistry() *Registry {
	r := &Registry{catalogues: make(map[string]*domain.Catalogue)}
	for _, c := range Builtin() {
		r.catalogues[c.ID] = c
	}
	return r
}

// Builtin returns the five shipped catalogues.
func Builtin() []*domain.Catalogue {
	return []*domain.Catalogue{
		URLCatalogue(),
		CertCatalogue(),
		FlowCatalogue(),
		AuditCatalogue(),
		PolicyCatalogue(),
	}
}

// Get returns the catalogue for the id, or ErrCatalogueUnavailable.
func (r *Registry) Get(id string) (*domain.Catalogue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.catalogues[id]
	if !ok || c == nil {
		return nil, domain.ErrCatalogueUnavailable
	}
	return c, nil
}

// IDs returns loaded catalogue ids in stable order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.catalogues))
	for _, c := range Builtin() {
		if _, ok := r.catalogues[c.ID]; ok {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Versions reports catalogue id -> version for the health surface.
func (r *Registry) Versions() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.catalogues))
	for id, c := range r.catalogues {
		out[id] = c.Version
	}
	return out
}

// Swap atomically replaces one catalogue with a new immutable value.
func (r *Registry) Swap(c *domain.Catalogue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalogues[c.ID] = c
}

// Extend builds a new catalogue value from the built-in base of the
// given id plus the compiled custom signatures appended after the
// built-ins, and swaps it in. The previous value is untouched, so
// in-flight evaluations finish on the snapshot they started with.
func (r *Registry) Extend(id string, custom []domain.Signature) error {
	var base *domain.Catalogue
	for _, c := range Builtin() {
		if c.ID == id {
			base = c
			break
		}
	}
	if base == nil {
		return domain.ErrCatalogueUnavailable
	}

	if len(custom) > 0 {
		next := *base
		next.Signatures = make([]domain.Signature, 0, len(base.Signatures)+len(custom))
		next.Signatures = append(next.Signatures, base.Signatures...)
		next.Signatures = append(next.Signatures, custom...)
		next.Version = base.Version + "+custom"
		r.Swap(&next)
		return nil
	}

	r.Swap(base)
	return nil
}
