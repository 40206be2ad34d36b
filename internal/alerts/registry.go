package alerts

import (
	"cmp"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Registry holds the alert providers ordered by descending priority.
// Providers are never removed.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	logger    *zap.SugaredLogger
}

func NewRegistry(logger *zap.SugaredLogger) *Registry {
	return &Registry{logger: logger}
}

// Register adds p unless its key is already taken, in which case the first
// registration wins and a warning is logged.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.providers {
		if existing.Key() == p.Key() {
			r.logger.Warnw("duplicate alert provider ignored", "key", p.Key())
			return
		}
	}

	r.providers = append(r.providers, p)
	slices.SortStableFunc(r.providers, func(a, b Provider) int {
		return cmp.Compare(b.Priority(), a.Priority())
	})
}

// Providers returns a copy of the ordered provider list.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.providers)
}

func (r *Registry) Provider(key string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		if p.Key() == key {
			return p, true
		}
	}
	return nil, false
}
