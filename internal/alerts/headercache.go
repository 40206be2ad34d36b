package alerts

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Snapshot is a cached settle-all result for one farm.
type Snapshot struct {
	FarmID    string          `json:"farmId"`
	Total     int             `json:"total"`
	States    []ProviderState `json:"states"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// HeaderCache serves short-lived per-farm totals for header badges and the
// metrics exporter. Concurrent misses for one farm share a single fetch.
type HeaderCache struct {
	registry    *Registry
	cache       *expirable.LRU[string, Snapshot]
	group       singleflight.Group
	maxParallel int
	logger      *zap.SugaredLogger
	now         func() time.Time
}

const headerCacheSize = 64

func NewHeaderCache(registry *Registry, ttl time.Duration, maxParallel int, logger *zap.SugaredLogger) *HeaderCache {
	return &HeaderCache{
		registry:    registry,
		cache:       expirable.NewLRU[string, Snapshot](headerCacheSize, nil, ttl),
		maxParallel: maxParallel,
		logger:      logger,
		now:         time.Now,
	}
}

// Get returns the cached snapshot for farmID, fetching it on a miss.
func (h *HeaderCache) Get(ctx context.Context, farmID string) Snapshot {
	if snap, ok := h.cache.Get(farmID); ok {
		return snap
	}

	v, _, _ := h.group.Do(farmID, func() (any, error) {
		states := settleAll(ctx, farmID, h.registry.Providers(), h.maxParallel, h.logger)
		snap := Snapshot{
			FarmID:    farmID,
			Total:     totalOf(states),
			States:    states,
			FetchedAt: h.now(),
		}
		h.cache.Add(farmID, snap)
		return snap, nil
	})
	return v.(Snapshot)
}

// Peek returns the cached snapshot without fetching.
func (h *HeaderCache) Peek(farmID string) (Snapshot, bool) {
	return h.cache.Peek(farmID)
}

func (h *HeaderCache) Invalidate(farmID string) {
	if h.cache.Remove(farmID) {
		h.logger.Debugw("header cache invalidated", "farm", farmID)
	}
}

// Attach drops cached entries whenever bus emits for their farm.
func (h *HeaderCache) Attach(bus *Bus) func() {
	return bus.Subscribe(h.Invalidate)
}
