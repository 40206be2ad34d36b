package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHeaderCacheServesFromCacheWithinTTL(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	p := countProvider("health", 100, 4)
	reg.Register(p)
	reg.Register(failingProvider("lactation", 70))

	cache := NewHeaderCache(reg, time.Minute, 2, zap.NewNop().Sugar())

	first := cache.Get(context.Background(), "1")
	second := cache.Get(context.Background(), "1")

	assert.Equal(t, 4, first.Total)
	assert.Equal(t, "1", first.FarmID)
	require.Len(t, first.States, 2)
	assert.True(t, first.States[1].Error)
	assert.Equal(t, first.FetchedAt, second.FetchedAt)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestHeaderCacheKeysByFarm(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	reg.Register(&fakeProvider{
		key:      "health",
		priority: 100,
		summary: func(_ context.Context, farmID string) (Summary, error) {
			if farmID == "1" {
				return Summary{Count: 1}, nil
			}
			return Summary{Count: 7}, nil
		},
	})

	cache := NewHeaderCache(reg, time.Minute, 2, zap.NewNop().Sugar())
	assert.Equal(t, 1, cache.Get(context.Background(), "1").Total)
	assert.Equal(t, 7, cache.Get(context.Background(), "2").Total)
}

func TestHeaderCacheInvalidatedByBus(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	p := countProvider("health", 100, 2)
	reg.Register(p)

	bus := NewBus()
	cache := NewHeaderCache(reg, time.Minute, 2, zap.NewNop().Sugar())
	unsubscribe := cache.Attach(bus)
	defer unsubscribe()

	cache.Get(context.Background(), "1")
	_, ok := cache.Peek("1")
	require.True(t, ok)

	bus.Emit("1")
	_, ok = cache.Peek("1")
	assert.False(t, ok)

	cache.Get(context.Background(), "1")
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestHeaderCacheExpires(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	p := countProvider("health", 100, 2)
	reg.Register(p)

	cache := NewHeaderCache(reg, 20*time.Millisecond, 2, zap.NewNop().Sugar())
	cache.Get(context.Background(), "1")

	assert.Eventually(t, func() bool {
		_, ok := cache.Peek("1")
		return !ok
	}, time.Second, 5*time.Millisecond)

	cache.Get(context.Background(), "1")
	assert.Equal(t, int32(2), p.calls.Load())
}
