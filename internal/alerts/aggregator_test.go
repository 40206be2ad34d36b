package alerts

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// gatedProvider blocks inside Summary until release is closed.
func gatedProvider(key string, priority int, counts map[string]int) (*fakeProvider, chan struct{}, chan string) {
	release := make(chan struct{})
	entered := make(chan string, 8)
	p := &fakeProvider{
		key:      key,
		priority: priority,
		summary: func(ctx context.Context, farmID string) (Summary, error) {
			entered <- farmID
			<-release
			return Summary{Count: counts[farmID]}, nil
		},
	}
	return p, release, entered
}

func newTestAggregator(reg *Registry, bus *Bus, farmID string, opts ...AggregatorOption) *Aggregator {
	opts = append([]AggregatorOption{WithLogger(zap.NewNop().Sugar()), WithMaxParallel(4)}, opts...)
	return NewAggregator(reg, bus, farmID, opts...)
}

func TestAggregatorPartialFailureIsolation(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	reg.Register(countProvider("health", 100, 3))
	reg.Register(failingProvider("reproduction", 80))
	reg.Register(countProvider("lactation", 70, 5))

	agg := newTestAggregator(reg, NewBus(), "1")
	agg.Start(context.Background())
	defer agg.Stop()

	assert.Equal(t, 8, agg.TotalCount())
	assert.False(t, agg.IsLoading())

	states := agg.ProviderStates()
	require.Len(t, states, 3)
	errored := 0
	for _, s := range states {
		assert.False(t, s.Loading)
		if s.Error {
			errored++
			assert.Equal(t, "reproduction", s.ProviderKey)
			assert.Equal(t, 0, s.Summary.Count)
		}
	}
	assert.Equal(t, 1, errored)
}

func TestAggregatorRecoversFromPanickingProvider(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	reg.Register(countProvider("health", 100, 2))
	reg.Register(panickingProvider("lactation", 70))

	agg := newTestAggregator(reg, NewBus(), "1")
	agg.Start(context.Background())
	defer agg.Stop()

	states := agg.ProviderStates()
	require.Len(t, states, 2)
	assert.Equal(t, "health", states[0].ProviderKey)
	assert.False(t, states[0].Error)
	assert.Equal(t, "lactation", states[1].ProviderKey)
	assert.True(t, states[1].Error)
	assert.Equal(t, 2, agg.TotalCount())
}

func TestAggregatorStatesFollowRegistryOrder(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	reg.Register(countProvider("lactation", 70, 1))
	reg.Register(countProvider("health", 100, 1))
	reg.Register(countProvider("reproduction", 80, 1))

	agg := newTestAggregator(reg, NewBus(), "1")
	agg.Start(context.Background())
	defer agg.Stop()

	var keys []string
	for _, s := range agg.ProviderStates() {
		keys = append(keys, s.ProviderKey)
	}
	assert.Equal(t, []string{"health", "reproduction", "lactation"}, keys)
}

func TestAggregatorKeepsPreviousSummaryWhileLoading(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	counts := map[string]int{"1": 4}
	p, release, entered := gatedProvider("health", 100, counts)
	reg.Register(p)

	agg := newTestAggregator(reg, NewBus(), "1")
	close(release)
	agg.Start(context.Background())
	<-entered
	require.Equal(t, 4, agg.TotalCount())

	// Second cycle blocks inside the provider.
	release2 := make(chan struct{})
	p.summary = func(ctx context.Context, farmID string) (Summary, error) {
		entered <- farmID
		<-release2
		return Summary{Count: 6}, nil
	}

	done := make(chan struct{})
	go func() {
		agg.RefreshAlerts(context.Background())
		close(done)
	}()
	<-entered

	assert.True(t, agg.IsLoading())
	states := agg.ProviderStates()
	require.Len(t, states, 1)
	assert.True(t, states[0].Loading)
	assert.Equal(t, 4, states[0].Summary.Count)
	assert.Equal(t, 4, agg.TotalCount())

	close(release2)
	<-done

	assert.False(t, agg.IsLoading())
	assert.Equal(t, 6, agg.TotalCount())
	agg.Stop()
}

func TestAggregatorDoesNothingBeforeStart(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	p := countProvider("health", 100, 3)
	reg.Register(p)

	agg := newTestAggregator(reg, NewBus(), "1")
	agg.RefreshAlerts(context.Background())

	assert.Equal(t, int32(0), p.calls.Load())
	assert.Empty(t, agg.ProviderStates())
}

func TestAggregatorDropsResultsAfterStop(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	p, release, entered := gatedProvider("health", 100, map[string]int{"1": 9})
	reg.Register(p)

	bus := NewBus()
	agg := newTestAggregator(reg, bus, "1")

	done := make(chan struct{})
	go func() {
		agg.Start(context.Background())
		close(done)
	}()
	<-entered

	agg.Stop()
	assert.Equal(t, 0, bus.Len())

	close(release)
	<-done

	assert.Equal(t, 0, agg.TotalCount())
	for _, s := range agg.ProviderStates() {
		assert.Equal(t, 0, s.Summary.Count)
	}
	assert.False(t, agg.IsLoading())
}

func TestAggregatorDiscardsStaleFarmResults(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	release := make(chan struct{})
	entered := make(chan string, 4)
	p := &fakeProvider{
		key:      "health",
		priority: 100,
		summary: func(ctx context.Context, farmID string) (Summary, error) {
			if farmID == "A" {
				entered <- farmID
				<-release
				return Summary{Count: 50}, nil
			}
			return Summary{Count: 2}, nil
		},
	}
	reg.Register(p)

	agg := newTestAggregator(reg, NewBus(), "A")
	done := make(chan struct{})
	go func() {
		agg.Start(context.Background())
		close(done)
	}()
	<-entered

	agg.SetFarm(context.Background(), "B")
	assert.Equal(t, "B", agg.FarmID())
	assert.Equal(t, 2, agg.TotalCount())

	close(release)
	<-done

	assert.Equal(t, 2, agg.TotalCount(), "stale farm A result must not overwrite farm B")
	agg.Stop()
}

func TestAggregatorRefreshesOnMatchingBusEvent(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	var count atomic.Int32
	count.Store(1)
	reg.Register(&fakeProvider{
		key:      "health",
		priority: 100,
		summary: func(context.Context, string) (Summary, error) {
			return Summary{Count: int(count.Load())}, nil
		},
	})

	bus := NewBus()
	agg := newTestAggregator(reg, bus, "1")
	agg.Start(context.Background())
	defer agg.Stop()
	require.Equal(t, 1, agg.TotalCount())

	count.Store(3)
	bus.Emit("2")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, agg.TotalCount(), "event for another farm must be ignored")

	bus.Emit("1")
	assert.Eventually(t, func() bool { return agg.TotalCount() == 3 }, time.Second, 5*time.Millisecond)
}

func TestAggregatorRespectsMaxParallel(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	var active, peak atomic.Int32
	var mu sync.Mutex
	for i, key := range []string{"a", "b", "c", "d"} {
		reg.Register(&fakeProvider{
			key:      key,
			priority: i,
			summary: func(context.Context, string) (Summary, error) {
				n := active.Add(1)
				mu.Lock()
				if n > peak.Load() {
					peak.Store(n)
				}
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				active.Add(-1)
				return Summary{Count: 1}, nil
			},
		})
	}

	agg := newTestAggregator(reg, NewBus(), "1", WithMaxParallel(2))
	agg.Start(context.Background())
	defer agg.Stop()

	assert.Equal(t, 4, agg.TotalCount())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestAggregatorOnRefreshFiresOnCommit(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	reg.Register(countProvider("health", 100, 1))

	var updates []Update
	agg := newTestAggregator(reg, NewBus(), "1", WithOnRefresh(func(u Update) { updates = append(updates, u) }))
	agg.Start(context.Background())
	defer agg.Stop()

	require.Len(t, updates, 1)
	assert.Equal(t, "1", updates[0].FarmID)
	assert.Equal(t, uint64(1), updates[0].Cycle)
	assert.Equal(t, 1, totalOf(updates[0].States))
	assert.Equal(t, updates[0], agg.LastUpdate())

	agg.RefreshAlerts(context.Background())
	require.Len(t, updates, 2)
	assert.Equal(t, uint64(2), updates[1].Cycle)
}

func TestAggregatorOnRefreshFiresForBusRefresh(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	reg.Register(countProvider("health", 100, 2))

	got := make(chan Update, 4)
	bus := NewBus()
	agg := newTestAggregator(reg, bus, "1", WithOnRefresh(func(u Update) { got <- u }))
	agg.Start(context.Background())
	defer agg.Stop()
	<-got

	bus.Emit("1")

	select {
	case u := <-got:
		assert.Equal(t, "1", u.FarmID)
		assert.Equal(t, uint64(2), u.Cycle)
	case <-time.After(2 * time.Second):
		t.Fatal("bus invalidation did not report a refresh")
	}
}

func TestAggregatorOnRefreshSkipsStaleCycles(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	reg.Register(countProvider("health", 100, 1))

	var updates []Update
	agg := newTestAggregator(reg, NewBus(), "1", WithOnRefresh(func(u Update) { updates = append(updates, u) }))
	agg.RefreshAlerts(context.Background())

	assert.Empty(t, updates, "nothing commits before Start")
	assert.Equal(t, uint64(0), agg.LastUpdate().Cycle)
}

func TestAggregatorProviderLookup(t *testing.T) {
	reg := NewRegistry(zap.NewNop().Sugar())
	reg.Register(countProvider("health", 100, 1))
	agg := newTestAggregator(reg, NewBus(), "1")

	p, ok := agg.Provider("health")
	require.True(t, ok)
	assert.Equal(t, "health", p.Key())
}
