package alerts

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Aggregator keeps the merged alert state for one farm at a time.
//
// A refresh cycle commits its results only while the aggregator is started
// and still bound to the farm the cycle was started for. Stale cycles run to
// completion and are discarded.
type Aggregator struct {
	registry    *Registry
	bus         *Bus
	logger      *zap.SugaredLogger
	maxParallel int

	mu          sync.Mutex
	ctx         context.Context
	farmID      string
	states      []ProviderState
	started     bool
	inflight    int
	unsubscribe func()
	cycle       uint64
	onRefresh   func(Update)
}

// Update is the state committed by one refresh cycle. Cycle grows with
// every commit and is shared across farms.
type Update struct {
	FarmID string
	Cycle  uint64
	States []ProviderState
}

type AggregatorOption func(*Aggregator)

// WithMaxParallel bounds the number of concurrent provider fetches.
// Zero or negative means unbounded.
func WithMaxParallel(n int) AggregatorOption {
	return func(a *Aggregator) { a.maxParallel = n }
}

func WithLogger(l *zap.SugaredLogger) AggregatorOption {
	return func(a *Aggregator) { a.logger = l }
}

// WithOnRefresh registers a hook called after every committed cycle,
// including cycles started by the bus. It runs without the aggregator lock
// held, possibly from a fetch goroutine.
func WithOnRefresh(fn func(Update)) AggregatorOption {
	return func(a *Aggregator) { a.onRefresh = fn }
}

func NewAggregator(registry *Registry, bus *Bus, farmID string, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		registry: registry,
		bus:      bus,
		logger:   zap.NewNop().Sugar(),
		farmID:   farmID,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start subscribes to the bus and runs the first refresh cycle on the
// calling goroutine. ctx bounds refreshes triggered by bus events.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return
	}
	a.started = true
	a.ctx = ctx
	a.mu.Unlock()

	unsubscribe := a.bus.Subscribe(a.onInvalidate)

	a.mu.Lock()
	a.unsubscribe = unsubscribe
	a.mu.Unlock()

	a.RefreshAlerts(ctx)
}

// Stop unsubscribes from the bus. In-flight cycles finish but their results
// are dropped.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	a.started = false
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (a *Aggregator) onInvalidate(farmID string) {
	a.mu.Lock()
	match := a.started && farmID == a.farmID
	ctx := a.ctx
	a.mu.Unlock()

	if !match {
		return
	}
	a.logger.Debugw("alerts invalidated", "farm", farmID)
	go a.RefreshAlerts(ctx)
}

// SetFarm rebinds the aggregator and refreshes when the farm changed.
func (a *Aggregator) SetFarm(ctx context.Context, farmID string) {
	if a.Rebind(farmID) {
		a.RefreshAlerts(ctx)
	}
}

// Rebind points the aggregator at farmID without fetching and reports
// whether the farm changed. Previous summaries are not carried over, and
// cycles still running for the old farm are discarded.
func (a *Aggregator) Rebind(farmID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.farmID == farmID {
		return false
	}
	a.farmID = farmID
	a.states = nil
	return true
}

// RefreshAlerts runs one refresh cycle and returns once every provider has
// settled. It does nothing before Start or after Stop.
func (a *Aggregator) RefreshAlerts(ctx context.Context) {
	providers := a.registry.Providers()

	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	farmID := a.farmID
	a.inflight++
	a.states = markLoading(a.states, providers)
	a.mu.Unlock()

	results := settleAll(ctx, farmID, providers, a.maxParallel, a.logger)

	a.mu.Lock()
	a.inflight--
	commit := a.started && a.farmID == farmID
	var upd Update
	if commit {
		a.states = results
		a.cycle++
		upd = Update{FarmID: farmID, Cycle: a.cycle, States: slices.Clone(results)}
	}
	onRefresh := a.onRefresh
	a.mu.Unlock()

	if !commit {
		a.logger.Debugw("discarding stale alert refresh", "farm", farmID)
		return
	}

	a.logger.Debugw("alerts refreshed",
		"farm", farmID,
		"total", totalOf(results),
		"providers", len(results),
	)
	if onRefresh != nil {
		onRefresh(upd)
	}
}

// markLoading flags every provider as loading while keeping the last known
// summary so the badge does not drop to zero during a refetch.
func markLoading(prev []ProviderState, providers []Provider) []ProviderState {
	next := make([]ProviderState, len(providers))
	for i, p := range providers {
		next[i] = ProviderState{ProviderKey: p.Key(), Loading: true}
		for _, s := range prev {
			if s.ProviderKey == p.Key() {
				next[i].Summary = s.Summary
				next[i].Error = s.Error
				break
			}
		}
	}
	return next
}

// LastUpdate returns the bound farm with the last committed cycle and the
// current states.
func (a *Aggregator) LastUpdate() Update {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Update{FarmID: a.farmID, Cycle: a.cycle, States: slices.Clone(a.states)}
}

// TotalCount sums the current summaries, including last-known counts of
// providers still loading.
func (a *Aggregator) TotalCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return totalOf(a.states)
}

// ProviderStates returns a copy of the states in registry order.
func (a *Aggregator) ProviderStates() []ProviderState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.states)
}

func (a *Aggregator) IsLoading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inflight > 0
}

func (a *Aggregator) FarmID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.farmID
}

func (a *Aggregator) Provider(key string) (Provider, bool) {
	return a.registry.Provider(key)
}
