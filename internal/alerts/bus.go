package alerts

import (
	"slices"
	"sync"
)

// Listener receives the farm id passed to Emit. Filtering by farm is the
// listener's job.
type Listener func(farmID string)

type subscription struct {
	id uint64
	fn Listener
}

// Bus fans invalidation events out to every current subscriber.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that removes exactly this
// subscription. Calling the returned function more than once is a no-op.
func (b *Bus) Subscribe(fn Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
		})
	}
}

// Emit calls every listener subscribed at the time of the call, in
// subscription order, on the caller's goroutine. Nothing is buffered.
func (b *Bus) Emit(farmID string) {
	b.mu.Lock()
	snapshot := slices.Clone(b.subs)
	b.mu.Unlock()

	for _, s := range snapshot {
		s.fn(farmID)
	}
}

// Len reports the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
