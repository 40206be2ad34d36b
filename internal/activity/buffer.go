package activity

import "sync"

// RingBuffer is a fixed-capacity, thread-safe ring buffer of entries. When
// full, the oldest entry is evicted.
type RingBuffer struct {
	mu    sync.RWMutex
	items []Entry
	cap   int
	head  int // index of the oldest element
	count int
}

// NewRingBuffer creates a buffer holding at least one entry.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		items: make([]Entry, capacity),
		cap:   capacity,
	}
}

func (rb *RingBuffer) Add(e Entry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count == rb.cap {
		rb.items[rb.head] = e
		rb.head = (rb.head + 1) % rb.cap
		return
	}
	rb.items[(rb.head+rb.count)%rb.cap] = e
	rb.count++
}

// ListAll returns all entries oldest first.
func (rb *RingBuffer) ListAll() []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.listLocked()
}

// Recent returns up to n entries, newest first.
func (rb *RingBuffer) Recent(n int) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n > rb.count {
		n = rb.count
	}
	if n <= 0 {
		return nil
	}
	result := make([]Entry, n)
	for i := 0; i < n; i++ {
		result[i] = rb.items[(rb.head+rb.count-1-i)%rb.cap]
	}
	return result
}

func (rb *RingBuffer) ListByFarm(farmID string) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var result []Entry
	for _, e := range rb.listLocked() {
		if e.FarmID == farmID {
			result = append(result, e)
		}
	}
	return result
}

func (rb *RingBuffer) ListByKind(kind Kind) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var result []Entry
	for _, e := range rb.listLocked() {
		if e.Kind == kind {
			result = append(result, e)
		}
	}
	return result
}

func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

func (rb *RingBuffer) Cap() int {
	return rb.cap
}

// listLocked requires at least a read lock.
func (rb *RingBuffer) listLocked() []Entry {
	if rb.count == 0 {
		return nil
	}
	result := make([]Entry, rb.count)
	for i := 0; i < rb.count; i++ {
		result[i] = rb.items[(rb.head+i)%rb.cap]
	}
	return result
}
