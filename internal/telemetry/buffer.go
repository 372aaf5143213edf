package telemetry

import (
	"fmt"
	"sync"
)

// Buffer is a fixed-capacity FIFO history of records backed by a ring.
// Pushing into a full buffer evicts the oldest record. It is safe for
// concurrent use; readers always receive a copy.
type Buffer struct {
	mu    sync.RWMutex
	data  []Record
	head  int // next write position
	count int
}

// NewBuffer creates a buffer holding at most capacity records.
// Capacity must be at least 1.
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("buffer capacity must be at least 1, got %d", capacity)
	}
	return &Buffer{data: make([]Record, capacity)}, nil
}

// Push appends a record and reports whether the oldest record was evicted.
func (b *Buffer) Push(r Record) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.push(r)
}

// PushAll appends records in order under a single lock and returns how many
// records were evicted.
func (b *Buffer) PushAll(records []Record) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := 0
	for _, r := range records {
		if b.push(r) {
			evicted++
		}
	}
	return evicted
}

// push must be called with b.mu held.
func (b *Buffer) push(r Record) bool {
	size := len(b.data)
	b.data[b.head] = r
	b.head = (b.head + 1) % size
	if b.count < size {
		b.count++
		return false
	}
	return true
}

// Records returns all stored records oldest first.
func (b *Buffer) Records() []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last(b.count)
}

// Last returns up to n of the most recent records, oldest first.
func (b *Buffer) Last(n int) []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last(n)
}

// last must be called with b.mu held.
func (b *Buffer) last(n int) []Record {
	if n > b.count {
		n = b.count
	}
	out := make([]Record, n)
	if n <= 0 {
		return out
	}

	size := len(b.data)
	// head points at the next write slot, so the newest record is at head-1
	start := (b.head - n + size) % size
	for i := 0; i < n; i++ {
		out[i] = b.data[(start+i)%size]
	}
	return out
}

// Len returns the number of stored records.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Cap returns the configured capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}
