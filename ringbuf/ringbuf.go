// Package ringbuf holds the per-channel rolling sample store: a
// fixed-capacity FIFO where the oldest samples are evicted as new ones
// arrive. One ingest goroutine writes a buffer; view ticks read consistent
// snapshots.
package ringbuf

import (
	"sync"

	"github.com/cardialab/ekgraph/schema"
	"github.com/gammazero/deque"
)

type Buffer struct {
	mu       sync.Mutex
	values   *deque.Deque[schema.Sample]
	capacity int
}

func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &Buffer{
		values:   deque.New[schema.Sample](0, 64),
		capacity: capacity,
	}
}

// Push appends in arrival order, evicting from the front so the length
// never exceeds capacity.
func (b *Buffer) Push(s schema.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.values.Len() >= b.capacity {
		b.values.PopFront()
	}
	b.values.PushBack(s)
}

func (b *Buffer) PushAll(samples []schema.Sample) {
	for _, s := range samples {
		b.Push(s)
	}
}

// Snapshot returns an order-preserving copy. The copy is taken under the
// lock, so a concurrent Push can never be observed half-applied.
func (b *Buffer) Snapshot() []schema.Sample {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]schema.Sample, b.values.Len())
	for i := 0; i < b.values.Len(); i++ {
		out[i] = b.values.At(i)
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.values.Len()
}

func (b *Buffer) Cap() int {
	return b.capacity
}

// Clear drops everything, used when the viewed channel changes so samples
// from different channels are never mixed in one buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values.Clear()
}
