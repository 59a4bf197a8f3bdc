// Package snapshot hands whole values from producer goroutines to a single
// real-time consumer without the consumer ever taking a lock.
//
// Publish copies into one of a small set of retained slots and then makes
// that slot current with an atomic store. The consumer pins the slot it is
// reading with a per-slot reader count and re-checks that it is still
// current, so a producer never rewrites a slot that is being read. When
// every retained slot is pinned or current, Publish allocates a fresh slot
// instead of waiting; the consumer never observes a torn value.
package snapshot

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrBufferCount is returned when fewer than two slots are requested.
var ErrBufferCount = errors.New("snapshot: buffer count must be at least 2")

type slot[T any] struct {
	value   T
	seq     uint64
	readers atomic.Int32
}

// Channel publishes values of T to one consumer.
// Values are copied shallowly; anything they reference must not be mutated
// after publishing.
type Channel[T any] struct {
	mu    sync.Mutex
	slots []*slot[T]
	next  int
	seq   uint64
	rd    *Reader[T]

	current   atomic.Pointer[slot[T]]
	publishes atomic.Uint64
	overflows atomic.Uint64
}

// New creates a channel retaining bufferCount slots.
func New[T any](bufferCount int) (*Channel[T], error) {
	if bufferCount < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrBufferCount, bufferCount)
	}
	c := &Channel[T]{slots: make([]*slot[T], bufferCount)}
	for i := range c.slots {
		c.slots[i] = &slot[T]{}
	}
	return c, nil
}

// Publish copies v into a free slot and makes it the latest value.
// Safe for concurrent producers; never blocks the consumer.
func (c *Channel[T]) Publish(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	n := len(c.slots)
	var s *slot[T]
	for i := 0; i < n; i++ {
		idx := (c.next + i) % n
		cand := c.slots[idx]
		if cand != cur && cand.readers.Load() == 0 {
			s = cand
			c.next = (idx + 1) % n
			break
		}
	}
	if s == nil {
		// Every retained slot is current or pinned. The displaced slot stays
		// alive for whoever still references it.
		s = &slot[T]{}
		c.slots[c.next] = s
		c.next = (c.next + 1) % n
		c.overflows.Add(1)
	}

	c.seq++
	s.value = v
	s.seq = c.seq
	c.current.Store(s)
	c.publishes.Add(1)
}

// Reader returns the channel's consumer handle. Every call returns the same
// handle; only one goroutine may consume.
func (c *Channel[T]) Reader() *Reader[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rd == nil {
		c.rd = &Reader[T]{ch: c}
	}
	return c.rd
}

// Stats reports publish counters.
type Stats struct {
	Publishes uint64
	Overflows uint64 // Publishes that had to allocate a new slot
}

// Stats returns the channel counters.
func (c *Channel[T]) Stats() Stats {
	return Stats{
		Publishes: c.publishes.Load(),
		Overflows: c.overflows.Load(),
	}
}

// Reader is the single consumer side of a Channel. Its methods never lock.
type Reader[T any] struct {
	ch   *Channel[T]
	held *slot[T]
}

// HasUpdate reports whether a value newer than the one held is available.
func (r *Reader[T]) HasUpdate() bool {
	s := r.ch.current.Load()
	return s != nil && s != r.held
}

// TryConsume returns the latest published value. The pointer stays valid
// and unchanged until the next TryConsume or Release. The second result is
// false only if nothing has been published yet.
func (r *Reader[T]) TryConsume() (*T, bool) {
	for {
		s := r.ch.current.Load()
		if s == nil {
			return nil, false
		}
		if s == r.held {
			return &s.value, true
		}
		s.readers.Add(1)
		if r.ch.current.Load() != s {
			// Superseded between load and pin; the slot may be rewritten.
			s.readers.Add(-1)
			continue
		}
		r.release()
		r.held = s
		return &s.value, true
	}
}

// Seq returns the publish sequence number of the held value (0 if none).
func (r *Reader[T]) Seq() uint64 {
	if r.held == nil {
		return 0
	}
	return r.held.seq
}

// Release unpins the held value.
func (r *Reader[T]) Release() {
	r.release()
}

func (r *Reader[T]) release() {
	if r.held != nil {
		r.held.readers.Add(-1)
		r.held = nil
	}
}
