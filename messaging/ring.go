// Package messaging is the only channel through which the control thread
// changes engine state: two single-producer/single-consumer rings plus a
// structure mutex with a pause protocol for edits that must not race the
// audio thread.
package messaging

import "sync/atomic"

// Ring is a fixed-capacity single-producer/single-consumer queue. Push and Pop
// never allocate or block.
type Ring[T any] struct {
	buf  []T
	mask uint64
	head atomic.Uint64 // next slot to read, owned by the consumer
	tail atomic.Uint64 // next slot to write, owned by the producer
}

// NewRing creates a ring holding at least capacity items (rounded up to a
// power of two).
func NewRing[T any](capacity int) *Ring[T] {
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &Ring[T]{buf: make([]T, n), mask: uint64(n - 1)}
}

// Push appends v. It returns false when the ring is full.
func (r *Ring[T]) Push(v T) bool {
	t := r.tail.Load()
	if t-r.head.Load() == uint64(len(r.buf)) {
		return false
	}
	r.buf[t&r.mask] = v
	r.tail.Store(t + 1)
	return true
}

// Pop removes the oldest item. It returns false when the ring is empty.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	h := r.head.Load()
	if h == r.tail.Load() {
		return zero, false
	}
	i := h & r.mask
	v := r.buf[i]
	r.buf[i] = zero
	r.head.Store(h + 1)
	return v, true
}

// Len returns the number of queued items.
func (r *Ring[T]) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }
