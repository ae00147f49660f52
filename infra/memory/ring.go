package memory

import (
	"fmt"
	"sync/atomic"
)

// Ring is a lock-free single-producer single-consumer ring buffer. Exactly
// one goroutine may Enqueue and exactly one may Dequeue.
type Ring[T any] struct {
	head  atomic.Uint64 // next write, owned by the producer
	_pad1 [56]byte
	tail  atomic.Uint64 // next read, owned by the consumer
	_pad2 [56]byte
	buf   []T
	mask  uint64
}

// NewRing returns a ring holding size elements. size must be a power of two.
func NewRing[T any](size int) *Ring[T] {
	if size <= 0 || size&(size-1) != 0 {
		panic(fmt.Sprintf("memory: ring size %d must be a power of two", size))
	}
	return &Ring[T]{
		buf:  make([]T, size),
		mask: uint64(size - 1),
	}
}

// Enqueue stores v, reporting false when the ring is full.
func (r *Ring[T]) Enqueue(v T) bool {
	h := r.head.Load()
	if h-r.tail.Load() == uint64(len(r.buf)) {
		return false
	}
	r.buf[h&r.mask] = v
	r.head.Store(h + 1)
	return true
}

// Dequeue removes the oldest element, reporting false when the ring is empty.
func (r *Ring[T]) Dequeue() (T, bool) {
	var zero T
	t := r.tail.Load()
	if t == r.head.Load() {
		return zero, false
	}
	v := r.buf[t&r.mask]
	r.buf[t&r.mask] = zero
	r.tail.Store(t + 1)
	return v, true
}

// Len is a snapshot of the number of queued elements.
func (r *Ring[T]) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

func (r *Ring[T]) Cap() int { return len(r.buf) }
