package memory

import "github.com/cockroachdb/errors"

// Links are the intrusive neighbour handles an element carries so it can sit
// in a Queue without a separate node allocation.
type Links struct {
	Next Handle
	Prev Handle
}

// Linked is implemented by pointer types whose element embeds Links.
type Linked interface {
	QueueLinks() *Links
}

// Queue is a FIFO of pool handles threaded through the elements' own Links.
// It never allocates. An element may be in at most one queue at a time.
type Queue[T any, P interface {
	*T
	Linked
}] struct {
	pool *Pool[T]
	head Handle
	tail Handle
	size int
}

// Init binds the queue to the pool its handles come from and empties it.
func (q *Queue[T, P]) Init(pool *Pool[T]) {
	q.pool = pool
	q.head, q.tail, q.size = Nil, Nil, 0
}

func (q *Queue[T, P]) links(h Handle) *Links {
	return P(q.pool.Get(h)).QueueLinks()
}

// PushBack appends h at the tail.
func (q *Queue[T, P]) PushBack(h Handle) {
	l := q.links(h)
	l.Prev, l.Next = q.tail, Nil
	if q.tail == Nil {
		q.head = h
	} else {
		q.links(q.tail).Next = h
	}
	q.tail = h
	q.size++
}

// PopFront unlinks and returns the head handle.
func (q *Queue[T, P]) PopFront() (Handle, bool) {
	h := q.head
	if h == Nil {
		return Nil, false
	}
	q.Remove(h)
	return h, true
}

// Remove unlinks h, which must currently be in q.
func (q *Queue[T, P]) Remove(h Handle) {
	if q.size == 0 {
		panic(errors.AssertionFailedf("memory: remove %s from empty queue", h))
	}
	l := q.links(h)
	if l.Prev == Nil {
		if q.head != h {
			panic(errors.AssertionFailedf("memory: %s is not queued here", h))
		}
		q.head = l.Next
	} else {
		q.links(l.Prev).Next = l.Next
	}
	if l.Next == Nil {
		q.tail = l.Prev
	} else {
		q.links(l.Next).Prev = l.Prev
	}
	l.Next, l.Prev = Nil, Nil
	q.size--
}

// Front returns the head handle, Nil when empty.
func (q *Queue[T, P]) Front() Handle { return q.head }

func (q *Queue[T, P]) Len() int    { return q.size }
func (q *Queue[T, P]) Empty() bool { return q.size == 0 }

// Each visits handles head to tail until fn returns false. fn must not
// modify the queue.
func (q *Queue[T, P]) Each(fn func(h Handle, v *T) bool) {
	for h := q.head; h != Nil; {
		v := q.pool.Get(h)
		next := P(v).QueueLinks().Next
		if !fn(h, v) {
			return
		}
		h = next
	}
}
