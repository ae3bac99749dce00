package router

import "sync"

// Queue is an unbounded-ish FIFO between event producers and the single
// drain goroutine. It grows (doubling) when it reaches 70% of capacity so
// a burst of push messages is absorbed rather than dropped.
type Queue[T any] struct {
	mu   sync.Mutex
	cond *sync.Cond

	ring     []T
	readPos  int
	writePos int
	size     int
	closed   bool

	pushed int64
	popped int64
	grows  int
}

// QueueStats describes queue occupancy and lifetime counters.
type QueueStats struct {
	Len      int
	Capacity int
	Pushed   int64
	Popped   int64
	Grows    int
}

// NewQueue creates a queue with the given initial capacity.
func NewQueue[T any](initialCapacity int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	q := &Queue[T]{ring: make([]T, initialCapacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues an item, growing if needed. Returns false when closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	threshold := (len(q.ring) * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.size+1 >= threshold {
		q.grow()
	}

	q.ring[q.writePos] = item
	q.writePos = (q.writePos + 1) % len(q.ring)
	q.size++
	q.pushed++

	q.cond.Signal()
	return true
}

// Receive dequeues, blocking until an item arrives or the queue closes.
// Returns false only when the queue is closed and drained.
func (q *Queue[T]) Receive() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.size == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

// TryReceive dequeues without blocking.
func (q *Queue[T]) TryReceive() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

func (q *Queue[T]) popLocked() T {
	item := q.ring[q.readPos]
	var zero T
	q.ring[q.readPos] = zero // release for GC
	q.readPos = (q.readPos + 1) % len(q.ring)
	q.size--
	q.popped++
	return item
}

// Close stops accepting pushes. Receivers drain the remainder, then get
// the closed signal. Idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the current occupancy.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Stats returns occupancy and lifetime counters.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Len:      q.size,
		Capacity: len(q.ring),
		Pushed:   q.pushed,
		Popped:   q.popped,
		Grows:    q.grows,
	}
}

// grow doubles capacity. Caller holds the lock.
func (q *Queue[T]) grow() {
	next := make([]T, len(q.ring)*2)
	if q.size > 0 {
		if q.readPos < q.writePos {
			copy(next, q.ring[q.readPos:q.writePos])
		} else {
			n := copy(next, q.ring[q.readPos:])
			copy(next[n:], q.ring[:q.writePos])
		}
	}
	q.ring = next
	q.readPos = 0
	q.writePos = q.size
	q.grows++
}
