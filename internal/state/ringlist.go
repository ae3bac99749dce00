package state

// RingList is a bounded, ordered list with front insertion and FIFO
// eviction from the tail. An optional key function enables dedup: pushing
// an item whose key is already present removes the old occurrence before
// inserting at the front, so a key never appears twice.
//
// RingList is not locked; the owning partition serializes access.
type RingList[T any] struct {
	cap   int
	key   func(T) string
	items []T
}

// NewRingList creates a bounded list with the given cap.
func NewRingList[T any](cap int) *RingList[T] {
	if cap < 1 {
		cap = 1
	}
	return &RingList[T]{cap: cap}
}

// NewKeyedRingList creates a bounded list that dedups by key.
func NewKeyedRingList[T any](cap int, key func(T) string) *RingList[T] {
	l := NewRingList[T](cap)
	l.key = key
	return l
}

// PushFront inserts at the front, evicting from the tail past the cap.
// Returns false if an existing occurrence of the same key was replaced.
func (l *RingList[T]) PushFront(item T) bool {
	fresh := true
	if l.key != nil {
		k := l.key(item)
		for i, existing := range l.items {
			if l.key(existing) == k {
				l.items = append(l.items[:i], l.items[i+1:]...)
				fresh = false
				break
			}
		}
	}

	l.items = append([]T{item}, l.items...)
	if len(l.items) > l.cap {
		l.items = l.items[:l.cap]
	}
	return fresh
}

// Replace resets the list to the given items (front first), enforcing the
// cap and dedup rules.
func (l *RingList[T]) Replace(items []T) {
	l.items = l.items[:0]
	// Push in reverse so items[0] ends up at the front.
	for i := len(items) - 1; i >= 0; i-- {
		l.PushFront(items[i])
	}
}

// Update applies fn to the item with the given key. Requires a key
// function; returns false if the key is absent.
func (l *RingList[T]) Update(key string, fn func(*T)) bool {
	if l.key == nil {
		return false
	}
	for i := range l.items {
		if l.key(l.items[i]) == key {
			fn(&l.items[i])
			return true
		}
	}
	return false
}

// Range applies fn to every item, front to tail.
func (l *RingList[T]) Range(fn func(*T)) {
	for i := range l.items {
		fn(&l.items[i])
	}
}

// Items returns a copy, front first.
func (l *RingList[T]) Items() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the current length.
func (l *RingList[T]) Len() int {
	return len(l.items)
}

// Cap returns the configured cap.
func (l *RingList[T]) Cap() int {
	return l.cap
}
