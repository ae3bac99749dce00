package router

import (
	"sync"
	"testing"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int](4)

	for i := 1; i <= 5; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) = false", i)
		}
	}

	for want := 1; want <= 5; want++ {
		got, ok := q.TryReceive()
		if !ok || got != want {
			t.Errorf("TryReceive = %d/%v, want %d", got, ok, want)
		}
	}

	if _, ok := q.TryReceive(); ok {
		t.Error("TryReceive on empty queue = true")
	}
}

func TestQueue_GrowsPastInitialCapacity(t *testing.T) {
	q := NewQueue[int](2)

	for i := 0; i < 100; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) = false", i)
		}
	}

	stats := q.Stats()
	if stats.Len != 100 {
		t.Errorf("Len = %d, want 100", stats.Len)
	}
	if stats.Grows == 0 {
		t.Error("queue never grew")
	}

	// Order survives growth.
	for want := 0; want < 100; want++ {
		got, ok := q.TryReceive()
		if !ok || got != want {
			t.Fatalf("TryReceive = %d/%v, want %d", got, ok, want)
		}
	}
}

func TestQueue_CloseDrains(t *testing.T) {
	q := NewQueue[int](4)
	q.Push(1)
	q.Push(2)
	q.Close()

	if q.Push(3) {
		t.Error("Push after Close = true")
	}

	// Remaining items drain, then Receive reports closed.
	if got, ok := q.Receive(); !ok || got != 1 {
		t.Errorf("Receive = %d/%v, want 1/true", got, ok)
	}
	if got, ok := q.Receive(); !ok || got != 2 {
		t.Errorf("Receive = %d/%v, want 2/true", got, ok)
	}
	if _, ok := q.Receive(); ok {
		t.Error("Receive after drain = true, want closed signal")
	}
}

func TestQueue_CloseUnblocksReceiver(t *testing.T) {
	q := NewQueue[int](4)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, ok := q.Receive(); ok {
			t.Error("blocked Receive returned an item from empty closed queue")
		}
	}()

	q.Close()
	wg.Wait()
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue[int](8)

	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		if _, ok := q.TryReceive(); !ok {
			break
		}
		count++
	}
	if count != producers*perProducer {
		t.Errorf("drained %d items, want %d", count, producers*perProducer)
	}
}
