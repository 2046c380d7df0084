package sink

import (
	"sync"
	"testing"
	"time"
)

func TestBuffer_PushPop(t *testing.T) {
	b := NewBuffer[int](8)

	for i := 1; i <= 5; i++ {
		if !b.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}
	if got := b.Len(); got != 5 {
		t.Fatalf("Len() = %d, want 5", got)
	}

	for i := 1; i <= 5; i++ {
		v, ok := b.TryPop()
		if !ok {
			t.Fatalf("TryPop() returned false at item %d", i)
		}
		if v != i {
			t.Errorf("TryPop() = %d, want %d (FIFO order)", v, i)
		}
	}

	if _, ok := b.TryPop(); ok {
		t.Error("TryPop() on empty buffer returned true")
	}
}

func TestBuffer_GrowsUnderLoad(t *testing.T) {
	b := NewBuffer[int](4)

	const n = 1000
	for i := 0; i < n; i++ {
		if !b.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}

	stats := b.Stats()
	if stats.Count != n {
		t.Errorf("Count = %d, want %d", stats.Count, n)
	}
	if stats.Resizes == 0 {
		t.Error("expected buffer to resize under load")
	}

	// Order must survive the resizes.
	for i := 0; i < n; i++ {
		v, ok := b.TryPop()
		if !ok || v != i {
			t.Fatalf("TryPop() = %d, %v; want %d, true", v, ok, i)
		}
	}
}

func TestBuffer_DrainMax(t *testing.T) {
	b := NewBuffer[int](16)
	for i := 0; i < 10; i++ {
		b.Push(i)
	}

	first := b.Drain(3)
	if len(first) != 3 {
		t.Fatalf("Drain(3) returned %d items", len(first))
	}
	if first[0] != 0 || first[2] != 2 {
		t.Errorf("Drain(3) = %v, want head of the queue", first)
	}

	rest := b.Drain(0)
	if len(rest) != 7 {
		t.Fatalf("Drain(0) returned %d items, want 7", len(rest))
	}
	if rest[0] != 3 {
		t.Errorf("Drain(0) first item = %d, want 3", rest[0])
	}
}

func TestBuffer_CloseRejectsPushAndWakesPop(t *testing.T) {
	b := NewBuffer[int](4)
	b.Push(1)

	done := make(chan struct{})
	var popped []int
	go func() {
		defer close(done)
		for {
			v, ok := b.Pop()
			if !ok {
				return
			}
			popped = append(popped, v)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Close")
	}

	if len(popped) != 1 || popped[0] != 1 {
		t.Errorf("popped = %v, want [1]", popped)
	}
	if b.Push(2) {
		t.Error("Push after Close returned true")
	}
}

func TestBuffer_ConcurrentProducers(t *testing.T) {
	b := NewBuffer[int](4)

	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				b.Push(i)
			}
		}()
	}
	wg.Wait()

	if got := b.Len(); got != producers*perProducer {
		t.Errorf("Len() = %d, want %d", got, producers*perProducer)
	}
	stats := b.Stats()
	if stats.TotalIn != int64(producers*perProducer) {
		t.Errorf("TotalIn = %d, want %d", stats.TotalIn, producers*perProducer)
	}
}
