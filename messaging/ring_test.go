package messaging

import (
	"sync"
	"testing"
)

func TestRingFIFOAndCapacity(t *testing.T) {
	r := NewRing[int](5)
	if r.Cap() != 8 {
		t.Fatalf("expected capacity rounded to 8, got=%d", r.Cap())
	}
	for i := 0; i < 8; i++ {
		if !r.Push(i) {
			t.Fatalf("push %d failed before full", i)
		}
	}
	if r.Push(99) {
		t.Fatalf("expected push into full ring to fail")
	}
	for i := 0; i < 8; i++ {
		v, ok := r.Pop()
		if !ok || v != i {
			t.Fatalf("expected %d, got=%d ok=%v", i, v, ok)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Fatalf("expected empty ring")
	}
}

func TestRingConcurrentProducerConsumer(t *testing.T) {
	const n = 100000
	r := NewRing[int](64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if r.Push(i) {
				i++
			}
		}
	}()
	for want := 0; want < n; {
		v, ok := r.Pop()
		if !ok {
			continue
		}
		if v != want {
			t.Fatalf("out of order: want=%d got=%d", want, v)
		}
		want++
	}
	wg.Wait()
}
