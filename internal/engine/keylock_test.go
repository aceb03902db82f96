package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyLocks_SerializesSameKey(t *testing.T) {
	k := newKeyLocks()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("P")
			defer unlock()
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()
	if got := maxInside.Load(); got != 1 {
		t.Errorf("max holders of one key = %d, want 1", got)
	}
	if got := k.size(); got != 0 {
		t.Errorf("live entries after release = %d, want 0", got)
	}
}

func TestKeyLocks_OppositeOrderDoesNotDeadlock(t *testing.T) {
	k := newKeyLocks()
	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() { defer wg.Done(); k.Lock("A", "B")() }()
			go func() { defer wg.Done(); k.Lock("B", "A", "B")() }()
		}
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lockers did not finish")
	}
}

func TestKeyLocks_DisjointKeysRunConcurrently(t *testing.T) {
	k := newKeyLocks()
	unlockA := k.Lock("A")
	acquired := make(chan struct{})
	go func() {
		k.Lock("B")()
		close(acquired)
	}()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock on B blocked behind A")
	}
	unlockA()
}

func TestWorkerPool(t *testing.T) {
	var processed atomic.Int32
	p := newWorkerPool[int](context.Background(), 4, 16, func(_ context.Context, _ int) {
		processed.Add(1)
	})
	for i := 0; i < 10; i++ {
		if !p.Submit(i) {
			t.Fatalf("Submit(%d) rejected", i)
		}
	}
	p.Drain()
	if got := processed.Load(); got != 10 {
		t.Errorf("processed = %d, want 10", got)
	}
	if p.Submit(99) {
		t.Error("Submit after Drain accepted a job")
	}
	p.Drain() // idempotent
}

func TestWorkerPool_FullQueue(t *testing.T) {
	p := newWorkerPool[int](context.Background(), 0, 1, func(context.Context, int) {})
	if !p.Submit(1) {
		t.Fatal("first Submit rejected")
	}
	if p.Submit(2) {
		t.Error("Submit on a full queue accepted a job")
	}
	if p.QueueLen() != 1 || p.QueueCap() != 1 {
		t.Errorf("queue %d/%d, want 1/1", p.QueueLen(), p.QueueCap())
	}
}
