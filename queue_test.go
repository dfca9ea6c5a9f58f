// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package faaq_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/quince-pie/faaq"
)

// =============================================================================
// Basic FIFO behaviour
// =============================================================================

// TestFIFOSingleThreaded covers the round-trip property: items dequeue in
// the same order they were enqueued when a single goroutine drives both
// ends.
func TestFIFOSingleThreaded(t *testing.T) {
	q, err := faaq.New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer q.Close()

	const n = 50
	values := make([]int, n)
	for i := range values {
		values[i] = i + 1
		q.Enqueue(unsafe.Pointer(&values[i]), 0)
	}

	for i := range values {
		got := q.Dequeue(0)
		if got == nil {
			t.Fatalf("Dequeue(%d): got nil, want item", i)
		}
		if v := *(*int)(got); v != values[i] {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, v, values[i])
		}
	}

	if got := q.Dequeue(0); got != nil {
		t.Fatalf("Dequeue on empty: got %v, want nil", got)
	}
}

// TestBoundaryCrossesNode pushes enough items single-threaded to force at
// least one node-full transition, and checks FIFO order is preserved
// across the boundary.
func TestBoundaryCrossesNode(t *testing.T) {
	q, err := faaq.New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer q.Close()

	const n = 1024*2 + 17 // spans three nodes
	values := make([]int, n)
	for i := range values {
		values[i] = i
		q.Enqueue(unsafe.Pointer(&values[i]), 0)
	}

	for i := range values {
		got := q.Dequeue(0)
		if got == nil {
			t.Fatalf("Dequeue(%d): got nil", i)
		}
		if v := *(*int)(got); v != values[i] {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, v, values[i])
		}
	}
	if got := q.Dequeue(0); got != nil {
		t.Fatalf("Dequeue on drained queue: got %v, want nil", got)
	}
}

// TestDequeueEmptyReturnsNil covers the boundary behaviour that an empty
// queue reports emptiness as a nil return, not an error.
func TestDequeueEmptyReturnsNil(t *testing.T) {
	q, err := faaq.New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer q.Close()

	if got := q.Dequeue(0); got != nil {
		t.Fatalf("Dequeue on never-used queue: got %v, want nil", got)
	}
}

// =============================================================================
// Programming-error panics
// =============================================================================

func expectPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic, got none")
		}
	}()
	fn()
}

func TestEnqueuePanicsOnNilItem(t *testing.T) {
	q, err := faaq.New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer q.Close()

	expectPanic(t, func() { q.Enqueue(nil, 0) })
}

func TestEnqueuePanicsOnInvalidTid(t *testing.T) {
	q, err := faaq.New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer q.Close()

	v := 1
	expectPanic(t, func() { q.Enqueue(unsafe.Pointer(&v), 1) })
	expectPanic(t, func() { q.Enqueue(unsafe.Pointer(&v), -1) })
}

func TestDequeuePanicsOnInvalidTid(t *testing.T) {
	q, err := faaq.New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer q.Close()

	expectPanic(t, func() { q.Dequeue(1) })
}

func TestNewRejectsNonPositiveMaxThreads(t *testing.T) {
	if _, err := faaq.New(0); err == nil {
		t.Fatal("New(0): got nil error, want non-nil")
	}
	if _, err := faaq.New(-1); err == nil {
		t.Fatal("New(-1): got nil error, want non-nil")
	}
}

// =============================================================================
// Concurrent correctness
// =============================================================================

// TestMPMCExactlyOnce is the multi-producer/multi-consumer scenario: every
// item enqueued by any producer is dequeued exactly once across all
// consumers.
func TestMPMCExactlyOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skip: stress test")
	}
	if faaq.RaceEnabled {
		t.Skip("skip: lock-free algorithm uses cross-variable memory ordering")
	}

	const (
		numProducers = 8
		numConsumers = 8
		itemsPerProd = 20000
		totalItems   = numProducers * itemsPerProd
	)

	q, err := faaq.New(numProducers + numConsumers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer q.Close()

	values := make([]int, totalItems)
	for i := range values {
		values[i] = i
	}

	seen := make([]atomic.Int32, totalItems)
	var consumedCount atomic.Int64

	var prodWg sync.WaitGroup
	for p := 0; p < numProducers; p++ {
		prodWg.Add(1)
		go func(tid, start, end int) {
			defer prodWg.Done()
			for idx := start; idx < end; idx++ {
				q.Enqueue(unsafe.Pointer(&values[idx]), tid)
			}
		}(p, p*itemsPerProd, (p+1)*itemsPerProd)
	}

	var consWg sync.WaitGroup
	for c := 0; c < numConsumers; c++ {
		consWg.Add(1)
		go func(tid int) {
			defer consWg.Done()
			for consumedCount.Load() < int64(totalItems) {
				item := q.Dequeue(tid)
				if item == nil {
					continue
				}
				idx := *(*int)(item)
				if seen[idx].Add(1) != 1 {
					t.Errorf("item %d dequeued more than once", idx)
				}
				consumedCount.Add(1)
			}
		}(numProducers + c)
	}

	prodWg.Wait()
	consWg.Wait()

	for i := range seen {
		if got := seen[i].Load(); got != 1 {
			t.Fatalf("item %d: seen %d times, want 1", i, got)
		}
	}
}

// TestCloseAfterPartialDrain covers destroying a queue that still holds
// items: Close must not deadlock or panic, regardless of how many items
// are left.
func TestCloseAfterPartialDrain(t *testing.T) {
	q, err := faaq.New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	values := make([]int, 10)
	for i := range values {
		values[i] = i
		q.Enqueue(unsafe.Pointer(&values[i]), 0)
	}

	// Drain only half before destroying.
	for i := 0; i < 5; i++ {
		if q.Dequeue(0) == nil {
			t.Fatalf("Dequeue(%d): got nil", i)
		}
	}

	q.Close()
}
