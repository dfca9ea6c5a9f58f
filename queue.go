// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package faaq

import (
	"errors"
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/spin"

	"github.com/quince-pie/faaq/hazptr"
)

// Queue is an unbounded FIFO built from a linked list of fixed-size
// slot-array nodes. Producers and consumers claim slots with a single
// fetch-and-add on a node's index, falling back to a node-full or
// node-drained slow path that advances the list. A Queue must be created
// with New and, once no goroutine holds a reference to it, released with
// Close.
//
// Every operation takes a tid: the caller-assigned index, in
// [0, maxThreads), of the calling goroutine's private hazard holder. A
// goroutine must not call Enqueue or Dequeue concurrently with itself
// under the same tid, and two goroutines must never share a tid
// concurrently — tid is an identity, not a scheduling hint.
type Queue struct {
	_     pad
	head  atomic.Pointer[node]
	_     pad
	tail  atomic.Pointer[node]
	_     pad
	taken unsafe.Pointer

	domain     *hazptr.Domain
	holders    []*hazptr.Holder
	maxThreads int
}

// pad separates the queue's two hot pointers onto distinct cache lines.
type pad [64]byte

// ErrInvalidMaxThreads is returned by New when maxThreads is not positive.
var ErrInvalidMaxThreads = errors.New("faaq: max_threads must be greater than zero")

// New returns an empty Queue sized for up to maxThreads concurrent
// callers, each identified by a distinct tid in [0, maxThreads) on every
// subsequent call.
func New(maxThreads int) (*Queue, error) {
	if maxThreads <= 0 {
		return nil, ErrInvalidMaxThreads
	}

	q := &Queue{
		taken:      unsafe.Pointer(new(byte)),
		domain:     hazptr.NewDomain(hazptr.DefaultShards),
		holders:    make([]*hazptr.Holder, maxThreads),
		maxThreads: maxThreads,
	}

	sentinel := newNode()
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	for i := range q.holders {
		q.holders[i] = hazptr.NewHolder(q.domain)
	}

	return q, nil
}

func (q *Queue) checkTid(tid int) {
	if tid < 0 || tid >= q.maxThreads {
		panic("faaq: tid out of range")
	}
}

// Enqueue adds item to the tail of the queue. item must be non-nil and
// must not already be the queue's internal taken sentinel — passing
// either panics, since both are programmer errors rather than states the
// queue can meaningfully report.
func (q *Queue) Enqueue(item unsafe.Pointer, tid int) {
	q.checkTid(tid)
	if item == nil {
		panic("faaq: item must not be nil")
	}
	if item == q.taken {
		panic("faaq: item aliases the queue's internal sentinel")
	}

	h := q.holders[tid]
	var sw spin.Wait

	for {
		lt := hazptr.Protect(h, &q.tail)
		idx := lt.enqIdx.AddAcqRel(1) - 1

		if idx < slotCount {
			slot := &lt.items[idx]
			if atomic.CompareAndSwapPointer(slot, nil, item) {
				h.Reset(nil)
				return
			}
			// The slot was raced: a consumer already exchanged it to
			// the taken marker before this write arrived (the only
			// other party that can touch this index). Claim a fresh
			// index from the top rather than retrying this one.
			h.Reset(nil)
			sw.Once()
			continue
		}

		// Node is full. If tail has already moved on, just retry against
		// the new tail.
		if lt != q.tail.Load() {
			h.Reset(nil)
			sw.Once()
			continue
		}

		if next := lt.next.Load(); next != nil {
			// Someone already linked a successor; help advance tail and
			// retry.
			q.tail.CompareAndSwap(lt, next)
			h.Reset(nil)
			sw.Once()
			continue
		}

		successor := newNodeWithItem(item)
		if lt.next.CompareAndSwap(nil, successor) {
			q.tail.CompareAndSwap(lt, successor)
			h.Reset(nil)
			return
		}
		// Lost the race to link a successor; drop ours (the garbage
		// collector reclaims it) and retry.
		h.Reset(nil)
		sw.Once()
	}
}

// Dequeue removes and returns the item at the head of the queue, or nil
// if the queue was empty at the moment of the call.
func (q *Queue) Dequeue(tid int) unsafe.Pointer {
	q.checkTid(tid)

	h := q.holders[tid]
	var sw spin.Wait

	for {
		lh := hazptr.Protect(h, &q.head)

		deqIdx := lh.deqIdx.LoadAcquire()
		enqIdx := lh.enqIdx.LoadAcquire()
		next := lh.next.Load()

		if deqIdx >= enqIdx && next == nil {
			h.Reset(nil)
			return nil
		}

		idx := lh.deqIdx.AddAcqRel(1) - 1
		if idx < slotCount {
			slot := &lh.items[idx]
			item := atomic.SwapPointer(slot, q.taken)
			if item != nil {
				h.Reset(nil)
				return item
			}
			// A producer claimed this slot but hasn't published its item
			// yet; give it a moment and retry the same node.
			h.Reset(nil)
			sw.Once()
			continue
		}

		// Node is drained. If it has no successor, the queue is empty.
		next = lh.next.Load()
		if next == nil {
			h.Reset(nil)
			return nil
		}

		if q.head.CompareAndSwap(lh, next) {
			h.Reset(nil)
			q.domain.Retire(&lh.Object, nodeReclaim)
		} else {
			h.Reset(nil)
		}
		sw.Once()
	}
}

// Close drains any remaining items (discarding them — callers retain
// ownership of payload memory and must drain the queue themselves first
// if items still need to be processed), frees the final sentinel node
// directly, releases every holder's record, and forces a final
// reclamation pass over the queue's hazard-pointer domain.
//
// Close must be called at most once, after every other goroutine has
// stopped calling Enqueue or Dequeue on the queue.
func (q *Queue) Close() {
	for q.Dequeue(0) != nil {
	}

	if sentinel := q.head.Load(); sentinel != nil {
		nodeReclaim(&sentinel.Object)
	}

	for _, h := range q.holders {
		h.Close()
	}
	q.domain.Cleanup()
}
