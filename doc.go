// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package faaq provides an unbounded, lock-free multi-producer
// multi-consumer FIFO queue.
//
// The queue is a linked list of fixed-size slot-array nodes. Producers
// and consumers claim a slot with a single fetch-and-add on a per-node
// index, publishing or claiming an item with one CAS or swap on that
// slot — the fast path most calls take. When a node fills or drains, a
// slow path links a new node or advances past the old one, helping any
// concurrent caller that is attempting the same transition. Because the
// list only ever grows forward and nodes are never reused in place,
// freeing a node that a concurrent caller might still be dereferencing
// requires safe memory reclamation; every Queue owns a private
// hazard-pointer domain for exactly that purpose (see the hazptr
// subpackage).
//
// # Quick Start
//
//	q, err := faaq.New(runtime.GOMAXPROCS(0))
//	if err != nil {
//	    // only returned for a non-positive maxThreads
//	}
//	defer q.Close()
//
//	value := 42
//	q.Enqueue(unsafe.Pointer(&value), tid)
//
//	item := q.Dequeue(tid)
//	if item != nil {
//	    got := (*int)(item)
//	}
//
// # Thread Identity
//
// Every Enqueue and Dequeue call takes a tid: the caller-assigned index,
// in [0, maxThreads), of a private hazard holder reserved for that
// goroutine. tid is an identity, not a scheduling hint — two goroutines
// must never call with the same tid concurrently, but a single goroutine
// may reuse its tid across any number of calls over its lifetime.
// maxThreads is fixed at construction and bounds how many distinct
// identities a Queue can serve; a natural choice is
// runtime.GOMAXPROCS(0) with one tid per worker goroutine, or a fixed
// pool size when the set of callers is known up front.
//
// # Emptiness and Backpressure
//
// Dequeue returns a nil unsafe.Pointer when the queue is empty at the
// moment of the call — this is a state report, not an error, since an
// unbounded queue's emptiness is transient by construction and callers
// are expected to poll or block externally rather than branch on an
// error value. Enqueue never blocks and never reports backpressure: the
// queue is unbounded, and always accepts every item offered to it
// (bounded by available memory).
//
// Enqueue panics if item is nil or aliases the queue's internal taken
// sentinel, and both Enqueue and Dequeue panic if tid is out of range —
// all three are programming errors, not states a caller should need to
// recover from at runtime.
//
// # Payload Lifetime
//
// The queue stores unsafe.Pointer values verbatim; it neither copies nor
// takes ownership of whatever they point to. Callers are responsible for
// keeping payload memory alive for as long as it may still be reachable
// from the queue, and for its lifecycle after Dequeue returns it.
//
// # Safe Memory Reclamation
//
// Internally, every claimed node is protected by a hazard pointer for
// the duration of the fast-path CAS or swap against one of its slots,
// using the load-protect-validate-retry discipline implemented by the
// hazptr subpackage. A node is only retired — handed to its domain for
// eventual reclamation — once a Dequeue call has advanced the queue's
// head past it; reclamation itself is deferred until no hazard record
// anywhere in the domain still protects that node.
//
// # Race Detection
//
// As with the rest of this module's lock-free code, Go's race detector
// cannot follow the happens-before relationships established purely
// through atomic operations on separate variables, and may report false
// positives on the queue's stress tests. Tests incompatible with race
// detection skip themselves when RaceEnabled is true.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic counters with
// explicit memory ordering and [code.hybscloud.com/spin] for contention
// backoff between fast-path retries. Pointer-shaped atomics (node links,
// slot contents, the head and tail of the queue itself) use the standard
// library's sync/atomic package directly, since atomix exposes only
// scalar and boolean atomic types.
package faaq
