// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hazptr implements a hazard-pointer safe-memory-reclamation
// domain: thread-safe publication of "this pointer is in use" records,
// batched reclamation with an asymmetric-fence scan, sharded retired
// lists, and a per-P reuse pool of hazard records.
//
// A Domain is the SMR substrate faaq's unbounded queue builds on; it is
// also exposed standalone (Default, NewDomain) for any other retirable
// data structure that wants the same guarantees.
package hazptr

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// DefaultShards is the retired-list shard count used by Default and by
// NewDomain when shards <= 0. Must stay a power of two; the source fixes
// this at 8 and leaves higher thread counts unproven, so it is kept
// configurable here rather than hard-coded.
const DefaultShards = 8

// rcountThreshold is the fixed floor of the dynamic reclamation
// threshold (spec: max(base, hazard-record-count * multiplier)).
const rcountThreshold = 1000

// hcountMultiplier scales the hazard-record count into the dynamic half
// of the threshold.
const hcountMultiplier = 2

type shard struct {
	_           [64]byte
	retiredHead atomic.Pointer[Object]
}

// Domain is a hazard-pointer reclamation domain: the global hazard-record
// list (for scanning), the availability pool records are recycled
// through, the signed retired-object count, the reclaiming latch, and the
// sharded retired-object stacks.
//
// A single process-wide Domain (Default) suffices for most uses; faaq's
// Queue owns a private one per instance instead so that draining one
// queue never scans or reclaims another's nodes.
type Domain struct {
	hprecList  atomic.Pointer[Record]
	hprecCount atomix.Uint64

	pool sync.Pool // *Record, the TLC+avail-stack layer (see SPEC_FULL §4)

	retiredCount atomix.Int64
	reclaiming   atomix.Bool

	shards    []shard
	shardMask uint64

	// scanSet is touched only by whichever goroutine holds reclaiming,
	// so it needs no synchronization of its own.
	scanSet map[unsafe.Pointer]struct{}
}

// NewDomain creates a reclamation domain with the given shard count,
// rounded up to a power of two (DefaultShards if shards <= 0).
func NewDomain(shards int) *Domain {
	if shards <= 0 {
		shards = DefaultShards
	}
	n := 1
	for n < shards {
		n <<= 1
	}
	d := &Domain{
		shards:    make([]shard, n),
		shardMask: uint64(n - 1),
	}
	d.pool.New = func() any { return d.newRecord() }
	return d
}

var (
	defaultOnce   sync.Once
	defaultDomain *Domain
)

// Default returns the lazily-initialized, process-wide default domain.
func Default() *Domain {
	defaultOnce.Do(func() { defaultDomain = NewDomain(DefaultShards) })
	return defaultDomain
}

// newRecord allocates a fresh Record, publishes it onto the domain's
// permanent scan list, and bumps the hazard-record count used by the
// dynamic threshold. Allocation failure is unrecoverable in this
// algorithm (there is no safe caller-side fallback), but Go's allocator
// already fails that way (panic/fatal) on its own, so there is nothing
// further to do here.
func (d *Domain) newRecord() *Record {
	rec := &Record{domain: d}
	for {
		head := d.hprecList.Load()
		rec.next = head
		if d.hprecList.CompareAndSwap(head, rec) {
			break
		}
	}
	d.hprecCount.AddAcqRel(1)
	return rec
}

// AcquireRecord returns an unused hazard record, from the reuse pool if
// one is available, otherwise freshly allocated.
func (d *Domain) AcquireRecord() *Record {
	rec := d.pool.Get().(*Record)
	rec.ptr.Store(nil)
	return rec
}

// ReleaseRecord resets a record's protection and returns it to the reuse
// pool. rec must have been acquired from d.
func (d *Domain) ReleaseRecord(rec *Record) {
	if rec.domain != d {
		panic("hazptr: record released to a domain that did not acquire it")
	}
	rec.ptr.Store(nil)
	d.pool.Put(rec)
}

func calcShard(ptr unsafe.Pointer, mask uint64) uint64 {
	return (uint64(uintptr(ptr)) >> 4) & mask
}

func (d *Domain) calculateThreshold() int64 {
	hc := d.hprecCount.LoadAcquire()
	dynamic := int64(hc) * hcountMultiplier
	if dynamic > rcountThreshold {
		return dynamic
	}
	return rcountThreshold
}

// checkThreshold attempts to claim a batch of retired objects for
// reclamation by atomically resetting the count to zero. Returns the
// claimed count, or 0 if the count is below threshold.
func (d *Domain) checkThreshold() int64 {
	for {
		rcount := d.retiredCount.LoadAcquire()
		thresh := d.calculateThreshold()
		if rcount < thresh {
			return 0
		}
		if d.retiredCount.CompareAndSwapAcqRel(rcount, 0) {
			return rcount
		}
	}
}

// exchangeRetired atomically swaps the retired count for newVal,
// returning the previous value. atomix exposes no generic Exchange, so
// this is a small CAS loop, the same substitution Cleanup's C analogue
// (atomic_exchange_explicit) needs in terms of compare_exchange.
func (d *Domain) exchangeRetired(newVal int64) int64 {
	for {
		old := d.retiredCount.LoadAcquire()
		if d.retiredCount.CompareAndSwapAcqRel(old, newVal) {
			return old
		}
	}
}

// Retire attaches reclaim to obj, shards it by address, pushes it onto
// that shard's retired stack, and triggers reclamation if the retired
// count has crossed the threshold.
//
// The push itself (a CAS loop on sync/atomic, which the Go memory model
// treats as sequentially consistent among themselves) is what the
// source's separate seq_cst fence-before-push exists for: it publishes
// the prior unlink of obj from its data structure before any reclaimer
// can observe obj as retired.
func (d *Domain) Retire(obj *Object, reclaim ReclaimFunc) {
	if obj == nil {
		return
	}
	obj.reclaim = reclaim

	idx := calcShard(unsafe.Pointer(obj), d.shardMask)
	sh := &d.shards[idx]
	for {
		head := sh.retiredHead.Load()
		obj.nextRetired.Store(head)
		if sh.retiredHead.CompareAndSwap(head, obj) {
			break
		}
	}

	d.retiredCount.AddAcqRel(1)
	if rcount := d.checkThreshold(); rcount > 0 {
		d.reclaim(rcount)
	}
}

// Cleanup forces a reclamation pass over everything currently retired,
// regardless of threshold. Used for shutdown/draining and tests.
func (d *Domain) Cleanup() {
	rcount := d.exchangeRetired(0)
	if rcount < 0 {
		// Another reclamation just finished and left a transient
		// negative balance; fold it back in and start this pass at 0.
		d.retiredCount.AddAcqRel(rcount)
		rcount = 0
	}
	d.reclaim(rcount)
}

// reclaim is the core scan-and-free routine (spec §4.1's scan protocol).
// At most one goroutine runs this at a time per domain; a contender that
// claimed a count but finds the latch held hands its count back to the
// active reclaimer and returns immediately.
func (d *Domain) reclaim(claimed int64) {
	if !d.reclaiming.CompareAndSwapAcqRel(false, true) {
		if claimed != 0 {
			d.retiredCount.AddAcqRel(claimed)
		}
		return
	}

	if d.scanSet == nil {
		d.scanSet = make(map[unsafe.Pointer]struct{})
	}

	rcount := claimed
	lists := make([]*Object, len(d.shards))

	for {
		extractedAny := false
		// kept is the list this pass pushed back onto an empty shard 0
		// because its objects are still protected; it does not by itself
		// call for another pass.
		var kept *Object
		for i := range d.shards {
			lists[i] = d.shards[i].retiredHead.Swap(nil)
			if lists[i] != nil {
				extractedAny = true
			}
		}

		if extractedAny {
			clear(d.scanSet)
			for rec := d.hprecList.Load(); rec != nil; rec = rec.next {
				if p := rec.ptr.Load(); p != nil {
					d.scanSet[unsafe.Pointer(p)] = struct{}{}
				}
			}

			var remainHead, remainTail *Object
			for i := range lists {
				cur := lists[i]
				for cur != nil {
					next := cur.nextRetired.Load()
					if _, protected := d.scanSet[unsafe.Pointer(cur)]; protected {
						cur.nextRetired.Store(nil)
						if remainHead == nil {
							remainHead, remainTail = cur, cur
						} else {
							remainTail.nextRetired.Store(cur)
							remainTail = cur
						}
					} else {
						if cur.reclaim != nil {
							cur.reclaim(cur)
						}
						rcount--
					}
					cur = next
				}
			}

			if remainHead != nil {
				shard0 := &d.shards[0]
				for {
					head := shard0.retiredHead.Load()
					remainTail.nextRetired.Store(head)
					if shard0.retiredHead.CompareAndSwap(head, remainHead) {
						if head == nil {
							kept = remainHead
						}
						break
					}
				}
			}
		}

		if rcount != 0 {
			d.retiredCount.AddAcqRel(rcount)
		}

		rcount = d.checkThreshold()
		if rcount == 0 {
			done := true
			for i := range d.shards {
				head := d.shards[i].retiredHead.Load()
				if head != nil && !(i == 0 && head == kept) {
					done = false
					break
				}
			}
			if done {
				break
			}
		}
	}

	d.reclaiming.StoreRelease(false)
}
