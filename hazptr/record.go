// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hazptr

import "sync/atomic"

// recordCacheLine pads a Record onto its own cache line so that readers
// publishing into rec.ptr don't false-share with a neighbouring record's
// publication.
type recordCacheLine [64]byte

// Record is a single hazard-pointer slot. It belongs to exactly one
// Domain for its entire life and is never freed — it only moves between
// "available" (ptr observed nil, reachable only from the domain's
// availability pool) and "in use" (owned by some Holder).
//
// A Record that is part of a domain's permanent scan list stays on that
// list forever; next is set once, before the record is published via
// Domain.newRecord, and never changes afterwards, so it needs no atomic.
type Record struct {
	_      recordCacheLine
	ptr    atomic.Pointer[byte]
	next   *Record
	domain *Domain
}
