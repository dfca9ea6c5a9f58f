// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hazptr

import (
	"sync/atomic"
	"unsafe"
)

// Holder is a one-record handle bound to whatever goroutine initialised
// it. Ownership is exclusive: only the owning goroutine may call Reset
// or Protect on it.
type Holder struct {
	domain *Domain
	rec    *Record
}

// NewHolder acquires a record from d (its reuse pool, or freshly
// allocated) and returns a Holder wrapping it, with protection cleared.
func NewHolder(d *Domain) *Holder {
	h := &Holder{domain: d, rec: d.AcquireRecord()}
	return h
}

// Close resets the holder's protection and returns its record to the
// domain's reuse pool. A Holder must not be used after Close.
func (h *Holder) Close() {
	if h.rec == nil {
		return
	}
	h.domain.ReleaseRecord(h.rec)
	h.rec = nil
}

// Reset stores ptr (or nil to clear protection) into the holder's
// record with release ordering.
func (h *Holder) Reset(ptr unsafe.Pointer) {
	if h.rec == nil {
		return
	}
	h.rec.ptr.Store((*byte)(ptr))
}

// Protect implements the load-protect-validate pattern: it loads src,
// publishes the observed value into h, and reloads src to confirm no
// intervening swap happened before the publication was visible. It
// retries until the load is validated, then returns the protected
// pointer.
//
// Go's memory model treats operations in sync/atomic as sequentially
// consistent among themselves (as of Go 1.19), which is what the
// source's separate seq_cst fence between the hazard-pointer store and
// the validating reload exists to provide in C; here the store and the
// reload are both plain sync/atomic operations and need no additional
// fence.
func Protect[T any](h *Holder, src *atomic.Pointer[T]) *T {
	p := src.Load()
	for {
		h.Reset(unsafe.Pointer(p))
		v := src.Load()
		if p == v {
			return p
		}
		p = v
	}
}
