// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package faaq

import (
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/atomix"

	"github.com/quince-pie/faaq/hazptr"
)

// slotCount is the number of item slots per node. Counters on a node may
// exceed slotCount; values at or above it mean the node is closed to
// further claims.
const slotCount = 1024

// align128 pads a field onto (at least) its own 128-byte region, matching
// the source's alignas(FAA_ALIGNMENT) with FAA_ALIGNMENT=128 — wider than
// a single cache line, to avoid adjacent-line prefetching artefacts
// between a node's hot counters.
type align128 [128]byte

// node is one link in the Michael–Scott-style chain: a fixed-size slot
// array plus the enqueue/dequeue claim indices and the next-node link.
//
// hazptr.Object is embedded as the first field so that a reclaim
// callback holding only the *hazptr.Object header can cast it straight
// back to *node (see nodeReclaim).
type node struct {
	hazptr.Object

	_      align128
	deqIdx atomix.Uint64
	_      align128
	enqIdx atomix.Uint64
	_      align128
	next   atomic.Pointer[node]
	_      align128
	items  [slotCount]unsafe.Pointer
}

// newNode returns an empty node: both indices at zero, every slot empty.
func newNode() *node {
	return &node{}
}

// newNodeWithItem returns a node seeded with item already in slot 0 and
// enqIdx starting at 1 — used when a producer builds a successor node so
// its own enqueue succeeds without a further claim.
func newNodeWithItem(item unsafe.Pointer) *node {
	n := &node{}
	n.items[0] = item
	n.enqIdx.StoreRelaxed(1)
	return n
}

// nodeReclaim is the ReclaimFunc registered at retire time. Go's garbage
// collector frees the node's storage once nothing references it; clearing
// the slots here just drops any leftover payload references promptly,
// rather than waiting for the node itself to be collected.
func nodeReclaim(obj *hazptr.Object) {
	n := (*node)(unsafe.Pointer(obj))
	for i := range n.items {
		n.items[i] = nil
	}
}
