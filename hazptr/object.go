// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hazptr

import "sync/atomic"

// ReclaimFunc frees the storage behind a retired Object. It runs at most
// once, strictly after every hazard pointer that could observe obj has
// been cleared or overwritten.
type ReclaimFunc func(obj *Object)

// Object is the reclamation header embedded as the first field of any
// structure that wants to be retired through a Domain. Embedding it as
// the first field lets the reclaimer cast the header pointer it holds
// back to the enclosing type inside the ReclaimFunc.
//
// Lifecycle: zero value until Retire is called on it, pushed onto a
// shard's retired stack by Retire, unlinked and reclaimed once a scan
// proves no hazard pointer protects it.
type Object struct {
	nextRetired atomic.Pointer[Object]
	reclaim     ReclaimFunc
}
