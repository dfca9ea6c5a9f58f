// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package hazptr

// RaceEnabled is true when the race detector is active.
// Exported so that tests can skip stress tests whose atomic-ordering
// proofs the race detector cannot follow; no test in this package reads it.
const RaceEnabled = true
