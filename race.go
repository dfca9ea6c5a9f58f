// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package faaq

// RaceEnabled is true when the race detector is active.
// Used by tests to skip stress tests whose atomic-ordering proofs the
// race detector cannot follow.
const RaceEnabled = true
