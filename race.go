// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package fabric

// RaceEnabled is true when the race detector is active.
// Used by tests to skip ring-buffer stress tests whose lock-free
// acquire/release discipline the race detector cannot verify (it tracks
// happens-before only through explicit synchronization primitives, not
// atomic-ordered separate variables).
const RaceEnabled = true
