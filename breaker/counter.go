// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package breaker

import "code.hybscloud.com/atomix"

// atomicCounter is a lock-free monotonic counter, mirroring the root
// package's counter.go so every subsystem's audit counters share one
// idiom (spec.md §4.9's promoted criticalBypass counter).
type atomicCounter struct {
	v atomix.Uint64
}

func (c *atomicCounter) Inc() uint64       { return c.v.AddAcqRel(1) }
func (c *atomicCounter) Load() uint64      { return c.v.LoadAcquire() }
