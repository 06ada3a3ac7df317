// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

import "code.hybscloud.com/atomix"

// atomicCounter is a small lock-free counter, the same discipline the
// teacher uses throughout (explicit acquire/release atomics rather than a
// plain sync/atomic value, for consistency with ring.go and metrics).
type atomicCounter struct {
	v atomix.Uint64
}

func newAtomicCounter() *atomicCounter { return &atomicCounter{} }

func (c *atomicCounter) Add(n uint64) uint64 { return c.v.AddAcqRel(n) }

func (c *atomicCounter) Inc() uint64 { return c.v.AddAcqRel(1) }

func (c *atomicCounter) Load() uint64 { return c.v.LoadAcquire() }
