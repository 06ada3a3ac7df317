// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

// ArenaConfig sizes the shared arena partitioned per spec.md §4.1: one
// ring per Priority class, one DLQ ring per FailureClass, and a poison
// quarantine region. The arena itself is logical bookkeeping in this
// implementation (each ring owns its own Go byte slab) rather than one
// contiguous mmap'd region, since the spec's non-goal list excludes
// cross-process durability and this process never needs to hand the
// arena to another address space.
type ArenaConfig struct {
	// RingCapacity is the number of messages each priority ring can hold
	// (rounded up to a power of two).
	RingCapacity int `default:"1024"`
	// SlotWidth is the fixed byte width of each ring slot, including the
	// 4-byte length prefix. Default matches spec.md §4.1 (8 KiB).
	SlotWidth int `default:"8192"`
	// DLQCapacity is the number of slots in each of the arena's per-class
	// rings. dlq.Manager keeps FailedMessages in its own rings, sized by
	// dlq.Config.ClassCapacity, not in these.
	DLQCapacity int `default:"256"`
	// DLQSlotWidth is the fixed byte width of each DLQ ring slot.
	DLQSlotWidth int `default:"8192"`
	// AntiStarvationWindow (W in spec.md §4.1): the number of messages a
	// consumer may serve from one priority class before inspecting the
	// remaining classes.
	AntiStarvationWindow int `default:"64"`
}

// arena partitions one ring per Priority and one ring per FailureClass
// over plain Go allocations. It exists mainly to give the rings a shared
// construction point and a single place to report aggregate corruption.
type arena struct {
	priorityRings [numPriorities]*ring
	dlqRings      [numFailureClasses]*ring
	quarantine    map[MessageId]Instant

	corruptions *atomicCounter
}

func newArena(cfg ArenaConfig) *arena {
	a := &arena{
		quarantine:  make(map[MessageId]Instant),
		corruptions: newAtomicCounter(),
	}
	for i := range a.priorityRings {
		a.priorityRings[i] = newRing(cfg.RingCapacity, cfg.SlotWidth)
	}
	for i := range a.dlqRings {
		a.dlqRings[i] = newRing(cfg.DLQCapacity, cfg.DLQSlotWidth)
	}
	return a
}
