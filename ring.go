// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

import (
	"encoding/binary"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// lengthPrefixWidth is the size of the length prefix written at the start
// of every ring slot, per spec.md §3 ("Each slot is fixed size and
// carries a length prefix").
const lengthPrefixWidth = 4

// pad is cache-line padding to prevent false sharing, reused verbatim
// from the teacher's options.go.
type pad [64]byte

// padShort pads out the remainder of a cache line after an 8-byte field,
// reused verbatim from the teacher's options.go.
type padShort [64 - 8]byte

// ringSlot is one physical slot of the ring: a cycle-stamped readiness
// gate (the teacher's SCQ technique from mpmc.go, generalized from a
// generic T to a fixed-width byte payload) plus the length-prefixed data.
type ringSlot struct {
	cycle atomix.Uint64
	data  []byte // len == slotWidth; data[:4] is the length prefix
	_     padShort
}

// ring is a bounded MPMC byte-slab buffer over a shared slot arena.
//
// It generalizes the teacher's mpmc.go (FAA claim + per-slot cycle
// readiness gate, 2n physical slots for capacity n — see SPEC_FULL.md
// §4.1) from typed in-memory elements to fixed-width byte slots carrying
// a length-prefixed payload, and adds a notifier so a caller can block
// instead of spinning. Each successful enqueue signals notEmpty and each
// successful dequeue signals notFull, both with a non-blocking channel
// send; blocking on a notifier happens only on PriorityQueue's park path.
type ring struct {
	_         pad
	tail      atomix.Uint64 // producer claim index (FAA)
	_         pad
	head      atomix.Uint64 // consumer claim index (FAA)
	_         pad
	threshold atomix.Int64 // livelock prevention, as in the teacher's MPMC
	_         pad
	draining  atomix.Bool
	_         pad
	pending   atomix.Int64 // observable pending-count, spec.md §3 invariant
	_         pad

	buffer    []ringSlot
	capacity  uint64 // n, usable capacity (power of two)
	size      uint64 // 2n, physical slot count
	mask      uint64
	slotWidth int

	notEmpty *notifier
	notFull  *notifier

	corruptions *atomicCounter
}

func newRing(capacity, slotWidth int) *ring {
	if capacity < 2 {
		capacity = 2
	}
	if slotWidth < lengthPrefixWidth+1 {
		slotWidth = lengthPrefixWidth + 1
	}

	n := uint64(roundToPow2(capacity))
	size := n * 2

	r := &ring{
		buffer:      make([]ringSlot, size),
		capacity:    n,
		size:        size,
		mask:        size - 1,
		slotWidth:   slotWidth,
		notEmpty:    newNotifier(),
		notFull:     newNotifier(),
		corruptions: newAtomicCounter(),
	}
	r.threshold.StoreRelaxed(3*int64(n) - 1)
	for i := uint64(0); i < size; i++ {
		r.buffer[i].cycle.StoreRelaxed(i / n)
		r.buffer[i].data = make([]byte, slotWidth)
	}
	return r
}

// roundToPow2 rounds n up to the next power of 2. Reused verbatim from
// the teacher's options.go.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// tryEnqueue claims a slot and writes payload into it (non-blocking hot
// path). Returns ErrQueueFull if the ring is full.
func (r *ring) tryEnqueue(payload []byte) error {
	if len(payload) > r.slotWidth-lengthPrefixWidth {
		return ErrPayloadTooLarge
	}
	sw := spin.Wait{}
	for {
		tail := r.tail.LoadAcquire()
		head := r.head.LoadAcquire()
		if tail >= head+r.capacity {
			return ErrQueueFull
		}

		myTail := r.tail.AddAcqRel(1) - 1
		slot := &r.buffer[myTail&r.mask]
		expectedCycle := myTail / r.capacity

		slotCycle := slot.cycle.LoadAcquire()
		if slotCycle == expectedCycle {
			binary.LittleEndian.PutUint32(slot.data[:lengthPrefixWidth], uint32(len(payload)))
			copy(slot.data[lengthPrefixWidth:], payload)
			slot.cycle.StoreRelease(expectedCycle + 1)
			r.threshold.StoreRelaxed(3*int64(r.capacity) - 1)
			r.pending.AddAcqRel(1)
			r.notEmpty.wakeOne()
			return nil
		}
		if int64(slotCycle) < int64(expectedCycle) {
			return ErrQueueFull
		}
		sw.Once()
	}
}

// tryDequeue removes and returns a copy of the oldest slot's payload
// (non-blocking hot path). Returns ErrWouldBlock if the ring is empty.
func (r *ring) tryDequeue(scratch []byte) ([]byte, error) {
	if !r.draining.LoadAcquire() && r.threshold.LoadRelaxed() < 0 {
		return nil, ErrWouldBlock
	}

	sw := spin.Wait{}
	for {
		myHead := r.head.AddAcqRel(1) - 1
		slot := &r.buffer[myHead&r.mask]
		expectedCycle := myHead/r.capacity + 1
		slotCycle := slot.cycle.LoadAcquire()

		if slotCycle == expectedCycle {
			n := binary.LittleEndian.Uint32(slot.data[:lengthPrefixWidth])
			if int(n) > r.slotWidth-lengthPrefixWidth {
				// Torn or corrupted length prefix: quarantine this slot
				// rather than trust an out-of-range length (spec.md
				// §4.1 "Failure").
				r.corruptions.Inc()
				nextEnqCycle := (myHead + r.size) / r.capacity
				slot.cycle.StoreRelease(nextEnqCycle)
				r.pending.AddAcqRel(-1)
				return nil, ErrArenaCorruption
			}
			out := scratch
			if cap(out) < int(n) {
				out = make([]byte, n)
			} else {
				out = out[:n]
			}
			copy(out, slot.data[lengthPrefixWidth:lengthPrefixWidth+int(n)])

			nextEnqCycle := (myHead + r.size) / r.capacity
			slot.cycle.StoreRelease(nextEnqCycle)
			r.pending.AddAcqRel(-1)
			r.notFull.wakeOne()
			return out, nil
		}

		if int64(slotCycle) < int64(expectedCycle) {
			nextEnqCycle := (myHead + r.size) / r.capacity
			slot.cycle.CompareAndSwapAcqRel(slotCycle, nextEnqCycle)

			tail := r.tail.LoadAcquire()
			if tail <= myHead+1 {
				r.catchup(tail, myHead+1)
				r.threshold.AddAcqRel(-1)
				return nil, ErrWouldBlock
			}
			if r.threshold.AddAcqRel(-1) <= 0 && !r.draining.LoadAcquire() {
				return nil, ErrWouldBlock
			}
		}
		sw.Once()
	}
}

func (r *ring) catchup(tail, head uint64) {
	for tail < head {
		if r.tail.CompareAndSwapRelaxed(tail, head) {
			break
		}
		tail = r.tail.LoadRelaxed()
		head = r.head.LoadRelaxed()
	}
}

// drain signals that no more enqueues will occur, so Dequeue skips the
// threshold livelock check and consumers can fully drain the ring.
func (r *ring) drain() { r.draining.StoreRelease(true) }

// Len reports the ring's approximate pending count. Per spec.md §3's
// invariant this is only guaranteed accurate "within one memory-ordering
// epoch" — callers must not rely on it for correctness.
func (r *ring) Len() int64 { return r.pending.LoadRelaxed() }

// Cap returns the ring's usable capacity.
func (r *ring) Cap() int { return int(r.capacity) }
