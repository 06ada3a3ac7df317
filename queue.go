// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

import (
	"time"

	"github.com/agentmesh/fabric/clock"
	"github.com/agentmesh/fabric/metrics"
)

// EventKind labels an entry on a PriorityQueue's event channel.
type EventKind uint8

const (
	EventExpired EventKind = iota
)

// Event is a side-channel notification, per spec.md §9's "explicit event
// channel passed in at construction" design note (replacing the source's
// ambient per-subsystem emitter).
type Event struct {
	Kind    EventKind
	Message Message
	// alert carries the fired rule for an EventAlert event (see mesh.go);
	// unexported since only the Mesh constructs Events.
	alert metrics.Alert
}

// Alert returns the fired alert rule carried by an EventAlert event; the
// zero Alert for every other EventKind.
func (e Event) Alert() metrics.Alert { return e.alert }

// PriorityQueue implements spec.md §4.3: one ring per Priority class,
// ascending-priority dequeue scan with an anti-starvation window, deadline
// surfacing, and cooperative cancellation.
type PriorityQueue struct {
	rings [numPriorities]*ring
	w     int // anti-starvation window

	clock  clock.Clock
	nextId *atomicCounter
	events chan<- Event

	// lastClass/streak implement spec.md §4.1's anti-starvation rule:
	// after streak reaches w consecutive deliveries from lastClass, the
	// next scan must skip lastClass and serve from a higher class if one
	// has a message, before lastClass can win again.
	lastClass int
	streak    int
}

// NewPriorityQueue builds a PriorityQueue over a fresh arena.
func NewPriorityQueue(cfg ArenaConfig, clk clock.Clock, events chan<- Event) *PriorityQueue {
	a := newArena(cfg)
	q := &PriorityQueue{
		clock:     clk,
		nextId:    newAtomicCounter(),
		events:    events,
		w:         cfg.AntiStarvationWindow,
		lastClass: -1,
	}
	if q.w <= 0 {
		q.w = 64
	}
	copy(q.rings[:], a.priorityRings[:])
	return q
}

// Enqueue adds payload at the given priority. Returns the assigned
// MessageId, or ErrQueueFull if the target ring rejects the message.
func (q *PriorityQueue) Enqueue(payload []byte, priority Priority, opts EnqueueOptions) (MessageId, error) {
	if int(priority) >= numPriorities {
		priority = Normal
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	id := MessageId(q.nextId.Inc())
	m := Message{
		Id:            id,
		Payload:       payload,
		Priority:      priority,
		EnqueuedAt:    q.clock.Now(),
		Deadline:      opts.Deadline,
		MaxRetries:    maxRetries,
		CorrelationId: opts.CorrelationId,
		Size:          len(payload),
	}
	if err := q.rings[priority].tryEnqueue(encodeEnvelope(&m)); err != nil {
		return 0, wrapf(ErrQueueFull, "priority %s", priority)
	}
	return id, nil
}

// Requeue re-publishes m through its original priority ring, preserving
// its MessageId, CorrelationId and retry accounting, per spec.md §4.5's
// "re-enqueue through §4.3 preserving original priority and correlation
// id". Unlike Enqueue, it never assigns a new MessageId.
func (q *PriorityQueue) Requeue(m Message) error {
	if int(m.Priority) >= numPriorities {
		m.Priority = Normal
	}
	if err := q.rings[m.Priority].tryEnqueue(encodeEnvelope(&m)); err != nil {
		return wrapf(ErrQueueFull, "priority %s", m.Priority)
	}
	return nil
}

// Dequeue scans rings in ascending priority order with the anti-
// starvation fairness rule, blocking (with a bounded spin budget first)
// until a message arrives, the timeout elapses, or the token cancels.
//
// If the returned message's deadline has already passed, Dequeue emits an
// Expired event and continues scanning rather than returning it.
func (q *PriorityQueue) Dequeue(timeout time.Duration, token *Token) (Message, error) {
	deadlineAt := time.Time{}
	if timeout > 0 {
		deadlineAt = time.Now().Add(timeout)
	}

	for {
		if m, ok := q.scanOnce(); ok {
			if m.Deadline != nil && *m.Deadline < q.clock.Now() {
				q.emit(Event{Kind: EventExpired, Message: m})
				continue
			}
			return m, nil
		}

		if token.Cancelled() {
			return Message{}, ErrCancelled
		}

		remaining := time.Duration(0)
		if !deadlineAt.IsZero() {
			remaining = time.Until(deadlineAt)
			if remaining <= 0 {
				return Message{}, ErrTimedOut
			}
		}

		// Wait for something to arrive: parkOnAny spins briefly, then
		// parks on the Critical ring's notifier for at most the bounded
		// wait from clampParkWait, after which this loop rescans every
		// ring.
		if err := q.parkOnAny(remaining, token); err != nil {
			if err == ErrTimedOut && !deadlineAt.IsZero() && time.Until(deadlineAt) <= 0 {
				return Message{}, ErrTimedOut
			}
			if err == ErrCancelled {
				return Message{}, ErrCancelled
			}
			// Spurious/timeout wake from a bounded per-ring wait: loop
			// and rescan; outer timeout check above is authoritative.
		}
	}
}

// scanOnce performs a single fairness-aware pass over the rings, trying a
// non-blocking dequeue from each in turn, in ascending priority order.
//
// Anti-starvation (spec.md §4.1): once lastClass has won streak >= w
// times in a row, this pass skips lastClass on its first trip through the
// classes and only falls back to it if every other class was empty —
// "inspect classes K+1..end once before returning to K".
func (q *PriorityQueue) scanOnce() (Message, bool) {
	skip := -1
	if q.streak >= q.w {
		skip = q.lastClass
	}

	if m, ok := q.scanClasses(skip); ok {
		q.recordWin(m.Priority, skip >= 0)
		return m, true
	}
	if skip >= 0 {
		// Every other class was empty; serve skip anyway rather than
		// stall, and reset the streak since the forced inspection ran.
		buf, err := q.rings[skip].tryDequeue(nil)
		if err == nil {
			m, derr := decodeEnvelope(buf, Priority(skip))
			if derr == nil {
				q.lastClass = skip
				q.streak = 1
				return m, true
			}
		}
	}
	return Message{}, false
}

func (q *PriorityQueue) scanClasses(skip int) (Message, bool) {
	for class := 0; class < numPriorities; class++ {
		if class == skip {
			continue
		}
		buf, err := q.rings[class].tryDequeue(nil)
		if err == nil {
			m, derr := decodeEnvelope(buf, Priority(class))
			if derr != nil {
				continue
			}
			return m, true
		}
	}
	return Message{}, false
}

func (q *PriorityQueue) recordWin(class Priority, wasForcedSkip bool) {
	if wasForcedSkip {
		q.lastClass = int(class)
		q.streak = 1
		return
	}
	if int(class) == q.lastClass {
		q.streak++
	} else {
		q.lastClass = int(class)
		q.streak = 1
	}
}

func (q *PriorityQueue) parkOnAny(timeout time.Duration, token *Token) error {
	budget := spinBudget
	for budget > 0 {
		// Only watch the pending count here; the message itself is
		// taken by Dequeue's next scan.
		if q.PendingCount() > 0 {
			return nil
		}
		budget--
	}
	// Fall back to parking on the Critical ring's notifier. Only a publish
	// into the Critical ring wakes it; a message arriving in any other
	// ring is picked up when the bounded wait from clampParkWait expires
	// and Dequeue rescans.
	return park(q.rings[Critical].notEmpty, token, clampParkWait(timeout))
}

// clampParkWait bounds a single park() call so Dequeue re-scans
// periodically even if it parked on a ring that a producer never
// publishes to again (e.g. only High-priority traffic arrives while we
// parked on Critical's notifier).
func clampParkWait(remaining time.Duration) time.Duration {
	const pollInterval = 5 * time.Millisecond
	if remaining <= 0 || remaining > pollInterval {
		return pollInterval
	}
	return remaining
}

func (q *PriorityQueue) emit(e Event) {
	if q.events == nil {
		return
	}
	select {
	case q.events <- e:
	default:
	}
}

// Drain signals that no more enqueues will occur, allowing Dequeue to
// drain all priority rings without the livelock-prevention threshold
// blocking it.
func (q *PriorityQueue) Drain() {
	for _, r := range q.rings {
		r.drain()
	}
}

// PendingCount sums each ring's approximate Len(), matching spec.md §3's
// aggregate pendingCount invariant ("within one memory-ordering epoch").
func (q *PriorityQueue) PendingCount() int64 {
	var total int64
	for _, r := range q.rings {
		total += r.Len()
	}
	return total
}
