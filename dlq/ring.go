// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dlq

import "sync"

// classRing is a bounded FIFO of FailedMessage, one per FailureClass. DLQ
// traffic is failure-path-only — far lower throughput than the priority
// queue's hot path — so a single mutex guards it directly rather than
// reusing the lock-free SCQ ring from the root package (which would also
// require dlq to import the root package, a cycle, since the root
// package's Mesh imports dlq).
type classRing struct {
	mu       sync.Mutex
	items    []FailedMessage
	capacity int
}

func newClassRing(capacity int) *classRing {
	return &classRing{items: make([]FailedMessage, 0, capacity), capacity: capacity}
}

// push appends f, evicting and returning the oldest entry if the ring was
// already at capacity.
func (r *classRing) push(f FailedMessage) (evicted FailedMessage, didEvict bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) >= r.capacity {
		evicted = r.items[0]
		r.items = r.items[1:]
		didEvict = true
	}
	r.items = append(r.items, f)
	return
}

// removeById removes and returns the entry matching id, if present.
func (r *classRing) removeById(id uint64) (FailedMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, f := range r.items {
		if f.MessageId == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return f, true
		}
	}
	return FailedMessage{}, false
}

// sweepExpired removes and returns every entry whose FailureTimestamp is
// older than now-retentionNs.
func (r *classRing) sweepExpired(now, retentionNs int64) []FailedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []FailedMessage
	kept := r.items[:0]
	for _, f := range r.items {
		if now-f.FailureTimestamp >= retentionNs {
			expired = append(expired, f)
		} else {
			kept = append(kept, f)
		}
	}
	r.items = kept
	return expired
}

func (r *classRing) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *classRing) snapshot() []FailedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FailedMessage, len(r.items))
	copy(out, r.items)
	return out
}
