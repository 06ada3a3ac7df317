// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dlq

import (
	"strconv"

	"github.com/agentmesh/fabric/clock"
	"github.com/agentmesh/fabric/store"
	"github.com/agentmesh/fabric/wire"
)

// Config tunes the DLQ, spec.md §4.6.
type Config struct {
	ClassCapacity   int   `default:"256"`
	RetentionPeriod int64 `default:"86400000"` // 24h, milliseconds
}

// numFailureClasses matches the root package's FailureClass enum size
// (NetworkTimeout..Unknown = 8), duplicated here as a plain constant to
// avoid importing the root package (which imports dlq).
const numFailureClasses = 8

// Manager owns one class ring per failure class, the overflow policy, and
// the retention sweep, per spec.md §4.6.
type Manager struct {
	cfg            Config
	retentionNs    int64
	clock          clock.Clock
	rings          [numFailureClasses]*classRing
	store          store.MessageStore
	pool           *wire.InternPool
	onDropped      func()
}

// NewManager builds a Manager. store and pool may be nil (disables
// overflow spill and wire persistence respectively; HandleFailure still
// tracks the FailedMessage in memory). onDropped, if non-nil, is invoked
// once per message permanently dropped by the overflow policy (wire this
// to metrics.Registry.IncDLQDropped).
func NewManager(cfg Config, clk clock.Clock, st store.MessageStore, pool *wire.InternPool, onDropped func()) *Manager {
	m := &Manager{
		cfg:         cfg,
		retentionNs: cfg.RetentionPeriod * 1_000_000,
		clock:       clk,
		store:       st,
		pool:        pool,
		onDropped:   onDropped,
	}
	for i := range m.rings {
		m.rings[i] = newClassRing(cfg.ClassCapacity)
	}
	return m
}

func (m *Manager) ringFor(class int) *classRing {
	if class < 0 || class >= numFailureClasses {
		class = numFailureClasses - 1 // Unknown
	}
	return m.rings[class]
}

// HandleFailure records a FailedMessage in the ring for its class. If the
// ring is already at capacity, the overflow policy evicts the oldest
// entry, spills it through the MessageStore if it still has unexhausted
// retries, then retries the insertion once; if still full (ClassCapacity
// == 0), the new message itself is dropped and onDropped is invoked.
func (m *Manager) HandleFailure(f FailedMessage) {
	r := m.ringFor(f.FailureClass)
	// A ring with no capacity can never hold the message, even after an
	// eviction, so it is dropped without touching the ring.
	if r.capacity == 0 {
		if m.onDropped != nil {
			m.onDropped()
		}
		return
	}
	evicted, didEvict := r.push(f)
	if !didEvict {
		return
	}

	// classRing.push always appends after evicting one slot when at
	// capacity, so a single eviction always makes room.
	if !evicted.ExhaustedRetries() {
		m.spill(store.NamespaceFailedMessages, evicted)
	}
}

// PermanentFailure removes f from its class ring (if present) and spills
// it to the MessageStore's permanent-failures namespace with an added
// finalFailureTime, per spec.md §6's persisted-state layout. Call this
// from retryengine's ExhaustedFunc.
func (m *Manager) PermanentFailure(f FailedMessage, finalFailureTime int64) {
	r := m.ringFor(f.FailureClass)
	r.removeById(f.MessageId)
	m.spillPermanent(f, finalFailureTime)
}

func (m *Manager) spill(namespace string, f FailedMessage) {
	if m.store == nil || m.pool == nil {
		return
	}
	enc := wire.NewEncoder(m.pool)
	defer enc.Release()
	_ = m.store.Put(namespace, keyFor(f.MessageId), Encode(enc, f))
}

func (m *Manager) spillPermanent(f FailedMessage, finalFailureTime int64) {
	if m.store == nil || m.pool == nil {
		return
	}
	enc := wire.NewEncoder(m.pool)
	defer enc.Release()
	buf := Encode(enc, f)
	buf = wire.AppendVarint(buf, uint64(finalFailureTime))
	_ = m.store.Put(store.NamespacePermanentFailure, keyFor(f.MessageId), buf)
}

// RetentionSweep removes FailedMessages older than RetentionPeriod from
// every class ring and from the MessageStore's failed-messages namespace.
func (m *Manager) RetentionSweep() {
	now := m.clock.Now()
	for _, r := range m.rings {
		expired := r.sweepExpired(now, m.retentionNs)
		if m.store == nil {
			continue
		}
		for _, f := range expired {
			_ = m.store.Delete(store.NamespaceFailedMessages, keyFor(f.MessageId))
		}
	}
	if m.store == nil || m.pool == nil {
		return
	}
	// Entries spilled on overflow live only in the store.
	iter, err := m.store.Iterate(store.NamespaceFailedMessages)
	if err != nil {
		return
	}
	dec := wire.NewDecoder(m.pool)
	iter(func(key string, value []byte) bool {
		if f, derr := Decode(dec, value); derr == nil && now-f.FailureTimestamp >= m.retentionNs {
			_ = m.store.Delete(store.NamespaceFailedMessages, key)
		}
		return true
	})
}

// Len reports the total number of FailedMessages held across all class
// rings, for metrics/tests.
func (m *Manager) Len() int {
	total := 0
	for _, r := range m.rings {
		total += r.len()
	}
	return total
}

// Snapshot returns every FailedMessage currently held in class's ring,
// for introspection.
func (m *Manager) Snapshot(class int) []FailedMessage {
	return m.ringFor(class).snapshot()
}

func keyFor(id uint64) string {
	return strconv.FormatUint(id, 10)
}
