// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics holds the lock-free counters, latency histogram and
// alert rules described in spec.md §4.9: per-failure-class and
// per-destination aggregates, a logarithmic-bucket histogram for
// enqueue->successful-redeliver latency, and threshold alert rules.
package metrics

import (
	"sync"

	"code.hybscloud.com/atomix"
)

type counter struct {
	v atomix.Uint64
}

func (c *counter) inc()            { c.v.AddAcqRel(1) }
func (c *counter) add(n uint64)     { c.v.AddAcqRel(n) }
func (c *counter) load() uint64     { return c.v.LoadAcquire() }

// Registry holds every counter and the histogram, constructed once per
// Mesh (spec.md §9's "no singletons" note — no package-level state here).
type Registry struct {
	byFailureClass [8]counter // indexed by FailureClass
	byDestination  sync.Map   // string -> *destCounters

	criticalBypass counter
	dlqDropped     counter
	degraded       atomix.Bool

	Latency *Histogram
}

type destCounters struct {
	requests counter
	failures counter
	successes counter
	poisoned  counter
}

// NewRegistry builds a Registry with a histogram covering [1ns, maxLatency].
func NewRegistry(maxLatencyNs int64) *Registry {
	return &Registry{Latency: NewHistogram(maxLatencyNs)}
}

func (r *Registry) destCounter(dest string) *destCounters {
	v, _ := r.byDestination.LoadOrStore(dest, &destCounters{})
	return v.(*destCounters)
}

// RecordFailure increments the per-class and per-destination failure
// counters.
func (r *Registry) RecordFailure(class int, dest string) {
	if class >= 0 && class < len(r.byFailureClass) {
		r.byFailureClass[class].inc()
	}
	dc := r.destCounter(dest)
	dc.requests.inc()
	dc.failures.inc()
}

// RecordPoison increments dest's poison counter, on top of whatever
// RecordFailure(int(Poison), dest) already counted, so Evaluate's
// high_poison_rate rule has a real per-destination numerator (spec.md
// §4.9) instead of a hardcoded 0.
func (r *Registry) RecordPoison(dest string) {
	r.destCounter(dest).poisoned.inc()
}

// PoisonedCount reports dest's poison count, as recorded by RecordPoison.
func (r *Registry) PoisonedCount(dest string) uint64 {
	return r.destCounter(dest).poisoned.load()
}

// RecordSuccess increments the per-destination success/request counters
// and records latencyNs in the histogram.
func (r *Registry) RecordSuccess(dest string, latencyNs int64) {
	dc := r.destCounter(dest)
	dc.requests.inc()
	dc.successes.inc()
	r.Latency.Observe(latencyNs)
}

// IncCriticalBypass increments the Registry's critical-bypass counter.
// Mesh does not call it; bypasses taken through a breaker are counted by
// breaker.Manager.CriticalBypassCount.
func (r *Registry) IncCriticalBypass() { r.criticalBypass.inc() }

// CriticalBypassCount reports the total critical-bypass count observed.
func (r *Registry) CriticalBypassCount() uint64 { return r.criticalBypass.load() }

// IncDLQDropped accounts a DLQ overflow drop (spec.md §4.6's dlqDropped).
func (r *Registry) IncDLQDropped() { r.dlqDropped.inc() }

// DLQDroppedCount reports the total DLQ overflow drop count.
func (r *Registry) DLQDroppedCount() uint64 { return r.dlqDropped.load() }

// SetDegraded sets the process-wide Degraded flag surfaced after an
// infrastructure-class failure (spec.md §7).
func (r *Registry) SetDegraded(v bool) { r.degraded.StoreRelease(v) }

// Degraded reports the current Degraded flag.
func (r *Registry) Degraded() bool { return r.degraded.LoadAcquire() }

// FailureRate reports dest's failures/requests ratio, or 0 if no requests
// have been observed yet.
func (r *Registry) FailureRate(dest string) float64 {
	dc := r.destCounter(dest)
	requests := dc.requests.load()
	if requests == 0 {
		return 0
	}
	return float64(dc.failures.load()) / float64(requests)
}
