// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package poison implements the poison-message detector described in
// spec.md §4.7: per-id failure counting and a TTL'd quarantine store.
// Classification is pluggable per spec.md §9's open question — the
// Heuristic hook fast-paths an immediate-poison signal, but the default
// is pure count-based, as the spec's detector contract requires.
package poison

import (
	"sync"

	"github.com/agentmesh/fabric/clock"
)

// Heuristic inspects a delivery error and may fast-path an immediate
// poison verdict (spec.md §9). The zero value (nil) is equivalent to
// AlwaysFalse.
type Heuristic func(err error) bool

// AlwaysFalse is the default Heuristic: classification is purely
// count-based, never guessing from an error's identity or message text.
func AlwaysFalse(error) bool { return false }

// Config tunes the detector, spec.md §4.7/§8 scenario 5's literal values.
type Config struct {
	PoisonThreshold  int   `default:"3"`
	QuarantinePeriod int64 `default:"3600000"` // milliseconds
}

type entry struct {
	failureCount     int
	quarantineUntil  int64 // 0 => not quarantined
}

// Detector tracks per-message-id failure counts and quarantine state.
type Detector struct {
	cfg       Config
	quarPeriodNs int64
	clock     clock.Clock
	heuristic Heuristic

	mu      sync.Mutex
	entries map[uint64]*entry
}

// NewDetector builds a Detector. heuristic may be nil (equivalent to
// AlwaysFalse).
func NewDetector(cfg Config, clk clock.Clock, heuristic Heuristic) *Detector {
	if heuristic == nil {
		heuristic = AlwaysFalse
	}
	return &Detector{
		cfg:          cfg,
		quarPeriodNs: cfg.QuarantinePeriod * 1_000_000,
		clock:        clk,
		heuristic:    heuristic,
		entries:      make(map[uint64]*entry),
	}
}

// CheckMessage records a failure for id and reports whether it should now
// be classified Poison. A true result also opens (or refreshes) a
// quarantine window of QuarantinePeriod starting now.
func (d *Detector) CheckMessage(id uint64, deliveryErr error) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[id]
	if !ok {
		e = &entry{}
		d.entries[id] = e
	}
	e.failureCount++

	poison := d.heuristic(deliveryErr) || e.failureCount >= d.cfg.PoisonThreshold
	if poison {
		e.quarantineUntil = d.clock.Now() + d.quarPeriodNs
	}
	return poison
}

// IsQuarantined reports whether id is currently rejected at enqueue time
// (spec.md §4.7: "Quarantined ids are rejected at enqueue with Poisoned
// until their entry expires").
func (d *Detector) IsQuarantined(id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[id]
	if !ok {
		return false
	}
	return e.quarantineUntil > 0 && d.clock.Now() < e.quarantineUntil
}

// Release sweeps entries whose quarantine window has expired, per
// spec.md §4.6's "quarantined messages older than quarantinePeriod are
// released". Call periodically from the same sweeper that runs the DLQ
// retention sweep.
func (d *Detector) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock.Now()
	for id, e := range d.entries {
		if e.quarantineUntil > 0 && now >= e.quarantineUntil {
			delete(d.entries, id)
		}
	}
}
