// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package breaker implements the per-destination circuit breaker state
// machine described in spec.md §4.4: Closed/Open/HalfOpen, tripped by
// consecutive failures and reset by a recovery timeout plus successful
// half-open probes.
package breaker

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/agentmesh/fabric/clock"
)

// State is a destination's circuit breaker phase, spec.md §3.
type State uint8

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

const shardCount = 16

// Config tunes the breaker per destination; every destination shares the
// same thresholds, matching spec.md §4.4's contract.
type Config struct {
	FailureThreshold int   `default:"3"`
	RecoveryTimeout  int64 `default:"60000"` // milliseconds
	HalfOpenMaxCalls int   `default:"1"`
}

type destState struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailureAt       int64
	openedAt            int64
	nextHalfOpen        int64
	halfOpenOutstanding int
	halfOpenSucceeded   int
	totalRequests       uint64
	successCount        uint64
}

type shard struct {
	mu   sync.Mutex
	dest map[string]*destState
}

// Manager tracks one CircuitBreakerState per destination behind a sharded
// lock, so hot destinations don't contend on a single mutex (spec.md §5's
// "per-entry spinlock or sharded lock" requirement).
type Manager struct {
	cfg             Config
	recoveryTimeout int64 // nanoseconds, matching clock.Clock.Now's unit
	clock           clock.Clock
	shards          [shardCount]*shard

	criticalBypass atomicCounter
}

// NewManager builds a Manager. clk supplies the monotonic "now" used for
// recoveryTimeout comparisons; cfg.RecoveryTimeout is in milliseconds, per
// spec.md §4.4's literal configuration values.
func NewManager(cfg Config, clk clock.Clock) *Manager {
	m := &Manager{
		cfg:             cfg,
		recoveryTimeout: cfg.RecoveryTimeout * int64(time.Millisecond),
		clock:           clk,
	}
	for i := range m.shards {
		m.shards[i] = &shard{dest: make(map[string]*destState)}
	}
	return m
}

func (m *Manager) shardFor(dest string) *shard {
	h := xxhash.Sum64String(dest)
	return m.shards[h%shardCount]
}

func (m *Manager) stateFor(dest string) *destState {
	sh := m.shardFor(dest)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	ds, ok := sh.dest[dest]
	if !ok {
		ds = &destState{}
		sh.dest[dest] = ds
	}
	return ds
}

// ShouldAllow reports whether a call to dest should proceed. While Open,
// only criticalBypass calls are allowed, and each such bypass increments
// the audit counter returned by CriticalBypassCount.
func (m *Manager) ShouldAllow(dest string, criticalBypass bool) bool {
	ds := m.stateFor(dest)
	ds.mu.Lock()
	defer ds.mu.Unlock()

	now := m.clock.Now()
	if ds.state == Open && now >= ds.nextHalfOpen {
		ds.state = HalfOpen
		ds.halfOpenOutstanding = 0
		ds.halfOpenSucceeded = 0
	}

	switch ds.state {
	case Closed:
		return true
	case HalfOpen:
		if ds.halfOpenOutstanding < m.cfg.HalfOpenMaxCalls {
			ds.halfOpenOutstanding++
			return true
		}
		if criticalBypass {
			m.criticalBypass.Inc()
			return true
		}
		return false
	default: // Open
		if criticalBypass {
			m.criticalBypass.Inc()
			return true
		}
		return false
	}
}

// State reports dest's current phase, applying the Open->HalfOpen
// transition if its recovery timeout has already elapsed.
func (m *Manager) State(dest string) State {
	ds := m.stateFor(dest)
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.state == Open && m.clock.Now() >= ds.nextHalfOpen {
		ds.state = HalfOpen
		ds.halfOpenOutstanding = 0
		ds.halfOpenSucceeded = 0
	}
	return ds.state
}

// RecordSuccess accounts a successful call to dest, closing the breaker
// once every permitted half-open probe has succeeded.
func (m *Manager) RecordSuccess(dest string) {
	ds := m.stateFor(dest)
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.totalRequests++
	ds.successCount++
	ds.consecutiveFailures = 0

	if ds.state == HalfOpen {
		ds.halfOpenSucceeded++
		if ds.halfOpenSucceeded >= m.cfg.HalfOpenMaxCalls {
			ds.state = Closed
			ds.openedAt = 0
			ds.halfOpenOutstanding = 0
			ds.halfOpenSucceeded = 0
		}
	}
}

// RecordFailure accounts a failed call to dest. Reports whether this call
// tripped the breaker (Closed->Open or HalfOpen->Open), so callers can
// classify the failure as BreakerOpen and schedule a recovery action per
// spec.md §4.6.
func (m *Manager) RecordFailure(dest string) (tripped bool) {
	ds := m.stateFor(dest)
	ds.mu.Lock()
	defer ds.mu.Unlock()

	now := m.clock.Now()
	ds.totalRequests++
	ds.lastFailureAt = now

	if ds.state == HalfOpen {
		ds.state = Open
		ds.openedAt = now
		ds.nextHalfOpen = now + m.recoveryTimeout
		ds.halfOpenOutstanding = 0
		ds.halfOpenSucceeded = 0
		return true
	}

	ds.consecutiveFailures++
	if ds.state == Closed && ds.consecutiveFailures >= m.cfg.FailureThreshold {
		ds.state = Open
		ds.openedAt = now
		ds.nextHalfOpen = now + m.recoveryTimeout
		return true
	}
	return false
}

// CriticalBypassCount reports how many calls bypassed an Open breaker via
// the criticalBypass flag, per spec.md §8's testable "Breaker bypass"
// property.
func (m *Manager) CriticalBypassCount() uint64 {
	return m.criticalBypass.Load()
}

// NextHalfOpen reports dest's nextHalfOpen instant, for callers (the
// retry engine's BreakerQuery) that need to reschedule a blocked item
// without incrementing its retry count, per spec.md §4.5.
func (m *Manager) NextHalfOpen(dest string) int64 {
	ds := m.stateFor(dest)
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.nextHalfOpen
}

// RecoveryElapsed reports how long dest's breaker has been continuously
// Open or HalfOpen, for metrics.Registry.Evaluate's long_recovery_time
// rule (spec.md §4.9). Reports 0 while dest is Closed.
func (m *Manager) RecoveryElapsed(dest string) time.Duration {
	ds := m.stateFor(dest)
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.state == Closed {
		return 0
	}
	return time.Duration(m.clock.Now() - ds.openedAt)
}
