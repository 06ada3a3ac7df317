// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package clock provides the monotonic-time and randomness ports used
// throughout fabric, per spec.md §6 and the "single monotonic clock"
// design note in §9: every scheduling decision goes through Clock; wall
// clock is for human-readable logs only.
package clock

import (
	"time"

	"code.hybscloud.com/atomix"
)

// Clock is the monotonic time port. Now returns nanoseconds on an
// arbitrary, process-local monotonic timeline — never wall-clock.
type Clock interface {
	// Now returns the current instant in nanoseconds on this Clock's
	// monotonic timeline.
	Now() int64
	// SleepUntil blocks the calling goroutine until the given instant,
	// or returns immediately if it has already passed.
	SleepUntil(instant int64)
}

// System is the production Clock, backed by time.Now()'s monotonic
// reading taken once at construction.
type System struct {
	start time.Time
}

// NewSystem creates a System clock anchored at the current instant.
func NewSystem() *System {
	return &System{start: time.Now()}
}

// Now implements Clock.
func (s *System) Now() int64 {
	return int64(time.Since(s.start))
}

// SleepUntil implements Clock.
func (s *System) SleepUntil(instant int64) {
	d := time.Duration(instant - s.Now())
	if d <= 0 {
		return
	}
	time.Sleep(d)
}

// Manual is a deterministic Clock for tests: Now() only advances when
// Advance/Set is called, or when SleepUntil is called with a target later
// than the current instant, which jumps the clock to that target. Safe for concurrent use (a scheduler goroutine's SleepUntil
// calls race harmlessly against a test goroutine's Advance/Set) via
// atomix, matching the rest of the module's atomic idiom.
type Manual struct {
	now atomix.Int64
}

// NewManual creates a Manual clock starting at instant 0.
func NewManual() *Manual { return &Manual{} }

// Now implements Clock.
func (m *Manual) Now() int64 { return m.now.LoadAcquire() }

// Advance moves the clock forward by d and returns the new instant.
func (m *Manual) Advance(d time.Duration) int64 {
	return m.now.AddAcqRel(int64(d))
}

// Set moves the clock to an absolute instant. Panics if instant is
// earlier than the current time, since SleepUntil callers assume
// monotonicity.
func (m *Manual) Set(instant int64) {
	if instant < m.now.LoadAcquire() {
		panic("clock: Manual.Set would move time backwards")
	}
	m.now.StoreRelease(instant)
}

// SleepUntil implements Clock. Manual never actually blocks; tests drive
// time forward explicitly with Advance/Set, or rely on a scheduler goroutine
// racing its own due instant forward here.
func (m *Manual) SleepUntil(instant int64) {
	for {
		cur := m.now.LoadAcquire()
		if instant <= cur {
			return
		}
		if m.now.CompareAndSwapAcqRel(cur, instant) {
			return
		}
	}
}
