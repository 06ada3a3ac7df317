// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package retryengine implements the exponential-backoff retry scheduler
// described in spec.md §4.5: a monotonic min-heap keyed by
// nextRetryInstant, serviced by a single scheduler goroutine.
package retryengine

import (
	"time"

	"github.com/agentmesh/fabric/clock"
)

// Config tunes the backoff curve, spec.md §4.5's default parameters.
type Config struct {
	Initial     time.Duration `default:"1000000000"` // 1s, in nanoseconds
	Multiplier  float64       `default:"2"`
	MaxDelay    time.Duration `default:"300000000000"` // 5m, in nanoseconds
	MaxAttempts uint8         `default:"5"`
}

// ComputeDelay returns the backoff delay for the given retryCount:
// delay = min(initial * multiplier^retryCount, maxDelay), plus up to 10%
// additive uniform jitter. A zero-jitter Rng (rng.Float64() == 0) yields
// the exact unjittered schedule, matching spec.md §8 scenario 3.
func ComputeDelay(cfg Config, retryCount uint8, rng clock.Rng) time.Duration {
	base := float64(cfg.Initial)
	for i := uint8(0); i < retryCount; i++ {
		base *= cfg.Multiplier
	}
	if max := float64(cfg.MaxDelay); base > max {
		base = max
	}
	jitter := base * 0.1 * rng.Float64()
	return time.Duration(base + jitter)
}
