// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package clock

import "math/rand/v2"

// Rng is the randomness port used for retry-engine jitter (spec.md §6:
// "must be seeded per process"). It is deliberately a port rather than a
// package-level rand.Rand, per spec.md §9's "no package-level mutable
// state" design note.
type Rng interface {
	// Float64 returns a pseudo-random number in [0.0, 1.0).
	Float64() float64
}

// NewRng returns an Rng seeded from two caller-supplied uint64 values
// (e.g. derived from the process's PID and start time), never from a
// shared global source.
func NewRng(seed1, seed2 uint64) Rng {
	return &rngImpl{r: rand.New(rand.NewPCG(seed1, seed2))}
}

type rngImpl struct {
	r *rand.Rand
}

func (r *rngImpl) Float64() float64 { return r.r.Float64() }

// ZeroRng always returns 0, used by tests that need deterministic
// (jitter-free) backoff per spec.md §8 scenario 3 ("0% jitter").
type ZeroRng struct{}

// Float64 implements Rng.
func (ZeroRng) Float64() float64 { return 0 }
