// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// Bloom is a fixed-size Bloom filter used to accelerate the string intern
// pool's "definitely absent" rejections (spec.md §3/§4.2). It is a pure
// accelerator: a negative is authoritative, a positive must still be
// confirmed against the backing map.
//
// k hash functions are derived by double hashing (h1 + i*h2) from two
// independent 64-bit hashes produced by xxhash.Sum64, per spec.md §4.2.
type Bloom struct {
	bits []uint64 // m bits, packed 64 per word
	m    uint64
	k    uint64
}

// NewBloom sizes a filter for n expected items and false-positive rate p,
// using the optimal m = ceil(-n*ln(p)/ln(2)^2), k = round((m/n)*ln(2))
// formulas from spec.md §4.2.
func NewBloom(n int, p float64) *Bloom {
	if n < 1 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}
	nf := float64(n)
	m := uint64(math.Ceil(-nf * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m < 64 {
		m = 64
	}
	k := uint64(math.Round((float64(m) / nf) * math.Ln2))
	if k < 1 {
		k = 1
	}
	words := (m + 63) / 64
	return &Bloom{
		bits: make([]uint64, words),
		m:    words * 64,
		k:    k,
	}
}

func (b *Bloom) hashes(s string) (h1, h2 uint64) {
	h1 = xxhash.Sum64String(s)
	// A cheap, independent-enough second hash: xxhash over the same
	// bytes plus a trailing sentinel, avoiding a second hash library for
	// what is always used as a Bloom double-hash input (spec.md §4.2).
	h2 = xxhash.Sum64String(s + "\x00fabric-bloom")
	if h2 == 0 {
		h2 = 1
	}
	return
}

// Add sets the k bits derived from s.
func (b *Bloom) Add(s string) {
	h1, h2 := b.hashes(s)
	for i := uint64(0); i < b.k; i++ {
		bit := (h1 + i*h2) % b.m
		b.bits[bit/64] |= 1 << (bit % 64)
	}
}

// MightContain tests the k bits derived from s. false is authoritative
// ("definitely absent"); true means "maybe present".
func (b *Bloom) MightContain(s string) bool {
	h1, h2 := b.hashes(s)
	for i := uint64(0); i < b.k; i++ {
		bit := (h1 + i*h2) % b.m
		if b.bits[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}
