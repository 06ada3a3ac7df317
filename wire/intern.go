// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"sync"

	"github.com/agentmesh/fabric/errs"
)

// noInternId is the reserved "no string" id, per spec.md §3.
const noInternId = 0

// DefaultVocabulary is the fixed, pre-populated set of strings every
// InternPool seeds at construction (spec.md §3). These ids never require
// the pool's lock to resolve in either direction.
var DefaultVocabulary = []string{
	"critical", "high", "normal", "low", "batch",
	"network_timeout", "destination_unavailable", "corruption", "decode",
	"breaker_open", "quota_exceeded", "poison", "unknown",
	"task", "task_request", "task_result", "event", "heartbeat",
}

// InternPool maps strings to dense, monotonic ids and back, accelerated
// by a Bloom filter per spec.md §3/§4.2. ids start at 1; 0 is reserved.
type InternPool struct {
	seeded    map[string]uint32
	seededIds []string // index i holds the string for id i+1

	mu     sync.RWMutex
	byStr  map[string]uint32
	byId   []string // dynamic ids only; index 0 => id len(seededIds)+1
	bloom  *Bloom
	maxIds uint32
}

// InternPoolConfig sizes a new pool's Bloom filter and id-space bound.
type InternPoolConfig struct {
	ExpectedItems   int     `default:"1024"`
	FalsePositive   float64 `default:"0.01"`
	MaxIds          uint32  `default:"1000000"`
	SeedVocabulary  []string
}

// NewInternPool builds a pool seeded with cfg.SeedVocabulary (or
// DefaultVocabulary if nil).
func NewInternPool(cfg InternPoolConfig) *InternPool {
	vocab := cfg.SeedVocabulary
	if vocab == nil {
		vocab = DefaultVocabulary
	}
	if cfg.MaxIds == 0 {
		cfg.MaxIds = 1_000_000
	}
	p := &InternPool{
		seeded:    make(map[string]uint32, len(vocab)),
		seededIds: append([]string(nil), vocab...),
		byStr:     make(map[string]uint32),
		bloom:     NewBloom(cfg.ExpectedItems, cfg.FalsePositive),
		maxIds:    cfg.MaxIds,
	}
	for i, s := range vocab {
		p.seeded[s] = uint32(i + 1)
	}
	return p
}

// Intern returns s's id, allocating a new one if s has not been seen.
// Readers hitting the pre-seeded vocabulary never take the lock. Returns
// ErrInternPoolFull once MaxIds dynamic ids have been allocated; callers
// (fabric/wire's Encoder) fall back to inline string encoding in that
// case per spec.md §9's bounded-intern-pool design note.
func (p *InternPool) Intern(s string) (uint32, error) {
	if id, ok := p.seeded[s]; ok {
		return id, nil
	}

	// Fast path: Bloom says definitely absent, skip the map probe.
	p.mu.RLock()
	maybePresent := p.bloom.MightContain(s)
	p.mu.RUnlock()

	if !maybePresent {
		return p.insertLocked(s)
	}

	p.mu.RLock()
	id, ok := p.byStr[s]
	p.mu.RUnlock()
	if ok {
		return id, nil
	}
	return p.insertLocked(s)
}

func (p *InternPool) insertLocked(s string) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Re-check under the write lock: another goroutine may have raced us
	// between the RUnlock above and here.
	if id, ok := p.byStr[s]; ok {
		return id, nil
	}

	nextId := uint32(len(p.seededIds)) + uint32(len(p.byId)) + 1
	if nextId-uint32(len(p.seededIds)) > p.maxIds {
		return noInternId, errs.InternPoolFull
	}

	p.bloom.Add(s)
	p.byStr[s] = nextId
	p.byId = append(p.byId, s)
	return nextId, nil
}

// GetString resolves id back to its string, or ErrUnknownInternId.
func (p *InternPool) GetString(id uint32) (string, error) {
	if id == noInternId {
		return "", errs.UnknownInternId
	}
	if int(id) <= len(p.seededIds) {
		return p.seededIds[id-1], nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	idx := int(id) - len(p.seededIds) - 1
	if idx < 0 || idx >= len(p.byId) {
		return "", errs.UnknownInternId
	}
	return p.byId[idx], nil
}

// Len reports the number of ids currently allocated (seeded + dynamic).
func (p *InternPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.seededIds) + len(p.byId)
}
