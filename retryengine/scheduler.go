// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package retryengine

import (
	"container/heap"
	"sync"

	"github.com/agentmesh/fabric/clock"
)

// RetryItem is a pending redelivery, keyed by NextRetryInstant. It mirrors
// the root fabric.Message's redelivery-relevant fields structurally
// (rather than importing the root package, which would import this one).
type RetryItem struct {
	MessageId        uint64
	Destination      string
	Priority         uint8
	CorrelationId    uint64
	Payload          []byte
	RetryCount       uint8
	NextRetryInstant int64
	// CriticalBypass carries the originating EnqueueOptions.CriticalBypass
	// flag through redelivery, so BreakerQuery can let a bypass-tagged
	// item through an Open breaker the same way a fresh enqueue would.
	CriticalBypass bool
}

// RedeliverFunc re-enqueues item through the priority queue (spec.md §4.3,
// "preserving original priority and correlation id") and attempts
// delivery. An error means the attempt failed and the item should be
// rescheduled or exhausted.
type RedeliverFunc func(item RetryItem) error

// BreakerQuery reports whether item's destination breaker is Open (taking
// item.CriticalBypass into account), and if so the instant it next
// becomes eligible (its nextHalfOpen), per spec.md §4.5's "breaker Open
// reschedules without incrementing retryCount" rule.
type BreakerQuery func(item RetryItem) (open bool, nextHalfOpen int64)

// ExhaustedFunc is called once an item's RetryCount reaches
// cfg.MaxAttempts without a successful redelivery; the DLQ manager is the
// production implementation.
type ExhaustedFunc func(item RetryItem)

type retryHeap []RetryItem

func (h retryHeap) Len() int            { return len(h) }
func (h retryHeap) Less(i, j int) bool  { return h[i].NextRetryInstant < h[j].NextRetryInstant }
func (h retryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *retryHeap) Push(x any)         { *h = append(*h, x.(RetryItem)) }
func (h *retryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Engine is the single min-heap scheduler described in spec.md §4.5.
// Schedule and the Run loop communicate over a mutex-guarded heap; Run
// itself is meant to execute on exactly one goroutine, matching the
// spec's "a single scheduler thread" contract.
type Engine struct {
	cfg       Config
	clock     clock.Clock
	rng       clock.Rng
	redeliver RedeliverFunc
	breaker   BreakerQuery
	exhausted ExhaustedFunc

	mu   sync.Mutex
	heap retryHeap
	wake chan struct{}
}

// NewEngine builds an Engine. redeliver, breaker and exhausted are
// required ports; construction panics if any is nil, matching the
// teacher's preference for failing fast on a missing required dependency
// over panicking deep inside a hot path.
func NewEngine(cfg Config, clk clock.Clock, rng clock.Rng, redeliver RedeliverFunc, breaker BreakerQuery, exhausted ExhaustedFunc) *Engine {
	if redeliver == nil || breaker == nil || exhausted == nil {
		panic("retryengine: redeliver, breaker and exhausted must not be nil")
	}
	return &Engine{
		cfg:       cfg,
		clock:     clk,
		rng:       rng,
		redeliver: redeliver,
		breaker:   breaker,
		exhausted: exhausted,
		wake:      make(chan struct{}, 1),
	}
}

// Schedule enqueues item for a future redelivery attempt, computing
// NextRetryInstant from the backoff curve at item.RetryCount.
func (e *Engine) Schedule(item RetryItem) {
	delay := ComputeDelay(e.cfg, item.RetryCount, e.rng)
	item.NextRetryInstant = e.clock.Now() + int64(delay)
	e.push(item)
}

func (e *Engine) push(item RetryItem) {
	e.mu.Lock()
	heap.Push(&e.heap, item)
	e.mu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) popDue(now int64) (RetryItem, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.heap) == 0 || e.heap[0].NextRetryInstant > now {
		return RetryItem{}, false
	}
	return heap.Pop(&e.heap).(RetryItem), true
}

func (e *Engine) peekInstant() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.heap) == 0 {
		return 0, false
	}
	return e.heap[0].NextRetryInstant, true
}

// Run services the heap until stop is closed. It is meant to be launched
// once, in its own goroutine.
func (e *Engine) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		now := e.clock.Now()
		instant, ok := e.peekInstant()
		if !ok {
			select {
			case <-e.wake:
				continue
			case <-stop:
				return
			}
		}
		if instant > now {
			e.clock.SleepUntil(instant)
			continue
		}

		item, ok := e.popDue(now)
		if !ok {
			continue
		}
		e.attempt(item)
	}
}

func (e *Engine) attempt(item RetryItem) {
	if open, nextHalfOpen := e.breaker(item); open {
		item.NextRetryInstant = nextHalfOpen
		e.push(item)
		return
	}

	if err := e.redeliver(item); err != nil {
		item.RetryCount++
		if item.RetryCount >= e.cfg.MaxAttempts {
			e.exhausted(item)
			return
		}
		e.Schedule(item)
	}
}

// Len reports the number of pending retries, for metrics/tests.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.heap)
}
