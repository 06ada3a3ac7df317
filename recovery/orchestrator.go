// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recovery

import (
	"sync"

	"code.hybscloud.com/atomix"

	"github.com/agentmesh/fabric/clock"
)

// ExecuteResult is the outcome of running an Action through an external
// RecoveryExecutor, spec.md §6.
type ExecuteResult struct {
	Succeeded bool
	Err       error
}

// Executor is the external RecoveryExecutor port (spec.md §6):
// execute(RecoveryAction) -> result, run outside any core lock.
type Executor interface {
	Execute(action Action) ExecuteResult
}

// Config tunes the orchestrator.
type Config struct {
	ActionRetention int64 `default:"3600000"` // milliseconds; reap Completed actions older than this
}

// Orchestrator maps failures to recovery actions, tracks them in a
// pending-actions map, and delegates execution to an Executor. No
// callback is invoked while holding the orchestrator's lock, per spec.md
// §4's deadlock-avoidance ordering note.
type Orchestrator struct {
	cfg             Config
	actionRetention int64 // nanoseconds
	clock           clock.Clock
	executor        Executor

	nextId atomix.Uint64

	mu      sync.Mutex
	actions map[uint64]*Action
}

// NewOrchestrator builds an Orchestrator. executor must not be nil.
func NewOrchestrator(cfg Config, clk clock.Clock, executor Executor) *Orchestrator {
	if executor == nil {
		panic("recovery: executor must not be nil")
	}
	return &Orchestrator{
		cfg:             cfg,
		actionRetention: cfg.ActionRetention * 1_000_000,
		clock:           clk,
		executor:        executor,
		actions:         make(map[uint64]*Action),
	}
}

// Schedule creates a Pending Action for failureClass against target,
// using the default failure-class -> ActionType table, and returns it.
func (o *Orchestrator) Schedule(failureClass int, target string, params map[string]string) Action {
	now := o.clock.Now()
	id := o.nextId.AddAcqRel(1)
	a := Action{
		Id:          id,
		Type:        DefaultActionFor(failureClass),
		Target:      target,
		ScheduledAt: now,
		Status:      Pending,
		Parameters:  params,
		CreatedAt:   now,
	}

	o.mu.Lock()
	o.actions[id] = &a
	o.mu.Unlock()

	return a
}

// Run executes the Pending action with the given id through the
// Executor, transitioning Pending -> InProgress -> {Completed, Failed}.
// The Executor call happens without the orchestrator's lock held.
func (o *Orchestrator) Run(id uint64) (Action, bool) {
	o.mu.Lock()
	a, ok := o.actions[id]
	if !ok || a.Status != Pending {
		o.mu.Unlock()
		if !ok {
			return Action{}, false
		}
		return *a, false
	}
	a.Status = InProgress
	snapshot := *a
	o.mu.Unlock()

	result := o.executor.Execute(snapshot)

	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok = o.actions[id]
	if !ok {
		return Action{}, false
	}
	a.CompletedAt = o.clock.Now()
	if result.Succeeded {
		a.Status = Completed
	} else {
		a.Status = Failed
	}
	return *a, true
}

// Cancel transitions a Pending or InProgress action to Cancelled.
func (o *Orchestrator) Cancel(id uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.actions[id]
	if !ok || a.Status == Completed || a.Status == Failed || a.Status == Cancelled {
		return false
	}
	a.Status = Cancelled
	a.CompletedAt = o.clock.Now()
	return true
}

// Get returns a copy of the action with id, if known.
func (o *Orchestrator) Get(id uint64) (Action, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.actions[id]
	if !ok {
		return Action{}, false
	}
	return *a, true
}

// Reap removes Completed actions whose CompletedAt is older than
// cfg.ActionRetention, per spec.md §4.8.
func (o *Orchestrator) Reap() {
	now := o.clock.Now()
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, a := range o.actions {
		if a.Status == Completed && now-a.CompletedAt >= o.actionRetention {
			delete(o.actions, id)
		}
	}
}

// Len reports the number of tracked actions, for tests.
func (o *Orchestrator) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.actions)
}
