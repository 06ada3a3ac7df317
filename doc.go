// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fabric implements an in-process agent messaging fabric: a
// shared-memory priority queue over lock-free MPMC ring buffers, a
// binary wire codec with string interning and a Bloom-filter-accelerated
// intern pool, and a failure-recovery core (circuit breaker, retry
// engine, dead-letter queue, poison-message detector and recovery
// orchestrator) wired together behind a single Mesh facade.
//
// # Quick Start
//
//	cfg := fabric.Config{}
//	fabric.ApplyDefaults(&cfg)
//
//	events := make(chan fabric.Event, 256)
//	mesh, err := fabric.New(cfg, fabric.Deps{
//	    Executor: myRecoveryExecutor,
//	    Store:    store.NewMemStore(),
//	    Events:   events,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mesh.Shutdown()
//
//	id, err := mesh.Enqueue(payload, fabric.Critical, fabric.EnqueueOptions{})
//
//	msg, err := mesh.Dequeue(time.Second, nil)
//	if err := deliver(msg); err != nil {
//	    mesh.ReportFailure(msg.Id, "agent-7", fabric.NetworkTimeout, err.Error())
//	} else {
//	    mesh.ReportSuccess(msg.Id, "agent-7")
//	}
//
// # Priority and fairness
//
// Enqueue/Dequeue implement a K-way priority multi-queue: one ring per
// [Priority] class, dequeued in ascending order, with an anti-starvation
// window so a burst of Critical traffic cannot indefinitely lock out
// Low/Batch consumers. See [PriorityQueue] and the ring implementation in
// ring.go.
//
// # Failure handling
//
// ReportFailure drives the circuit breaker (fabric/breaker), the
// dead-letter queue (fabric/dlq), the poison-message detector
// (fabric/poison) and the recovery orchestrator (fabric/recovery); every
// delivery attempt also feeds fabric/metrics' per-destination counters
// and latency histogram. A message that exhausts its retry budget is
// spilled through the caller-supplied store.MessageStore port and
// surfaced as an EventPermanentFailure.
//
// # Wire format
//
// fabric/wire implements the binary frame format used to persist
// FailedMessages (and available to callers for their own payload
// encoding): a magic byte, a varint-length-prefixed body, and a string
// intern pool so repeated destination names and failure reasons cost a
// few bytes instead of their full UTF-8 length.
//
// # Construction and concurrency
//
// There is no package-level mutable state: [New] is the only
// construction path, and every collaborator (clock, randomness source,
// MessageStore, RecoveryExecutor, event sink) is supplied explicitly via
// [Deps]. A Mesh is safe for concurrent use by many producer goroutines,
// a consumer pool, and its own internally managed retry-scheduler and
// sweeper goroutines (stopped together by [Mesh.Shutdown]).
package fabric
