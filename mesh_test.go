// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/fabric"
	"github.com/agentmesh/fabric/clock"
	"github.com/agentmesh/fabric/recovery"
	"github.com/agentmesh/fabric/store"
)

type noopExecutor struct{}

func (noopExecutor) Execute(recovery.Action) recovery.ExecuteResult {
	return recovery.ExecuteResult{Succeeded: true}
}

// countingExecutor records how many recovery actions it actually ran, so
// tests can confirm ReportFailure drives Schedule through to Run rather
// than leaving actions stuck Pending.
type countingExecutor struct{ n atomic.Int64 }

func (c *countingExecutor) Execute(recovery.Action) recovery.ExecuteResult {
	c.n.Add(1)
	return recovery.ExecuteResult{Succeeded: true}
}

func newTestMeshWithExecutor(t *testing.T, executor recovery.Executor, mutate func(*fabric.Config)) (*fabric.Mesh, chan fabric.Event) {
	t.Helper()
	cfg := fabric.Config{}
	fabric.ApplyDefaults(&cfg)
	cfg.Arena = fabric.ArenaConfig{RingCapacity: 64, SlotWidth: 512, DLQCapacity: 16, DLQSlotWidth: 512, AntiStarvationWindow: 64}
	cfg.Retry.MaxAttempts = 3
	cfg.Poison.PoisonThreshold = 3
	cfg.Poison.QuarantinePeriod = 3_600_000
	cfg.SweepInterval = time.Hour
	if mutate != nil {
		mutate(&cfg)
	}

	events := make(chan fabric.Event, 32)
	m, err := fabric.New(cfg, fabric.Deps{
		Clock:    clock.NewSystem(),
		Store:    store.NewMemStore(),
		Executor: executor,
		Events:   events,
	})
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)
	return m, events
}

func newTestMesh(t *testing.T, mutate func(*fabric.Config)) (*fabric.Mesh, chan fabric.Event) {
	t.Helper()
	return newTestMeshWithExecutor(t, noopExecutor{}, mutate)
}

func TestMeshEnqueueDequeueRoundTrip(t *testing.T) {
	m, _ := newTestMesh(t, nil)

	id, err := m.Enqueue([]byte("payload"), fabric.Critical, fabric.EnqueueOptions{})
	require.NoError(t, err)

	msg, err := m.Dequeue(time.Second, nil)
	require.NoError(t, err)
	require.Equal(t, id, msg.Id)
	require.Equal(t, "payload", string(msg.Payload))
}

func TestMeshReportFailureSchedulesRetryUntilExhausted(t *testing.T) {
	var permanent []fabric.Event
	m, events := newTestMesh(t, func(cfg *fabric.Config) {
		cfg.Retry.Initial = time.Millisecond
		cfg.Retry.MaxDelay = time.Millisecond
		cfg.Retry.MaxAttempts = 2
	})

	id, err := m.Enqueue([]byte("flaky"), fabric.Normal, fabric.EnqueueOptions{MaxRetries: 2})
	require.NoError(t, err)

	_, err = m.Dequeue(time.Second, nil)
	require.NoError(t, err)

	m.ReportFailure(id, "agent-1", fabric.NetworkTimeout, "timeout")

	redelivered, err := m.Dequeue(time.Second, nil)
	require.NoError(t, err)
	require.Equal(t, id, redelivered.Id)

	m.ReportFailure(id, "agent-1", fabric.NetworkTimeout, "timeout again")

	require.Eventually(t, func() bool {
		for {
			select {
			case e := <-events:
				if e.Kind == fabric.EventPermanentFailure {
					permanent = append(permanent, e)
				}
			default:
				return len(permanent) > 0
			}
		}
	}, time.Second, time.Millisecond)

	require.Equal(t, id, permanent[0].Message.Id)
}

func TestMeshReportSuccessClearsInFlight(t *testing.T) {
	m, _ := newTestMesh(t, nil)

	id, err := m.Enqueue([]byte("ok"), fabric.Normal, fabric.EnqueueOptions{})
	require.NoError(t, err)
	_, err = m.Dequeue(time.Second, nil)
	require.NoError(t, err)

	m.ReportSuccess(id, "agent-2")

	// A second report for the same id is a silent no-op (already cleared).
	m.ReportSuccess(id, "agent-2")
	require.Equal(t, int64(0), m.PendingCount())
}

func TestMeshBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	executor := &countingExecutor{}
	m, events := newTestMeshWithExecutor(t, executor, func(cfg *fabric.Config) {
		cfg.Breaker.FailureThreshold = 2
		cfg.Retry.MaxAttempts = 10
		cfg.Retry.Initial = time.Millisecond
		cfg.Retry.MaxDelay = time.Millisecond
	})

	var ids []fabric.MessageId
	for i := 0; i < 2; i++ {
		id, err := m.Enqueue([]byte("x"), fabric.Normal, fabric.EnqueueOptions{MaxRetries: 10})
		require.NoError(t, err)
		ids = append(ids, id)
		_, err = m.Dequeue(time.Second, nil)
		require.NoError(t, err)
	}

	for _, id := range ids {
		m.ReportFailure(id, "flaky-dest", fabric.NetworkTimeout, "down")
	}

	require.Eventually(t, func() bool {
		return m.Metrics().FailureRate("flaky-dest") > 0
	}, time.Second, time.Millisecond)

	// The second ReportFailure trips the breaker, which schedules and runs
	// a ResetConnection recovery action through the Executor port.
	require.Equal(t, int64(1), executor.n.Load())

	drained := 0
loop:
	for {
		select {
		case <-events:
		default:
			break loop
		}
		drained++
		if drained > 100 {
			break
		}
	}
}

// TestMeshPoisonQuarantine is spec.md §8 scenario 5 exercised through the
// full Mesh pipeline: a message reported failing poisonThreshold times is
// quarantined and its retries stop being redelivered.
func TestMeshPoisonQuarantine(t *testing.T) {
	m, events := newTestMesh(t, func(cfg *fabric.Config) {
		cfg.Poison.PoisonThreshold = 2
		cfg.Retry.Initial = time.Millisecond
		cfg.Retry.MaxDelay = time.Millisecond
		cfg.Retry.MaxAttempts = 10
	})

	id, err := m.Enqueue([]byte("poison"), fabric.Normal, fabric.EnqueueOptions{MaxRetries: 10})
	require.NoError(t, err)
	_, err = m.Dequeue(time.Second, nil)
	require.NoError(t, err)

	m.ReportFailure(id, "bad-dest", fabric.Corruption, "bad payload")
	_, err = m.Dequeue(100*time.Millisecond, nil)
	require.NoError(t, err)

	m.ReportFailure(id, "bad-dest", fabric.Corruption, "bad payload again")

	var sawPoisoned bool
	require.Eventually(t, func() bool {
		for {
			select {
			case e := <-events:
				if e.Kind == fabric.EventPoisoned {
					sawPoisoned = true
				}
			default:
				return sawPoisoned
			}
		}
	}, time.Second, time.Millisecond)

	// A fresh producer Enqueue that keys its CorrelationId off the now
	// quarantined message id is rejected on the public path too.
	_, err = m.Enqueue([]byte("resubmitted"), fabric.Normal, fabric.EnqueueOptions{CorrelationId: fabric.CorrelationId(id)})
	require.ErrorIs(t, err, fabric.ErrPoisoned)
}

// TestMeshHighPoisonRateAlertFires confirms ReportFailure feeds
// metrics.Registry.Evaluate a real per-destination poison count, so
// spec.md §4.9's high_poison_rate rule can actually fire through the
// wired Mesh instead of being permanently disabled by a hardcoded 0.
func TestMeshHighPoisonRateAlertFires(t *testing.T) {
	m, events := newTestMesh(t, func(cfg *fabric.Config) {
		cfg.Poison.PoisonThreshold = 2
		cfg.Alerts.HighPoisonRate = 0.01
		cfg.Alerts.HighFailureRate = 2 // never trips here
		cfg.Alerts.HighRetryRate = 2
	})

	id, err := m.Enqueue([]byte("bad"), fabric.Normal, fabric.EnqueueOptions{MaxRetries: 10})
	require.NoError(t, err)
	_, err = m.Dequeue(time.Second, nil)
	require.NoError(t, err)

	// Two failures of the same id reach the threshold of 2.
	m.ReportFailure(id, "poison-dest", fabric.Corruption, "bad payload")
	m.ReportFailure(id, "poison-dest", fabric.Corruption, "bad payload")

	var sawPoisoned bool
	require.Eventually(t, func() bool {
		for {
			select {
			case e := <-events:
				if e.Kind == fabric.EventPoisoned {
					sawPoisoned = true
				}
			default:
				return sawPoisoned
			}
		}
	}, time.Second, time.Millisecond)

	// A second message against the same destination has to fail (not be
	// quarantined itself) for ReportFailure to reach the Evaluate call
	// that now carries the real poison count.
	id2, err := m.Enqueue([]byte("also-bad"), fabric.Normal, fabric.EnqueueOptions{MaxRetries: 10})
	require.NoError(t, err)
	_, err = m.Dequeue(time.Second, nil)
	require.NoError(t, err)
	m.ReportFailure(id2, "poison-dest", fabric.NetworkTimeout, "unrelated failure")

	var gotAlert bool
	require.Eventually(t, func() bool {
		for {
			select {
			case e := <-events:
				if e.Kind == fabric.EventAlert && e.Alert().Rule == "high_poison_rate" {
					gotAlert = true
				}
			default:
				return gotAlert
			}
		}
	}, time.Second, time.Millisecond)
}

// TestMeshLongRecoveryTimeAlertFires confirms ReportFailure feeds
// metrics.Registry.Evaluate a real recoveryElapsed duration sourced from
// breaker.Manager, so spec.md §4.9's long_recovery_time rule can actually
// fire once a destination's breaker has been Open long enough.
func TestMeshLongRecoveryTimeAlertFires(t *testing.T) {
	clk := clock.NewManual()
	cfg := fabric.Config{}
	fabric.ApplyDefaults(&cfg)
	cfg.Arena = fabric.ArenaConfig{RingCapacity: 64, SlotWidth: 512, DLQCapacity: 16, DLQSlotWidth: 512, AntiStarvationWindow: 64}
	cfg.Retry.MaxAttempts = 10
	cfg.Retry.Initial = time.Millisecond
	cfg.Retry.MaxDelay = time.Millisecond
	cfg.Breaker.FailureThreshold = 1
	cfg.Breaker.RecoveryTimeout = 1000 // ms
	cfg.Alerts.LongRecoveryTime = 500 * time.Millisecond
	cfg.Alerts.HighFailureRate = 2
	cfg.Alerts.HighRetryRate = 2
	cfg.Alerts.HighPoisonRate = 2
	cfg.SweepInterval = time.Hour

	events := make(chan fabric.Event, 32)
	m, err := fabric.New(cfg, fabric.Deps{
		Clock:    clk,
		Store:    store.NewMemStore(),
		Executor: &countingExecutor{},
		Events:   events,
	})
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)

	id, err := m.Enqueue([]byte("x"), fabric.Normal, fabric.EnqueueOptions{MaxRetries: 10})
	require.NoError(t, err)
	_, err = m.Dequeue(time.Second, nil)
	require.NoError(t, err)
	m.ReportFailure(id, "slow-dest", fabric.NetworkTimeout, "down")

	clk.Advance(600 * time.Millisecond)

	id2, err := m.Enqueue([]byte("y"), fabric.Normal, fabric.EnqueueOptions{MaxRetries: 10})
	require.NoError(t, err)
	_, err = m.Dequeue(time.Second, nil)
	require.NoError(t, err)
	m.ReportFailure(id2, "slow-dest", fabric.NetworkTimeout, "still down")

	var gotAlert bool
	require.Eventually(t, func() bool {
		for {
			select {
			case e := <-events:
				if e.Kind == fabric.EventAlert && e.Alert().Rule == "long_recovery_time" {
					gotAlert = true
				}
			default:
				return gotAlert
			}
		}
	}, time.Second, time.Millisecond)
}
