// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/fabric/metrics"
)

func TestRegistryFailureRate(t *testing.T) {
	r := metrics.NewRegistry(int64(5 * time.Minute))
	r.RecordSuccess("svc", 100)
	r.RecordFailure(0, "svc")
	r.RecordFailure(0, "svc")

	require.InDelta(t, 2.0/3.0, r.FailureRate("svc"), 1e-9)
}

func TestRegistryCriticalBypassAndDLQDropped(t *testing.T) {
	r := metrics.NewRegistry(int64(time.Minute))
	r.IncCriticalBypass()
	r.IncCriticalBypass()
	r.IncDLQDropped()

	require.Equal(t, uint64(2), r.CriticalBypassCount())
	require.Equal(t, uint64(1), r.DLQDroppedCount())
}

func TestRegistryDegradedFlag(t *testing.T) {
	r := metrics.NewRegistry(int64(time.Minute))
	require.False(t, r.Degraded())
	r.SetDegraded(true)
	require.True(t, r.Degraded())
}

func TestHistogramObserveAndMean(t *testing.T) {
	h := metrics.NewHistogram(int64(5 * time.Minute))
	h.Observe(100)
	h.Observe(300)
	require.Equal(t, uint64(2), h.Count())
	require.InDelta(t, 200, h.Mean(), 1e-9)

	counts := h.BucketCounts()
	var total uint64
	for _, c := range counts {
		total += c
	}
	require.Equal(t, uint64(2), total)
}

func TestAlertHighFailureRate(t *testing.T) {
	r := metrics.NewRegistry(int64(time.Minute))
	for i := 0; i < 10; i++ {
		r.RecordFailure(0, "svc")
	}
	r.RecordSuccess("svc", 50)

	alerts := r.Evaluate(metrics.AlertRules{
		HighFailureRate:  0.5,
		HighRetryRate:    2, // never trips in this test
		HighPoisonRate:   2,
		LongRecoveryTime: time.Hour,
	}, "svc", 0, 0, 0)

	require.Len(t, alerts, 1)
	require.Equal(t, "high_failure_rate", alerts[0].Rule)
}

func TestAlertHighPoisonRate(t *testing.T) {
	r := metrics.NewRegistry(int64(time.Minute))
	r.RecordSuccess("svc", 50)
	r.RecordPoison("svc")
	require.Equal(t, uint64(1), r.PoisonedCount("svc"))

	alerts := r.Evaluate(metrics.AlertRules{
		HighFailureRate:  2, // never trips in this test
		HighRetryRate:    2,
		HighPoisonRate:   0.5,
		LongRecoveryTime: time.Hour,
	}, "svc", 0, r.PoisonedCount("svc"), 0)

	require.Len(t, alerts, 1)
	require.Equal(t, "high_poison_rate", alerts[0].Rule)
}

func TestAlertLongRecoveryTime(t *testing.T) {
	r := metrics.NewRegistry(int64(time.Minute))
	r.RecordSuccess("svc", 50)

	alerts := r.Evaluate(metrics.AlertRules{
		HighFailureRate:  2,
		HighRetryRate:    2,
		HighPoisonRate:   2,
		LongRecoveryTime: time.Second,
	}, "svc", 0, 0, time.Minute)

	require.Len(t, alerts, 1)
	require.Equal(t, "long_recovery_time", alerts[0].Rule)
}
