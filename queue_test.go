// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/fabric"
	"github.com/agentmesh/fabric/clock"
)

func newTestQueue(t *testing.T, window int) *fabric.PriorityQueue {
	t.Helper()
	cfg := fabric.ArenaConfig{
		RingCapacity:         16,
		SlotWidth:            256,
		DLQCapacity:          16,
		DLQSlotWidth:         256,
		AntiStarvationWindow: window,
	}
	return fabric.NewPriorityQueue(cfg, clock.NewSystem(), nil)
}

// TestHappyPath is spec.md §8 scenario 1: enqueue 3 payloads at
// priorities Critical, Normal, Low in that order; dequeue 3 times;
// receive Critical, Normal, Low in exactly that order.
func TestHappyPath(t *testing.T) {
	q := newTestQueue(t, 64)

	_, err := q.Enqueue([]byte("critical"), fabric.Critical, fabric.EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.Enqueue([]byte("normal"), fabric.Normal, fabric.EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.Enqueue([]byte("low"), fabric.Low, fabric.EnqueueOptions{})
	require.NoError(t, err)

	for _, want := range []struct {
		payload  string
		priority fabric.Priority
	}{
		{"critical", fabric.Critical},
		{"normal", fabric.Normal},
		{"low", fabric.Low},
	} {
		m, err := q.Dequeue(time.Second, nil)
		require.NoError(t, err)
		require.Equal(t, want.payload, string(m.Payload))
		require.Equal(t, want.priority, m.Priority)
	}
}

// TestAntiStarvation is spec.md §8 scenario 2: with W=2, enqueue 10
// Critical followed by 1 Low; dequeue 3 times; expect Critical, Critical,
// Low.
func TestAntiStarvation(t *testing.T) {
	q := newTestQueue(t, 2)

	for i := 0; i < 10; i++ {
		_, err := q.Enqueue([]byte("critical"), fabric.Critical, fabric.EnqueueOptions{})
		require.NoError(t, err)
	}
	_, err := q.Enqueue([]byte("low"), fabric.Low, fabric.EnqueueOptions{})
	require.NoError(t, err)

	wantPriorities := []fabric.Priority{fabric.Critical, fabric.Critical, fabric.Low}
	for _, want := range wantPriorities {
		m, err := q.Dequeue(time.Second, nil)
		require.NoError(t, err)
		require.Equal(t, want, m.Priority)
	}
}

func TestDequeueTimeout(t *testing.T) {
	q := newTestQueue(t, 64)
	_, err := q.Dequeue(10*time.Millisecond, nil)
	require.ErrorIs(t, err, fabric.ErrTimedOut)
}

func TestDequeueCancellation(t *testing.T) {
	q := newTestQueue(t, 64)
	token := fabric.NewToken()
	token.Cancel()
	_, err := q.Dequeue(time.Second, token)
	require.ErrorIs(t, err, fabric.ErrCancelled)
}

func TestDequeueSurfacesExpiredAsEvent(t *testing.T) {
	events := make(chan fabric.Event, 4)
	cfg := fabric.ArenaConfig{RingCapacity: 8, SlotWidth: 256, DLQCapacity: 8, DLQSlotWidth: 256, AntiStarvationWindow: 64}
	clk := clock.NewManual()
	q := fabric.NewPriorityQueue(cfg, clk, events)

	past := clk.Now() - int64(time.Second)
	_, err := q.Enqueue([]byte("expired"), fabric.Normal, fabric.EnqueueOptions{Deadline: &past})
	require.NoError(t, err)
	_, err = q.Enqueue([]byte("fresh"), fabric.Normal, fabric.EnqueueOptions{})
	require.NoError(t, err)

	m, err := q.Dequeue(time.Second, nil)
	require.NoError(t, err)
	require.Equal(t, "fresh", string(m.Payload))

	select {
	case e := <-events:
		require.Equal(t, fabric.EventExpired, e.Kind)
		require.Equal(t, "expired", string(e.Message.Payload))
	default:
		t.Fatal("expected an Expired event")
	}
}

func TestEnqueueRejectsWhenRingFull(t *testing.T) {
	cfg := fabric.ArenaConfig{RingCapacity: 2, SlotWidth: 64, DLQCapacity: 2, DLQSlotWidth: 64, AntiStarvationWindow: 64}
	q := fabric.NewPriorityQueue(cfg, clock.NewSystem(), nil)

	_, err := q.Enqueue([]byte("a"), fabric.Critical, fabric.EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.Enqueue([]byte("b"), fabric.Critical, fabric.EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.Enqueue([]byte("c"), fabric.Critical, fabric.EnqueueOptions{})
	require.ErrorIs(t, err, fabric.ErrQueueFull)
}
