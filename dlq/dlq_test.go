// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dlq_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/fabric/clock"
	"github.com/agentmesh/fabric/dlq"
	"github.com/agentmesh/fabric/store"
	"github.com/agentmesh/fabric/wire"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pool := wire.NewInternPool(wire.InternPoolConfig{})
	enc := wire.NewEncoder(pool)
	defer enc.Release()

	f := dlq.FailedMessage{
		MessageId:        99,
		Payload:          []byte("hello"),
		Priority:         1,
		FailureClass:     2,
		FailureReason:    "decode error",
		FailureTimestamp: 12345,
		RetryCount:       1,
		MaxRetries:       5,
		NextRetry:        67890,
		Destination:      "agent-1",
		CorrelationId:    555,
		Metadata:         map[string]string{"k": "v"},
	}

	frame := dlq.Encode(enc, f)

	dec := wire.NewDecoder(pool)
	got, err := dlq.Decode(dec, frame)
	require.NoError(t, err)
	require.Equal(t, f.MessageId, got.MessageId)
	require.Equal(t, f.Payload, got.Payload)
	require.Equal(t, f.FailureClass, got.FailureClass)
	require.Equal(t, f.FailureReason, got.FailureReason)
	require.Equal(t, f.FailureTimestamp, got.FailureTimestamp)
	require.Equal(t, f.RetryCount, got.RetryCount)
	require.Equal(t, f.NextRetry, got.NextRetry)
	require.Equal(t, f.Destination, got.Destination)
	require.Equal(t, f.CorrelationId, got.CorrelationId)
	require.Equal(t, f.Metadata, got.Metadata)
}

func TestManagerOverflowSpillsOldestWithUnexhaustedRetries(t *testing.T) {
	clk := clock.NewManual()
	st := store.NewMemStore()
	pool := wire.NewInternPool(wire.InternPoolConfig{})
	var dropped int
	m := dlq.NewManager(dlq.Config{ClassCapacity: 2, RetentionPeriod: 1000}, clk, st, pool, func() { dropped++ })

	mk := func(id uint64, retryCount uint8) dlq.FailedMessage {
		return dlq.FailedMessage{
			MessageId:        id,
			FailureClass:     0,
			FailureTimestamp: clk.Now(),
			RetryCount:       retryCount,
			MaxRetries:       5,
			Destination:      "dest",
		}
	}

	m.HandleFailure(mk(1, 0))
	m.HandleFailure(mk(2, 0))
	require.Equal(t, 2, m.Len())

	m.HandleFailure(mk(3, 1)) // evicts id 1, which has unexhausted retries
	require.Equal(t, 2, m.Len())

	_, err := st.Get(store.NamespaceFailedMessages, "1")
	require.NoError(t, err, "evicted entry with unexhausted retries must be spilled")
	require.Equal(t, 0, dropped)
}

func TestManagerRetentionSweep(t *testing.T) {
	clk := clock.NewManual()
	st := store.NewMemStore()
	pool := wire.NewInternPool(wire.InternPoolConfig{})
	m := dlq.NewManager(dlq.Config{ClassCapacity: 10, RetentionPeriod: 1000}, clk, st, pool, nil)

	m.HandleFailure(dlq.FailedMessage{MessageId: 1, FailureClass: 0, FailureTimestamp: clk.Now()})
	require.Equal(t, 1, m.Len())

	clk.Advance(1001 * time.Millisecond)
	m.RetentionSweep()
	require.Equal(t, 0, m.Len())
}

func TestManagerPermanentFailureSpillsAndRemoves(t *testing.T) {
	clk := clock.NewManual()
	st := store.NewMemStore()
	pool := wire.NewInternPool(wire.InternPoolConfig{})
	m := dlq.NewManager(dlq.Config{ClassCapacity: 10, RetentionPeriod: 1000}, clk, st, pool, nil)

	f := dlq.FailedMessage{MessageId: 5, FailureClass: 0, FailureTimestamp: clk.Now(), RetryCount: 5, MaxRetries: 5, Destination: "d"}
	m.HandleFailure(f)
	require.Equal(t, 1, m.Len())

	m.PermanentFailure(f, clk.Now())
	require.Equal(t, 0, m.Len())

	_, err := st.Get(store.NamespacePermanentFailure, "5")
	require.NoError(t, err)
}
