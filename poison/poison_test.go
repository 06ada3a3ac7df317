// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package poison_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/fabric/clock"
	"github.com/agentmesh/fabric/poison"
)

// TestPoisonQuarantineLifecycle exercises spec.md §8 scenario 5 literally:
// poisonThreshold=3, quarantinePeriod=3600000ms. After three failures of
// message id M, enqueue(M) is rejected for the next hour; after the hour,
// the first check succeeds.
func TestPoisonQuarantineLifecycle(t *testing.T) {
	clk := clock.NewManual()
	d := poison.NewDetector(poison.Config{
		PoisonThreshold:  3,
		QuarantinePeriod: 3600000,
	}, clk, nil)

	const id = uint64(42)
	someErr := errors.New("destination unavailable")

	require.False(t, d.IsQuarantined(id))
	require.False(t, d.CheckMessage(id, someErr))
	require.False(t, d.CheckMessage(id, someErr))
	require.True(t, d.CheckMessage(id, someErr))

	require.True(t, d.IsQuarantined(id))

	clk.Advance(3599999 * time.Millisecond)
	require.True(t, d.IsQuarantined(id))

	clk.Advance(1 * time.Millisecond)
	require.False(t, d.IsQuarantined(id))
}

func TestPoisonHeuristicFastPath(t *testing.T) {
	clk := clock.NewManual()
	always := func(error) bool { return true }
	d := poison.NewDetector(poison.Config{PoisonThreshold: 100, QuarantinePeriod: 1000}, clk, always)

	require.True(t, d.CheckMessage(7, errors.New("anything")))
	require.True(t, d.IsQuarantined(7))
}

func TestPoisonReleaseSweepsExpiredEntries(t *testing.T) {
	clk := clock.NewManual()
	d := poison.NewDetector(poison.Config{PoisonThreshold: 1, QuarantinePeriod: 1000}, clk, nil)

	d.CheckMessage(1, errors.New("x"))
	require.True(t, d.IsQuarantined(1))

	clk.Advance(1001 * time.Millisecond)
	d.Release()
	require.False(t, d.IsQuarantined(1))
}
