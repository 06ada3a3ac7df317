// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/fabric/wire"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40, ^uint64(0)}
	for _, v := range values {
		buf := wire.AppendVarint(nil, v)
		require.Equal(t, wire.SizeVarint(v), len(buf))
		got, n, err := wire.ReadVarint(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}

func TestVarint32RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 1 << 20, ^uint32(0)}
	for _, v := range values {
		buf := wire.AppendVarint32(nil, v)
		got, n, err := wire.ReadVarint32(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}

func TestReadVarintTruncated(t *testing.T) {
	_, _, err := wire.ReadVarint([]byte{0x80, 0x80})
	require.Error(t, err)
}

func TestReadVarintOverflow(t *testing.T) {
	overflow := make([]byte, 11)
	for i := range overflow {
		overflow[i] = 0x80
	}
	overflow[len(overflow)-1] = 0x01
	_, _, err := wire.ReadVarint(overflow)
	require.Error(t, err)
}

func TestReadVarint32OverflowBytes(t *testing.T) {
	overflow := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	_, _, err := wire.ReadVarint32(overflow)
	require.Error(t, err)
}
