// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/fabric/wire"
)

func TestInternPoolSeededVocabulary(t *testing.T) {
	p := wire.NewInternPool(wire.InternPoolConfig{})
	for _, s := range wire.DefaultVocabulary {
		id, err := p.Intern(s)
		require.NoError(t, err)
		got, err := p.GetString(id)
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
}

func TestInternPoolDynamicRoundTrip(t *testing.T) {
	p := wire.NewInternPool(wire.InternPoolConfig{})
	id1, err := p.Intern("agent-7")
	require.NoError(t, err)
	id2, err := p.Intern("agent-7")
	require.NoError(t, err)
	require.Equal(t, id1, id2, "interning the same string twice must yield the same id")

	s, err := p.GetString(id1)
	require.NoError(t, err)
	require.Equal(t, "agent-7", s)
}

func TestInternPoolUnknownId(t *testing.T) {
	p := wire.NewInternPool(wire.InternPoolConfig{})
	_, err := p.GetString(999999)
	require.Error(t, err)
}

func TestInternPoolExhaustion(t *testing.T) {
	p := wire.NewInternPool(wire.InternPoolConfig{MaxIds: 2})
	_, err := p.Intern("a")
	require.NoError(t, err)
	_, err = p.Intern("b")
	require.NoError(t, err)
	_, err = p.Intern("c")
	require.Error(t, err)
}

func TestInternPoolManyDistinctStrings(t *testing.T) {
	p := wire.NewInternPool(wire.InternPoolConfig{ExpectedItems: 256})
	ids := make(map[uint32]string)
	for i := 0; i < 256; i++ {
		s := fmt.Sprintf("dest-%d", i)
		id, err := p.Intern(s)
		require.NoError(t, err)
		ids[id] = s
	}
	for id, s := range ids {
		got, err := p.GetString(id)
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
}
