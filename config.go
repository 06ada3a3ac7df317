// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

import (
	"time"

	"github.com/mcuadros/go-defaults"

	"github.com/agentmesh/fabric/breaker"
	"github.com/agentmesh/fabric/dlq"
	"github.com/agentmesh/fabric/metrics"
	"github.com/agentmesh/fabric/poison"
	"github.com/agentmesh/fabric/recovery"
	"github.com/agentmesh/fabric/retryengine"
	"github.com/agentmesh/fabric/wire"
)

// Config aggregates every subsystem's tunables behind go-defaults tags,
// matching the CLI flag defaults named in spec.md §6
// (--arena-size, --priority-rings N, --initial-retry-ms, --max-retry-ms,
// --max-attempts, --failure-threshold, --recovery-timeout-ms,
// --poison-threshold, --dlq-retention-ms, --alert-high-failure-rate).
//
// There is deliberately no package-level default Config value: per
// spec.md §9's "no package-level mutable singletons" note, New(cfg, deps)
// is the only construction path, and a caller who wants defaults gets
// them by passing a zero Config through [ApplyDefaults].
type Config struct {
	Arena    ArenaConfig
	Breaker  breaker.Config
	Retry    retryengine.Config
	DLQ      dlq.Config
	Poison   poison.Config
	Recovery recovery.Config
	Alerts   metrics.AlertRules
	Intern   wire.InternPoolConfig

	// MaxLatencyNs bounds metrics.Histogram's top bucket (spec.md §4.9:
	// "10 ns ... maxLatency").
	MaxLatencyNs int64 `default:"60000000000"` // 60s
	// SweepInterval paces the background retention/release/reap sweep.
	SweepInterval time.Duration `default:"60000000000"` // 60s
	// EventBufferSize sizes the Mesh's event channel.
	EventBufferSize int `default:"256"`
}

// ApplyDefaults fills every zero-valued field of cfg (and its embedded
// subsystem configs) from its `default` struct tags, using the same
// library the hosting binary's own flag defaults come from
// (github.com/mcuadros/go-defaults), so the two never drift apart.
func ApplyDefaults(cfg *Config) {
	defaults.SetDefaults(cfg)
}
