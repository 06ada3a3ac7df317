// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	defaults "github.com/mcuadros/go-defaults"

	"github.com/agentmesh/fabric"
)

// fileConfig is the TOML-loadable override layer: a sparse mirror of
// fabric.Config's tunables, named after the CLI flags in spec.md §6
// (--arena-size, --priority-rings, --initial-retry-ms, --max-retry-ms,
// --max-attempts, --failure-threshold, --recovery-timeout-ms,
// --poison-threshold, --dlq-retention-ms, --alert-high-failure-rate).
// Zero-valued fields leave fabric.ApplyDefaults' value in place.
type fileConfig struct {
	ArenaSize            int     `toml:"arena_size"`
	SlotWidth            int     `toml:"slot_width"`
	AntiStarvationWindow int     `toml:"anti_starvation_window"`
	InitialRetryMs       int64   `toml:"initial_retry_ms"`
	MaxRetryMs           int64   `toml:"max_retry_ms"`
	MaxAttempts          int     `toml:"max_attempts"`
	FailureThreshold     int     `toml:"failure_threshold"`
	RecoveryTimeoutMs    int64   `toml:"recovery_timeout_ms"`
	PoisonThreshold      int     `toml:"poison_threshold"`
	DLQRetentionMs       int64   `toml:"dlq_retention_ms"`
	AlertHighFailureRate float64 `toml:"alert_high_failure_rate"`
}

// loadConfig builds a fabric.Config starting from go-defaults, then
// applies path's TOML overrides if path is non-empty. An empty path is
// not an error: the daemon runs on pure defaults.
func loadConfig(path string) (fabric.Config, error) {
	cfg := fabric.Config{}
	fabric.ApplyDefaults(&cfg)

	if path == "" {
		return cfg, nil
	}

	var fc fileConfig
	defaults.SetDefaults(&fc)
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("config file %q not found", path)
		}
		return cfg, fmt.Errorf("parsing %q: %w", path, err)
	}
	applyOverrides(&cfg, fc)
	return cfg, nil
}

func applyOverrides(cfg *fabric.Config, fc fileConfig) {
	if fc.ArenaSize > 0 {
		cfg.Arena.RingCapacity = fc.ArenaSize
	}
	if fc.SlotWidth > 0 {
		cfg.Arena.SlotWidth = fc.SlotWidth
	}
	if fc.AntiStarvationWindow > 0 {
		cfg.Arena.AntiStarvationWindow = fc.AntiStarvationWindow
	}
	if fc.InitialRetryMs > 0 {
		cfg.Retry.Initial = time.Duration(fc.InitialRetryMs) * time.Millisecond
	}
	if fc.MaxRetryMs > 0 {
		cfg.Retry.MaxDelay = time.Duration(fc.MaxRetryMs) * time.Millisecond
	}
	if fc.MaxAttempts > 0 {
		cfg.Retry.MaxAttempts = uint8(fc.MaxAttempts)
	}
	if fc.FailureThreshold > 0 {
		cfg.Breaker.FailureThreshold = fc.FailureThreshold
	}
	if fc.RecoveryTimeoutMs > 0 {
		cfg.Breaker.RecoveryTimeout = fc.RecoveryTimeoutMs
	}
	if fc.PoisonThreshold > 0 {
		cfg.Poison.PoisonThreshold = fc.PoisonThreshold
	}
	if fc.DLQRetentionMs > 0 {
		cfg.DLQ.RetentionPeriod = fc.DLQRetentionMs
	}
	if fc.AlertHighFailureRate > 0 {
		cfg.Alerts.HighFailureRate = fc.AlertHighFailureRate
	}
}
