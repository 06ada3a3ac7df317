// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"fmt"
	"time"
)

// AlertRules configures the threshold alert rules named in spec.md §4.9:
// high failure rate, high retry rate, long recovery time, poison rate.
type AlertRules struct {
	HighFailureRate   float64       `default:"0.5"`
	HighRetryRate     float64       `default:"0.3"`
	LongRecoveryTime  time.Duration `default:"30000000000"` // 30s
	HighPoisonRate    float64       `default:"0.1"`
}

// Alert is a fired alert rule, with a plain-text message suitable for a
// structured log field. Deliberately not pulling in dustin/go-humanize
// here: time.Duration.String() already covers every duration this
// subsystem formats (see DESIGN.md).
type Alert struct {
	Rule    string
	Message string
}

// Evaluate checks dest's current counters against rules and returns every
// alert that currently fires. requests/retries/poisoned are the raw
// counts behind the ratios being checked; recoveryElapsed is how long the
// destination has been unhealthy, if applicable (zero if healthy).
func (r *Registry) Evaluate(rules AlertRules, dest string, retries, poisoned uint64, recoveryElapsed time.Duration) []Alert {
	var alerts []Alert

	dc := r.destCounter(dest)
	requests := dc.requests.load()
	if requests == 0 {
		return alerts
	}

	if failureRate := float64(dc.failures.load()) / float64(requests); failureRate > rules.HighFailureRate {
		alerts = append(alerts, Alert{
			Rule:    "high_failure_rate",
			Message: fmt.Sprintf("destination %s failure rate %.2f exceeds threshold %.2f", dest, failureRate, rules.HighFailureRate),
		})
	}

	if retryRate := float64(retries) / float64(requests); retryRate > rules.HighRetryRate {
		alerts = append(alerts, Alert{
			Rule:    "high_retry_rate",
			Message: fmt.Sprintf("destination %s retry rate %.2f exceeds threshold %.2f", dest, retryRate, rules.HighRetryRate),
		})
	}

	if poisonRate := float64(poisoned) / float64(requests); poisonRate > rules.HighPoisonRate {
		alerts = append(alerts, Alert{
			Rule:    "high_poison_rate",
			Message: fmt.Sprintf("destination %s poison rate %.2f exceeds threshold %.2f", dest, poisonRate, rules.HighPoisonRate),
		})
	}

	if recoveryElapsed > rules.LongRecoveryTime {
		alerts = append(alerts, Alert{
			Rule:    "long_recovery_time",
			Message: fmt.Sprintf("destination %s has been recovering for %s, exceeding %s", dest, recoveryElapsed, rules.LongRecoveryTime),
		})
	}

	return alerts
}
