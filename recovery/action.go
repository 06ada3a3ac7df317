// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package recovery implements the recovery orchestrator described in
// spec.md §4.8: a failure-class -> RecoveryAction default table, a
// pending-actions map, and delegation to an external RecoveryExecutor.
package recovery

// ActionType is a recovery action kind, spec.md §3.
type ActionType uint8

const (
	ResetConnection ActionType = iota
	RestartDestination
	IncreaseTimeout
	ReduceLoad
	SwitchEndpoint
	QuarantineMessages
)

func (t ActionType) String() string {
	switch t {
	case ResetConnection:
		return "reset_connection"
	case RestartDestination:
		return "restart_destination"
	case IncreaseTimeout:
		return "increase_timeout"
	case ReduceLoad:
		return "reduce_load"
	case SwitchEndpoint:
		return "switch_endpoint"
	case QuarantineMessages:
		return "quarantine_messages"
	default:
		return "unknown"
	}
}

// Status is a RecoveryAction's lifecycle phase, spec.md §3. Transitions
// are monotonic: Pending -> InProgress -> {Completed, Failed, Cancelled}.
type Status uint8

const (
	Pending Status = iota
	InProgress
	Completed
	Failed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Action is a pending or in-flight recovery action, spec.md §3.
type Action struct {
	Id            uint64
	Type          ActionType
	Target        string
	ScheduledAt   int64
	Status        Status
	Parameters    map[string]string
	CreatedAt     int64
	CompletedAt   int64
}

// DefaultActionFor maps a failure class to its default recovery action
// type, per spec.md §4.8's default table. failureClass indices follow the
// root package's FailureClass enum (NetworkTimeout=0,
// DestinationUnavailable=1, Corruption=2, Decode=3, BreakerOpen=4,
// QuotaExceeded=5, Poison=6, Unknown=7).
func DefaultActionFor(failureClass int) ActionType {
	switch failureClass {
	case 0: // NetworkTimeout
		return IncreaseTimeout
	case 1: // DestinationUnavailable
		return RestartDestination
	case 4: // BreakerOpen
		return ResetConnection
	case 6: // Poison
		return QuarantineMessages
	default:
		return ResetConnection
	}
}
