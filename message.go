// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

import (
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Priority is the delivery class of a message. Lower values are served
// first; within a class, delivery is FIFO by enqueue timestamp then by
// MessageId.
type Priority uint8

const (
	Critical Priority = iota
	High
	Normal
	Low
	Batch

	numPriorities = int(Batch) + 1
)

// String implements fmt.Stringer.
func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Normal:
		return "normal"
	case Low:
		return "low"
	case Batch:
		return "batch"
	default:
		return "unknown"
	}
}

// FailureClass categorizes why a message delivery failed.
type FailureClass uint8

const (
	NetworkTimeout FailureClass = iota
	DestinationUnavailable
	Corruption
	Decode
	BreakerOpen
	QuotaExceeded
	Poison
	Unknown

	numFailureClasses = int(Unknown) + 1
)

// String implements fmt.Stringer.
func (c FailureClass) String() string {
	switch c {
	case NetworkTimeout:
		return "network_timeout"
	case DestinationUnavailable:
		return "destination_unavailable"
	case Corruption:
		return "corruption"
	case Decode:
		return "decode"
	case BreakerOpen:
		return "breaker_open"
	case QuotaExceeded:
		return "quota_exceeded"
	case Poison:
		return "poison"
	default:
		return "unknown"
	}
}

// MessageId is a monotonic, process-unique message identifier.
type MessageId uint64

// DestinationId names a delivery target for breaker/DLQ/recovery bookkeeping.
type DestinationId string

// CorrelationId is an opaque caller-supplied value correlating related
// messages across retries and failure reports. See SPEC_FULL.md §3 for why
// this is a uint64 rather than the spec's "u128" shorthand.
type CorrelationId uint64

// CorrelationIdFromUUID folds a 128-bit uuid.UUID down to a CorrelationId
// at the API boundary, per SPEC_FULL.md §3: callers that already key
// correlated work off a uuid.UUID (as grafana-tempo's trace ids and
// foxcpp-maddy's message ids do) get a stable 64-bit value to carry
// through retries and failure reports instead of truncating the UUID.
func CorrelationIdFromUUID(id uuid.UUID) CorrelationId {
	return CorrelationId(xxhash.Sum64(id[:]))
}

// Instant is a count of nanoseconds on a clock.Clock's monotonic timeline.
// It is never wall-clock time; see clock.Clock.
type Instant = int64

// Message is the unit the fabric moves: an opaque payload plus the header
// fields described in spec.md §3.
type Message struct {
	Id            MessageId
	Payload       []byte
	Priority      Priority
	EnqueuedAt    Instant
	Deadline      *Instant
	RetryCount    uint8
	MaxRetries    uint8
	CorrelationId CorrelationId
	Size          int
}

// EnqueueOptions configures a single Enqueue call.
type EnqueueOptions struct {
	// Deadline, if set, is an absolute Instant after which the message is
	// surfaced as Expired on dequeue instead of delivered.
	Deadline *Instant
	// MaxRetries bounds retry-engine redelivery attempts for this message.
	MaxRetries uint8
	// CorrelationId threads a caller-supplied id through retries and
	// failure reports.
	CorrelationId CorrelationId
	// CriticalBypass is carried into this message's retry-engine
	// redeliveries, letting them through an Open circuit breaker; each such
	// bypassed redelivery increments the breaker's bypass-audit counter.
	// Enqueue itself consults no breaker and counts nothing for this flag.
	CriticalBypass bool
}

// DefaultMaxRetries is used when EnqueueOptions.MaxRetries is zero.
const DefaultMaxRetries = 5
