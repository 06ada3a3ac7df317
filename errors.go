// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"

	"github.com/agentmesh/fabric/errs"
)

// Kind classifies an error per spec.md §7's taxonomy, so callers (and
// metrics) can group errors without string matching.
type Kind uint8

const (
	// KindTransientInput: surfaced to the caller, never logged as error.
	KindTransientInput Kind = iota
	// KindProgrammerInput: surfaced, counted in metrics, never poisons state.
	KindProgrammerInput
	// KindDownstreamFailure: feeds the DLQ/retry path.
	KindDownstreamFailure
	// KindPolicy: deflects without blaming the destination.
	KindPolicy
	// KindInfrastructure: escalates to the event channel; breaker may trip.
	KindInfrastructure
)

// fabricError pairs a sentinel condition with its Kind for classification.
// This extends the teacher's errors.go alias-to-iox pattern to the rest of
// spec.md §7's kinds (iox only models transient-input signals).
type fabricError struct {
	kind Kind
	msg  string
}

func (e *fabricError) Error() string { return e.msg }

func newErr(kind Kind, msg string) error { return &fabricError{kind: kind, msg: msg} }

// Transient input (spec.md §7).
var (
	// ErrWouldBlock is re-exported from iox for ecosystem consistency with
	// the teacher package, and is what the ring's hot path returns.
	ErrWouldBlock = iox.ErrWouldBlock
	// ErrQueueFull is returned by PriorityQueue.Enqueue when the target
	// priority ring rejects the message.
	ErrQueueFull = newErr(KindTransientInput, "fabric: queue full")
	// ErrCancelled is returned by a Dequeue call whose cancellation token
	// fired before a message or timeout arrived.
	ErrCancelled = newErr(KindTransientInput, "fabric: cancelled")
	// ErrTimedOut is returned by a Dequeue call whose timeout elapsed.
	ErrTimedOut = newErr(KindTransientInput, "fabric: timed out")
)

// Programmer input (spec.md §7) — wire codec failures. These alias
// fabric/errs's sentinels directly (rather than wrapping them in
// fabricError) so that errors.Is against a value returned by fabric/wire
// still matches here; KindOf falls back to KindProgrammerInput for them
// via the errors.Is checks in KindOf below.
var (
	ErrBadMagic        = errs.BadMagic
	ErrVersionMismatch = errs.VersionMismatch
	ErrTruncated       = errs.Truncated
	ErrVarintOverflow  = errs.VarintOverflow
	ErrUnknownInternId = errs.UnknownInternId
	ErrInvalidUtf8     = errs.InvalidUtf8
	ErrInternPoolFull  = errs.InternPoolFull
	ErrPayloadTooLarge = newErr(KindProgrammerInput, "fabric: payload exceeds ring slot width")
)

var programmerInputErrors = []error{
	errs.BadMagic, errs.VersionMismatch, errs.Truncated,
	errs.VarintOverflow, errs.UnknownInternId, errs.InvalidUtf8, errs.InternPoolFull,
}

// Downstream failure (spec.md §7) — feed the DLQ/retry path.
var (
	ErrDestinationUnavailable = newErr(KindDownstreamFailure, "fabric: destination unavailable")
	ErrNetworkTimeout         = newErr(KindDownstreamFailure, "fabric: network timeout")
	ErrQuotaExceeded          = newErr(KindDownstreamFailure, "fabric: quota exceeded")
)

// Policy (spec.md §7) — deflected, not blamed on the destination.
var (
	ErrBreakerOpen = newErr(KindPolicy, "fabric: circuit breaker open")
	ErrPoisoned    = newErr(KindPolicy, "fabric: message quarantined as poison")
)

// Infrastructure (spec.md §7) — fatal at the offending subsystem; the
// process continues with a Degraded flag visible in metrics.
var (
	ErrArenaCorruption  = newErr(KindInfrastructure, "fabric: arena corruption detected")
	ErrStorePortFailure = newErr(KindInfrastructure, "fabric: MessageStore port failure")
)

// ErrExpired is attached to the Expired event when a message's deadline
// has already passed at dequeue time.
var ErrExpired = newErr(KindTransientInput, "fabric: message deadline expired")

// KindOf reports the Kind of a fabric error, or KindInfrastructure for any
// error this package did not originate (fail safe toward "escalate").
func KindOf(err error) Kind {
	var fe *fabricError
	if errors.As(err, &fe) {
		return fe.kind
	}
	for _, pe := range programmerInputErrors {
		if errors.Is(err, pe) {
			return KindProgrammerInput
		}
	}
	if iox.IsWouldBlock(err) {
		return KindTransientInput
	}
	return KindInfrastructure
}

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// wrapf adds context to base while preserving errors.Is/As classification.
func wrapf(base error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), base)
}
