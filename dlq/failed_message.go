// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dlq implements the dead-letter queue manager described in
// spec.md §4.6: one ring per failure class, an overflow policy that
// spills unexhausted retries through the MessageStore port, and a
// periodic retention sweep.
package dlq

// FailedMessage is the DLQ's unit of storage, spec.md §3/§4.6.
type FailedMessage struct {
	MessageId        uint64
	Payload          []byte
	Priority         uint8
	FailureClass     int
	FailureReason    string
	FailureTimestamp int64
	RetryCount       uint8
	MaxRetries       uint8
	NextRetry        int64
	Destination      string
	CorrelationId    uint64
	Metadata         map[string]string
}

// ExhaustedRetries reports whether f has no unexhausted retries left.
func (f FailedMessage) ExhaustedRetries() bool {
	return f.RetryCount >= f.MaxRetries
}
