// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

// Frame layout, spec.md §4.2:
//
//	byte 0       magic      0xCF
//	byte 1       version    wireVersion
//	byte 2       type       FrameType
//	byte 3       flags      bit 0: HasCorrelationId
//	varint       payload length
//	8 bytes      timestamp (little-endian int64 Instant)
//	8 bytes      correlation id (present iff flags bit 0 set)
//	payload      length bytes
const (
	magicByte  byte = 0xCF
	wireVersion byte = 1

	flagHasCorrelationId byte = 1 << 0

	headerPrefixWidth = 4 // magic, version, type, flags
	timestampWidth    = 8
	correlationWidth  = 8
)

// internMarkerByte, as a string field's first byte, says "what follows is
// a varint intern id, not an inline length-prefixed UTF-8 run" (§4.2).
const internMarkerByte byte = 0xFF

// FrameType identifies the payload's logical message kind (§3).
type FrameType uint8

const (
	FrameTask FrameType = iota
	FrameTaskRequest
	FrameTaskResult
	FrameEvent
	FrameHeartbeat
	FrameFailedMessage
)

func (t FrameType) String() string {
	switch t {
	case FrameTask:
		return "task"
	case FrameTaskRequest:
		return "task_request"
	case FrameTaskResult:
		return "task_result"
	case FrameEvent:
		return "event"
	case FrameHeartbeat:
		return "heartbeat"
	case FrameFailedMessage:
		return "failed_message"
	default:
		return "unknown"
	}
}

// Header is a frame's fixed-width preamble, decoded ahead of the payload.
type Header struct {
	Type            FrameType
	Timestamp       int64
	CorrelationId   uint64
	HasCorrelation  bool
	PayloadLen      int
}
