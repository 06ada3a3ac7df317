// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

import (
	"encoding/binary"
)

// envelope is the fixed-width header the priority queue prepends to a
// caller's payload before handing it to a ring slot. It carries exactly
// the Message bookkeeping fields spec.md §3 describes that the public
// wire frame (fabric/wire) does not: MessageId, deadline presence, retry
// accounting. The public wire frame remains the format callers use to
// encode structured payload content (spec.md §4.2); this envelope is an
// internal transport detail of the ring, not part of that protocol.
const envelopeWidth = 8 + 8 + 1 + 8 + 1 + 1 + 8 // id, enqueuedAt, hasDeadline, deadline, retryCount, maxRetries, correlationId

func encodeEnvelope(m *Message) []byte {
	buf := make([]byte, envelopeWidth+len(m.Payload))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(m.Id))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(m.EnqueuedAt))
	if m.Deadline != nil {
		buf[16] = 1
		binary.LittleEndian.PutUint64(buf[17:25], uint64(*m.Deadline))
	}
	buf[25] = m.RetryCount
	buf[26] = m.MaxRetries
	binary.LittleEndian.PutUint64(buf[27:35], uint64(m.CorrelationId))
	copy(buf[envelopeWidth:], m.Payload)
	return buf
}

func decodeEnvelope(buf []byte, priority Priority) (Message, error) {
	if len(buf) < envelopeWidth {
		return Message{}, ErrTruncated
	}
	m := Message{
		Id:            MessageId(binary.LittleEndian.Uint64(buf[0:8])),
		EnqueuedAt:    int64(binary.LittleEndian.Uint64(buf[8:16])),
		RetryCount:    buf[25],
		MaxRetries:    buf[26],
		CorrelationId: CorrelationId(binary.LittleEndian.Uint64(buf[27:35])),
		Priority:      priority,
	}
	if buf[16] == 1 {
		d := int64(binary.LittleEndian.Uint64(buf[17:25]))
		m.Deadline = &d
	}
	payload := make([]byte, len(buf)-envelopeWidth)
	copy(payload, buf[envelopeWidth:])
	m.Payload = payload
	m.Size = len(payload)
	return m, nil
}
