// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dlq

import (
	"github.com/agentmesh/fabric/errs"
	"github.com/agentmesh/fabric/wire"
)

// Encode serializes f as a FrameFailedMessage frame (spec.md §4.2/§4.6),
// using the frame header's Timestamp/CorrelationId fields for
// FailureTimestamp/CorrelationId.
func Encode(enc *wire.Encoder, f FailedMessage) []byte {
	var payload []byte
	payload, _ = enc.WriteString(payload, f.Destination)
	payload = wire.AppendVarint32(payload, uint32(f.FailureClass))
	payload, _ = enc.WriteString(payload, f.FailureReason)
	payload = append(payload, f.RetryCount, f.MaxRetries, f.Priority)
	payload = wire.AppendVarint(payload, uint64(f.NextRetry))
	payload = wire.AppendVarint(payload, f.MessageId)
	payload = wire.AppendVarint(payload, uint64(len(f.Payload)))
	payload = append(payload, f.Payload...)
	payload = wire.AppendVarint32(payload, uint32(len(f.Metadata)))
	for k, v := range f.Metadata {
		payload, _ = enc.WriteString(payload, k)
		payload, _ = enc.WriteString(payload, v)
	}

	h := wire.Header{
		Type:           wire.FrameFailedMessage,
		Timestamp:      f.FailureTimestamp,
		CorrelationId:  f.CorrelationId,
		HasCorrelation: true,
	}
	return enc.EncodeFrame(nil, h, payload)
}

// Decode reverses Encode.
func Decode(dec *wire.Decoder, frame []byte) (FailedMessage, error) {
	h, n, err := dec.DecodeHeader(frame)
	if err != nil {
		return FailedMessage{}, err
	}
	body := frame[n : n+h.PayloadLen]
	off := 0

	f := FailedMessage{
		FailureTimestamp: h.Timestamp,
		CorrelationId:    h.CorrelationId,
	}

	dest, n1, err := dec.ReadString(body[off:])
	if err != nil {
		return FailedMessage{}, err
	}
	f.Destination = dest
	off += n1

	class, n2, err := wire.ReadVarint32(body[off:])
	if err != nil {
		return FailedMessage{}, err
	}
	f.FailureClass = int(class)
	off += n2

	reason, n3, err := dec.ReadString(body[off:])
	if err != nil {
		return FailedMessage{}, err
	}
	f.FailureReason = reason
	off += n3

	if len(body) < off+3 {
		return FailedMessage{}, errs.Truncated
	}
	f.RetryCount = body[off]
	f.MaxRetries = body[off+1]
	f.Priority = body[off+2]
	off += 3

	nextRetry, n4, err := wire.ReadVarint(body[off:])
	if err != nil {
		return FailedMessage{}, err
	}
	f.NextRetry = int64(nextRetry)
	off += n4

	msgId, n5, err := wire.ReadVarint(body[off:])
	if err != nil {
		return FailedMessage{}, err
	}
	f.MessageId = msgId
	off += n5

	payloadLen, n6, err := wire.ReadVarint(body[off:])
	if err != nil {
		return FailedMessage{}, err
	}
	off += n6
	if len(body) < off+int(payloadLen) {
		return FailedMessage{}, errs.Truncated
	}
	f.Payload = append([]byte(nil), body[off:off+int(payloadLen)]...)
	off += int(payloadLen)

	metaCount, n7, err := wire.ReadVarint32(body[off:])
	if err != nil {
		return FailedMessage{}, err
	}
	off += n7

	if metaCount > 0 {
		f.Metadata = make(map[string]string, metaCount)
		for i := uint32(0); i < metaCount; i++ {
			k, nk, err := dec.ReadString(body[off:])
			if err != nil {
				return FailedMessage{}, err
			}
			off += nk
			v, nv, err := dec.ReadString(body[off:])
			if err != nil {
				return FailedMessage{}, err
			}
			off += nv
			f.Metadata[k] = v
		}
	}

	return f, nil
}

