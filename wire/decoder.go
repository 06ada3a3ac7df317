// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/agentmesh/fabric/errs"
)

// Decoder parses frames against a shared [InternPool]. A Decoder never
// advances its cursor past a field that failed to decode: callers that
// retry after fixing up buf (e.g. after more bytes arrive) can re-decode
// from the same offset. Not safe for concurrent use.
type Decoder struct {
	pool *InternPool
}

// NewDecoder returns a Decoder resolving interned strings against pool.
func NewDecoder(pool *InternPool) *Decoder {
	return &Decoder{pool: pool}
}

// DecodeHeader parses buf's fixed-width preamble and returns the header
// plus the number of bytes consumed. The payload, if any, follows at
// buf[n:n+h.PayloadLen].
func (d *Decoder) DecodeHeader(buf []byte) (Header, int, error) {
	if len(buf) < headerPrefixWidth {
		return Header{}, 0, errs.Truncated
	}
	if buf[0] != magicByte {
		return Header{}, 0, errs.BadMagic
	}
	if buf[1] != wireVersion {
		return Header{}, 0, errs.VersionMismatch
	}
	h := Header{Type: FrameType(buf[2])}
	flags := buf[3]
	h.HasCorrelation = flags&flagHasCorrelationId != 0
	off := headerPrefixWidth

	payloadLen, n, err := ReadVarint(buf[off:])
	if err != nil {
		return Header{}, 0, err
	}
	off += n
	h.PayloadLen = int(payloadLen)

	if len(buf) < off+timestampWidth {
		return Header{}, 0, errs.Truncated
	}
	h.Timestamp = int64(binary.LittleEndian.Uint64(buf[off : off+timestampWidth]))
	off += timestampWidth

	if h.HasCorrelation {
		if len(buf) < off+correlationWidth {
			return Header{}, 0, errs.Truncated
		}
		h.CorrelationId = binary.LittleEndian.Uint64(buf[off : off+correlationWidth])
		off += correlationWidth
	}

	if len(buf) < off+h.PayloadLen {
		return Header{}, 0, errs.Truncated
	}

	return h, off, nil
}

// ReadString decodes a string field at the head of buf (either an interned
// id or an inline UTF-8 run, per spec.md §4.2), returning it, the bytes
// consumed, and an error. The returned string is always owned: the inline
// path copies buf's bytes (Go's string conversion does this implicitly),
// and the interned path returns a string owned by the pool.
func (d *Decoder) ReadString(buf []byte) (string, int, error) {
	if len(buf) == 0 {
		return "", 0, errs.Truncated
	}

	if buf[0] == internMarkerByte {
		id, n, err := ReadVarint32(buf[1:])
		if err != nil {
			return "", 0, err
		}
		if d.pool == nil {
			return "", 0, errs.UnknownInternId
		}
		s, err := d.pool.GetString(id)
		if err != nil {
			return "", 0, err
		}
		return s, 1 + n, nil
	}

	strLen64, n, err := ReadVarint(buf)
	if err != nil {
		return "", 0, err
	}
	strLen := int(strLen64)
	if len(buf) < n+strLen {
		return "", 0, errs.Truncated
	}
	raw := buf[n : n+strLen]
	if !utf8.Valid(raw) {
		return "", 0, errs.InvalidUtf8
	}
	return string(raw), n + strLen, nil
}
