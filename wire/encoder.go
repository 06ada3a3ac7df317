// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"sync"
	"unicode/utf8"

	"github.com/agentmesh/fabric/errs"
)

var bufferPool = sync.Pool{
	New: func() any { return make([]byte, 0, 512) },
}

func getBuffer() []byte  { return bufferPool.Get().([]byte)[:0] }
func putBuffer(b []byte) { bufferPool.Put(b) } //nolint:staticcheck // reused across calls, not retained by caller

// Encoder serializes frames against a shared [InternPool]. An Encoder is
// not safe for concurrent use; callers keep one per goroutine (or pull one
// from a [sync.Pool]), matching the teacher's per-goroutine scratch-buffer
// idiom.
type Encoder struct {
	pool *InternPool
	buf  []byte
}

// NewEncoder returns an Encoder backed by pool.
func NewEncoder(pool *InternPool) *Encoder {
	return &Encoder{pool: pool, buf: getBuffer()}
}

// Release returns the Encoder's scratch buffer to the shared pool. Callers
// must not use the Encoder after calling Release.
func (e *Encoder) Release() {
	putBuffer(e.buf)
	e.buf = nil
}

// Scratch returns the Encoder's pooled scratch buffer, reset to length
// zero, for use as the dst argument to EncodeFrame/WriteString. Using it
// avoids an allocation per frame on the hot send path; callers that don't
// care about that (tests, one-off encodes) can pass nil instead.
func (e *Encoder) Scratch() []byte {
	e.buf = e.buf[:0]
	return e.buf
}

// EncodeFrame appends a complete frame (header + payload) to dst and
// returns the extended slice.
func (e *Encoder) EncodeFrame(dst []byte, h Header, payload []byte) []byte {
	dst = append(dst, magicByte, wireVersion, byte(h.Type))
	flags := byte(0)
	if h.HasCorrelation {
		flags |= flagHasCorrelationId
	}
	dst = append(dst, flags)
	dst = AppendVarint(dst, uint64(len(payload)))

	var ts [timestampWidth]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(h.Timestamp))
	dst = append(dst, ts[:]...)

	if h.HasCorrelation {
		var cid [correlationWidth]byte
		binary.LittleEndian.PutUint64(cid[:], h.CorrelationId)
		dst = append(dst, cid[:]...)
	}

	return append(dst, payload...)
}

// WriteString appends s to dst either as an interned id (a single 0xFF
// marker byte followed by a varint intern id) or inline (varint length +
// UTF-8 bytes), per spec.md §4.2. Interning is attempted first; encoding
// falls back to inline form when the pool is exhausted (ErrInternPoolFull)
// so a single hot string never fails the whole frame.
func (e *Encoder) WriteString(dst []byte, s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return dst, errs.InvalidUtf8
	}

	if e.pool != nil {
		if id, err := e.pool.Intern(s); err == nil {
			dst = append(dst, internMarkerByte)
			return AppendVarint32(dst, id), nil
		}
	}

	dst = AppendVarint(dst, uint64(len(s)))
	return append(dst, s...), nil
}
