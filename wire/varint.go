// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire implements the binary codec described in spec.md §4.2:
// base-128 varints, a Bloom-filter-accelerated string intern pool, and
// the framed wire message format.
package wire

import "github.com/agentmesh/fabric/errs"

const (
	maxVarint32Bytes = 5
	maxVarint64Bytes = 10
	continuationBit  = 0x80
	payloadMask      = 0x7f
)

// AppendVarint appends the base-128 little-endian encoding of v (§4.2) to
// buf and returns the extended slice.
func AppendVarint(buf []byte, v uint64) []byte {
	for v >= continuationBit {
		buf = append(buf, byte(v)|continuationBit)
		v >>= 7
	}
	return append(buf, byte(v))
}

// AppendVarint32 appends a 32-bit value as a varint (at most 5 bytes).
func AppendVarint32(buf []byte, v uint32) []byte {
	return AppendVarint(buf, uint64(v))
}

// ReadVarint decodes a varint from buf, returning the value, the number
// of bytes consumed, and an error. Decoding rejects sequences longer than
// 10 bytes (the 64-bit maximum) with ErrVarintOverflow, and never
// consumes bytes past the failing field.
func ReadVarint(buf []byte) (uint64, int, error) {
	var v uint64
	for i := 0; i < maxVarint64Bytes; i++ {
		if i >= len(buf) {
			return 0, 0, errs.Truncated
		}
		b := buf[i]
		v |= uint64(b&payloadMask) << (7 * i)
		if b&continuationBit == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, errs.VarintOverflow
}

// ReadVarint32 decodes a varint that must fit in 32 bits (at most 5
// encoded bytes), per spec.md §4.2.
func ReadVarint32(buf []byte) (uint32, int, error) {
	var v uint32
	for i := 0; i < maxVarint32Bytes; i++ {
		if i >= len(buf) {
			return 0, 0, errs.Truncated
		}
		b := buf[i]
		v |= uint32(b&payloadMask) << (7 * i)
		if b&continuationBit == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, errs.VarintOverflow
}

// SizeVarint reports the number of bytes AppendVarint would write for v.
func SizeVarint(v uint64) int {
	n := 1
	for v >= continuationBit {
		v >>= 7
		n++
	}
	return n
}
