// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"math"

	"code.hybscloud.com/atomix"
)

const minBucketNs = 10 // spec.md §4.9: "logarithmic buckets 10 ns ... maxLatency"

// Histogram is a rolling logarithmic-bucket latency histogram, base-2
// from minBucketNs up to maxLatencyNs; the final bucket is an overflow
// catch-all for anything at or above maxLatencyNs.
type Histogram struct {
	maxLatencyNs int64
	bucketCount  int
	buckets      []atomix.Uint64
	count        atomix.Uint64
	sum          atomix.Uint64
}

// NewHistogram builds a histogram covering [minBucketNs, maxLatencyNs].
func NewHistogram(maxLatencyNs int64) *Histogram {
	n := int(math.Ceil(math.Log2(float64(maxLatencyNs)/float64(minBucketNs)))) + 1
	if n < 1 {
		n = 1
	}
	return &Histogram{
		maxLatencyNs: maxLatencyNs,
		bucketCount:  n,
		buckets:      make([]atomix.Uint64, n+1), // +1 overflow bucket
	}
}

func (h *Histogram) bucketIndex(ns int64) int {
	if ns <= minBucketNs {
		return 0
	}
	if ns >= h.maxLatencyNs {
		return h.bucketCount
	}
	idx := int(math.Log2(float64(ns) / float64(minBucketNs)))
	if idx < 0 {
		idx = 0
	}
	if idx > h.bucketCount {
		idx = h.bucketCount
	}
	return idx
}

// Observe records one latency sample, in nanoseconds.
func (h *Histogram) Observe(ns int64) {
	idx := h.bucketIndex(ns)
	h.buckets[idx].AddAcqRel(1)
	h.count.AddAcqRel(1)
	if ns > 0 {
		h.sum.AddAcqRel(uint64(ns))
	}
}

// Count reports the total number of observations.
func (h *Histogram) Count() uint64 { return h.count.LoadAcquire() }

// Mean reports the arithmetic mean latency in nanoseconds, or 0 if no
// observations have been recorded.
func (h *Histogram) Mean() float64 {
	c := h.count.LoadAcquire()
	if c == 0 {
		return 0
	}
	return float64(h.sum.LoadAcquire()) / float64(c)
}

// BucketCounts returns a snapshot of per-bucket counts, index 0 holds
// samples below 2*minBucketNs and the last index is the maxLatencyNs+
// overflow bucket.
func (h *Histogram) BucketCounts() []uint64 {
	out := make([]uint64, len(h.buckets))
	for i := range h.buckets {
		out[i] = h.buckets[i].LoadAcquire()
	}
	return out
}
