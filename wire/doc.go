// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire is the binary wire codec for fabric messages: varints,
// a Bloom-accelerated string intern pool, and the frame format that ties
// them together. See spec.md §4.2 for the on-wire layout this package
// implements.
package wire
