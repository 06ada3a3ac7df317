// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package errs holds the sentinel errors shared between fabric/wire and
// the root fabric package. It exists purely to break the import cycle
// that would otherwise result from the root package re-exporting codec
// errors that fabric/wire must also return directly.
package errs

import "errors"

// Codec errors, spec.md §4.2/§7 ("Programmer input").
var (
	BadMagic        = errors.New("fabric/wire: bad magic byte")
	VersionMismatch = errors.New("fabric/wire: version mismatch")
	Truncated       = errors.New("fabric/wire: truncated frame")
	VarintOverflow  = errors.New("fabric/wire: varint overflow")
	UnknownInternId = errors.New("fabric/wire: unknown intern id")
	InvalidUtf8     = errors.New("fabric/wire: invalid utf8")
	InternPoolFull  = errors.New("fabric/wire: intern pool exhausted")
)
