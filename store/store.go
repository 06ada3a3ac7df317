// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store defines the narrow key/value MessageStore port used for
// DLQ overflow spill and failed-message introspection (spec.md §6). The
// core never talks to SQLite/Redis/etc directly; persistence is entirely
// the hosting application's concern.
package store

import "errors"

// ErrNotFound is returned by Get when key does not exist in namespace.
var ErrNotFound = errors.New("store: key not found")

// Namespaces used by the DLQ/poison/recovery subsystems, per spec.md §6.
const (
	NamespaceFailedMessages   = "failed-messages"
	NamespacePermanentFailure = "permanent-failures"
	NamespaceQuarantine       = "quarantine"
)

// MessageStore is a narrow key/value port: put/get/delete/iterate scoped
// by namespace. Keys are message ids (string); values are the
// FailedMessage wire serialization (spec.md §4.2), with an added
// finalFailureTime field for the permanent namespace.
type MessageStore interface {
	Put(namespace, key string, value []byte) error
	Get(namespace, key string) ([]byte, error)
	Delete(namespace, key string) error
	Iterate(namespace string) (iter func(yield func(key string, value []byte) bool), err error)
}
