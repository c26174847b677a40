// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package kvengine

import "github.com/dgraph-io/badger/v4"

// Txn wraps a single badger transaction and hands out column-family-scoped
// handles over it. A Txn is not safe for concurrent use; per spec.md §5, a
// partition has exactly one command-processing owner of its transaction at
// a time.
type Txn struct {
	badger *badger.Txn
}

// Handle returns a typed view over cf, bound to this transaction.
func (t *Txn) Handle(cf ColumnFamily) *Handle {
	return &Handle{cf: cf, txn: t}
}
