// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package kvengine

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/jontk/jobstate/internal/keycodec"
	"github.com/jontk/jobstate/pkg/errors"
)

// ColumnFamily is the enum ordinal of a logical keyspace. The set is fixed
// at compile time; its ordinals become the 2-byte discriminator prepended to
// every physical key, so the order below must never change.
type ColumnFamily uint16

const (
	// CFJobs holds the primary JobRecord, keyed by jobKey.
	CFJobs ColumnFamily = iota
	// CFJobStates holds the JobState enum, keyed by jobKey.
	CFJobStates
	// CFJobActivatable indexes jobs offerable per type, keyed by (type, jobKey).
	CFJobActivatable
	// CFJobDeadlines indexes activation deadlines, keyed by (deadline, jobKey).
	CFJobDeadlines
	// CFJobBackoff indexes sleeping jobs, keyed by (recurringTime, jobKey).
	CFJobBackoff

	// numColumnFamilies is the fixed count of registered column families.
	numColumnFamilies
)

// AllColumnFamilies returns the complete, fixed enumeration of column
// families in ordinal order.
func AllColumnFamilies() []ColumnFamily {
	cfs := make([]ColumnFamily, numColumnFamilies)
	for i := range cfs {
		cfs[i] = ColumnFamily(i)
	}
	return cfs
}

func (cf ColumnFamily) String() string {
	switch cf {
	case CFJobs:
		return "JOBS"
	case CFJobStates:
		return "JOB_STATES"
	case CFJobActivatable:
		return "JOB_ACTIVATABLE"
	case CFJobDeadlines:
		return "JOB_DEADLINES"
	case CFJobBackoff:
		return "JOB_BACKOFF"
	default:
		return "UNKNOWN_CF"
	}
}

// prefix returns the 2-byte big-endian discriminator for cf.
func (cf ColumnFamily) prefix() []byte {
	return keycodec.AppendU16(make([]byte, 0, keycodec.U16Len), uint16(cf))
}

// physicalKey prepends cf's discriminator to key, producing the key as it
// actually sits in the engine's single flat keyspace.
func (cf ColumnFamily) physicalKey(key []byte) []byte {
	buf := make([]byte, 0, keycodec.U16Len+len(key))
	buf = append(buf, cf.prefix()...)
	buf = append(buf, key...)
	return buf
}

// Handle is a typed view over one column family, bound to an active
// transaction. All operations implicitly operate within that transaction.
type Handle struct {
	cf  ColumnFamily
	txn *Txn
}

// Get performs a point lookup. ok is false when the key is absent.
func (h *Handle) Get(key []byte) (value []byte, ok bool, err error) {
	item, err := h.txn.badger.Get(h.cf.physicalKey(key))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WrapEngineError(err)
	}
	value, err = item.ValueCopy(nil)
	if err != nil {
		return nil, false, errors.WrapEngineError(err)
	}
	return value, true, nil
}

// Put upserts key/value.
func (h *Handle) Put(key, value []byte) error {
	if err := h.txn.badger.Set(h.cf.physicalKey(key), value); err != nil {
		return errors.WrapEngineError(err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (h *Handle) Delete(key []byte) error {
	if err := h.txn.badger.Delete(h.cf.physicalKey(key)); err != nil {
		return errors.WrapEngineError(err)
	}
	return nil
}

// Exists reports whether key is present.
func (h *Handle) Exists(key []byte) (bool, error) {
	_, err := h.txn.badger.Get(h.cf.physicalKey(key))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, errors.WrapEngineError(err)
	}
	return true, nil
}

// Visitor is invoked once per (key, value) pair during a scan. key is the
// logical key with the column-family discriminator already stripped. Return
// false to stop the scan early.
type Visitor func(key, value []byte) (cont bool, err error)

// ScanPrefix enumerates all (k,v) whose logical key starts with prefix, in
// key order. The visitor may call Delete on the handle for the key it was
// just given; badger buffers same-transaction deletes in the pending-writes
// set, so the iterator (which reads from the immutable snapshot taken at
// iterator creation) is never invalidated by them.
func (h *Handle) ScanPrefix(prefix []byte, visit Visitor) error {
	physicalPrefix := h.cf.physicalKey(prefix)
	return h.scan(physicalPrefix, visit)
}

// ScanAll enumerates every (k,v) in the column family, in key order.
func (h *Handle) ScanAll(visit Visitor) error {
	return h.scan(h.cf.prefix(), visit)
}

func (h *Handle) scan(physicalPrefix []byte, visit Visitor) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = physicalPrefix
	it := h.txn.badger.NewIterator(opts)
	defer it.Close()

	discriminatorLen := len(h.cf.prefix())
	for it.Seek(physicalPrefix); it.ValidForPrefix(physicalPrefix); it.Next() {
		item := it.Item()
		physKey := item.KeyCopy(nil)
		value, err := item.ValueCopy(nil)
		if err != nil {
			return errors.WrapEngineError(err)
		}

		logicalKey := physKey[discriminatorLen:]
		cont, err := visit(logicalKey, value)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}
