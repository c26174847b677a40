// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package jobstate

import (
	"github.com/jontk/jobstate/internal/jobrecord"
	"github.com/jontk/jobstate/internal/keycodec"
	"github.com/jontk/jobstate/internal/kvengine"
)

// ActivatableVisitor is invoked once per activatable job. Return false to
// stop iteration early.
type ActivatableVisitor func(key uint64, rec *jobrecord.Record) (cont bool, err error)

// ForEachActivatable visits (key, JobRecord) for every job of jobType
// currently in JOB_ACTIVATABLE, in key order, until visit returns false or
// the type's prefix is exhausted. A dangling activatable entry (no
// corresponding JOBS record — tolerated post-crash state) is deleted and
// logged rather than passed to visit; per spec.md §9 Open Question (b),
// this implementation resolves the documented asymmetry by repairing
// forEachActivatable the same way forEachTimedOut and findBackedOffJobs
// already do.
func (c *Core) ForEachActivatable(txn *kvengine.Txn, jobType []byte, visit ActivatableVisitor) error {
	normalized := jobrecord.NormalizeType(jobType)
	prefix := keycodec.AppendBytes(nil, normalized)

	return txn.Handle(kvengine.CFJobActivatable).ScanPrefix(prefix, func(key, _ []byte) (bool, error) {
		_, jobKey, err := keycodec.DecodeComposite(key)
		if err != nil {
			return false, err
		}

		rec, ok, err := c.GetJob(txn, jobKey)
		if err != nil {
			return false, err
		}
		if !ok {
			c.logger.Warn("dangling activatable index entry repaired",
				"job_key", jobKey, "job_type", string(normalized))
			return true, txn.Handle(kvengine.CFJobActivatable).Delete(key)
		}

		return visit(jobKey, rec)
	})
}

// TimedOutVisitor is invoked once per timed-out job. Return false to stop
// iteration early.
type TimedOutVisitor func(key uint64, rec *jobrecord.Record) (cont bool, err error)

// ForEachTimedOut walks JOB_DEADLINES in ascending (deadline, jobKey) order,
// visiting every entry whose deadline is strictly less than upperBound. It
// stops at visit returning false or at the first entry with
// deadline >= upperBound, whichever comes first. A dangling deadline entry
// (no corresponding JOBS record) is deleted and iteration continues without
// invoking visit.
func (c *Core) ForEachTimedOut(txn *kvengine.Txn, upperBound uint64, visit TimedOutVisitor) error {
	return txn.Handle(kvengine.CFJobDeadlines).ScanAll(func(key, _ []byte) (bool, error) {
		deadline, jobKey, err := keycodec.DecodeU64Pair(key)
		if err != nil {
			return false, err
		}
		if deadline >= upperBound {
			return false, nil
		}

		rec, ok, err := c.GetJob(txn, jobKey)
		if err != nil {
			return false, err
		}
		if !ok {
			c.logger.Warn("dangling deadline index entry repaired", "job_key", jobKey, "deadline", deadline)
			return true, txn.Handle(kvengine.CFJobDeadlines).Delete(key)
		}

		return visit(jobKey, rec)
	})
}

// BackoffPredicate is consulted for every backed-off job whose due time has
// arrived. Returning false pauses the scan.
type BackoffPredicate func(key uint64, rec *jobrecord.Record) (consumed bool, err error)

// FindBackedOffJobs scans JOB_BACKOFF in ascending due-time order. For each
// entry with dueTime <= now, it consults predicate; predicate may return
// false to pause the scan. It returns the due-time of the first unconsumed
// entry (the nearest future wake-up the caller should use as its next retry
// timer deadline), or -1 if every entry with dueTime <= now was consumed
// and none remain. A dangling backoff entry (no corresponding JOBS record)
// is deleted and iteration continues without invoking predicate.
func (c *Core) FindBackedOffJobs(txn *kvengine.Txn, now uint64, predicate BackoffPredicate) (int64, error) {
	nextDue := int64(-1)

	err := txn.Handle(kvengine.CFJobBackoff).ScanAll(func(key, _ []byte) (bool, error) {
		dueTime, jobKey, err := keycodec.DecodeU64Pair(key)
		if err != nil {
			return false, err
		}

		if dueTime > now {
			nextDue = int64(dueTime)
			return false, nil
		}

		rec, ok, err := c.GetJob(txn, jobKey)
		if err != nil {
			return false, err
		}
		if !ok {
			c.logger.Warn("dangling backoff index entry repaired", "job_key", jobKey, "due_time", dueTime)
			return true, txn.Handle(kvengine.CFJobBackoff).Delete(key)
		}

		consumed, err := predicate(jobKey, rec)
		if err != nil {
			return false, err
		}
		if !consumed {
			nextDue = int64(dueTime)
			return false, nil
		}

		return true, nil
	})
	if err != nil {
		return -1, err
	}

	return nextDue, nil
}
