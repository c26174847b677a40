// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package jobstate

import (
	"github.com/jontk/jobstate/internal/jobrecord"
	"github.com/jontk/jobstate/internal/kvengine"
	"github.com/jontk/jobstate/pkg/errors"
)

func validateType(rec *jobrecord.Record) error {
	if len(rec.TypeBuffer()) == 0 {
		return errors.NewInvalidArgument("job type must not be empty", "type", nil)
	}
	return nil
}

func validateDeadline(rec *jobrecord.Record) error {
	if rec.Deadline() == 0 {
		return errors.NewInvalidArgumentf("deadline", rec.Deadline(), "deadline must be positive, got %d", rec.Deadline())
	}
	return nil
}

// Create writes a brand-new job into ACTIVATABLE, per spec.md §4.4.
func (c *Core) Create(txn *kvengine.Txn, key uint64, rec *jobrecord.Record) error {
	if err := validateType(rec); err != nil {
		return err
	}

	current, err := c.GetState(txn, key)
	if err != nil {
		return err
	}
	if err := c.assertTransition("create", current, StateNotFound); err != nil {
		return err
	}

	if err := c.putJob(txn, key, rec); err != nil {
		return err
	}
	if err := c.setState(txn, key, StateActivatable); err != nil {
		return err
	}
	if err := txn.Handle(kvengine.CFJobActivatable).Put(activatableKey(rec.TypeBuffer(), key), nil); err != nil {
		return err
	}

	jobType := string(rec.TypeBuffer())
	c.collector.RecordCreated(c.partitionID, jobType)
	c.notifier.Notify(jobType)
	c.logger.Debug("job created", "job_key", key, "job_type", jobType)
	return nil
}

// Activate claims an ACTIVATABLE job, moving it to ACTIVATED and installing
// its deadline index entry.
func (c *Core) Activate(txn *kvengine.Txn, key uint64, rec *jobrecord.Record) error {
	if err := validateType(rec); err != nil {
		return err
	}
	if err := validateDeadline(rec); err != nil {
		return err
	}

	current, err := c.GetState(txn, key)
	if err != nil {
		return err
	}
	if err := c.assertTransition("activate", current, StateActivatable); err != nil {
		return err
	}

	if err := c.putJob(txn, key, rec); err != nil {
		return err
	}
	if err := c.setState(txn, key, StateActivated); err != nil {
		return err
	}
	if err := txn.Handle(kvengine.CFJobActivatable).Delete(activatableKey(rec.TypeBuffer(), key)); err != nil {
		return err
	}
	if err := txn.Handle(kvengine.CFJobDeadlines).Put(deadlineKey(rec.Deadline(), key), nil); err != nil {
		return err
	}

	jobType := string(rec.TypeBuffer())
	// Wait-time tracking would require a timestamped activatable index,
	// which spec.md §3's JOB_ACTIVATABLE membership-only entries do not
	// carry; record zero rather than invent a field the data model lacks.
	c.collector.RecordActivated(c.partitionID, jobType, 0)
	c.logger.Debug("job activated", "job_key", key, "job_type", jobType, "deadline", rec.Deadline())
	return nil
}

// Timeout restores an expired ACTIVATED job to ACTIVATABLE: equivalent to
// Create plus removal of the prior JOB_DEADLINES entry.
func (c *Core) Timeout(txn *kvengine.Txn, key uint64, rec *jobrecord.Record) error {
	if err := validateType(rec); err != nil {
		return err
	}
	if err := validateDeadline(rec); err != nil {
		return err
	}

	current, err := c.GetState(txn, key)
	if err != nil {
		return err
	}
	if err := c.assertTransition("timeout", current, StateNotFound, StateActivated); err != nil {
		return err
	}

	if err := c.putJob(txn, key, rec); err != nil {
		return err
	}
	if err := c.setState(txn, key, StateActivatable); err != nil {
		return err
	}
	if err := txn.Handle(kvengine.CFJobActivatable).Put(activatableKey(rec.TypeBuffer(), key), nil); err != nil {
		return err
	}
	if err := txn.Handle(kvengine.CFJobDeadlines).Delete(deadlineKey(rec.Deadline(), key)); err != nil {
		return err
	}

	jobType := string(rec.TypeBuffer())
	c.collector.RecordTimedOut(c.partitionID, jobType)
	// Deliberately not notified: spec.md §4.5 lists create, resolve,
	// recurAfterBackoff, and retry-with-no-backoff fail as the only
	// notifying transitions. A timed-out job was already indexed as
	// activatable before it was claimed; re-indexing it is not a "new"
	// activatable job from the notifier's point of view.
	c.logger.Debug("job timed out", "job_key", key, "job_type", jobType)
	return nil
}

// purge removes key from JOBS, JOB_STATES, and all three waiting-for
// indexes. Deleting an absent entry is never an error, so purge is
// naturally idempotent.
func (c *Core) purge(txn *kvengine.Txn, key uint64, rec *jobrecord.Record) error {
	if err := txn.Handle(kvengine.CFJobs).Delete(jobKeyBytes(key)); err != nil {
		return err
	}
	if err := txn.Handle(kvengine.CFJobStates).Delete(jobKeyBytes(key)); err != nil {
		return err
	}
	if len(rec.TypeBuffer()) > 0 {
		if err := txn.Handle(kvengine.CFJobActivatable).Delete(activatableKey(rec.TypeBuffer(), key)); err != nil {
			return err
		}
	}
	if rec.Deadline() > 0 {
		if err := txn.Handle(kvengine.CFJobDeadlines).Delete(deadlineKey(rec.Deadline(), key)); err != nil {
			return err
		}
	}
	if rec.RecurringTime() > 0 {
		// Not named in spec.md §4.4's purge row, but required to preserve
		// the mutual-exclusion invariant (§3 invariant 5) when a FAILED,
		// backed-off job is completed/cancelled/deleted directly.
		if err := txn.Handle(kvengine.CFJobBackoff).Delete(backoffKey(rec.RecurringTime(), key)); err != nil {
			return err
		}
	}
	return nil
}

// Complete purges a successfully finished job.
func (c *Core) Complete(txn *kvengine.Txn, key uint64, rec *jobrecord.Record) error {
	if err := c.purge(txn, key, rec); err != nil {
		return err
	}
	c.collector.RecordCompleted(c.partitionID, string(rec.TypeBuffer()))
	c.logger.Debug("job completed", "job_key", key)
	return nil
}

// Cancel purges a job cancelled by its owning workflow instance.
func (c *Core) Cancel(txn *kvengine.Txn, key uint64, rec *jobrecord.Record) error {
	if err := c.purge(txn, key, rec); err != nil {
		return err
	}
	c.logger.Debug("job cancelled", "job_key", key)
	return nil
}

// Delete purges a job unconditionally; valid from any state, including
// ABSENT (a no-op), per spec.md §4.4's state table ("any | delete | ABSENT").
func (c *Core) Delete(txn *kvengine.Txn, key uint64, rec *jobrecord.Record) error {
	if err := c.purge(txn, key, rec); err != nil {
		return err
	}
	c.logger.Debug("job deleted", "job_key", key)
	return nil
}

// Disable moves an ACTIVATABLE job to FAILED without a backoff schedule,
// removing it from the activatable index.
func (c *Core) Disable(txn *kvengine.Txn, key uint64, rec *jobrecord.Record) error {
	if err := validateType(rec); err != nil {
		return err
	}

	current, err := c.GetState(txn, key)
	if err != nil {
		return err
	}
	if err := c.assertTransition("disable", current, StateActivatable); err != nil {
		return err
	}

	if err := c.setState(txn, key, StateFailed); err != nil {
		return err
	}
	if err := txn.Handle(kvengine.CFJobActivatable).Delete(activatableKey(rec.TypeBuffer(), key)); err != nil {
		return err
	}

	c.collector.RecordFailed(c.partitionID, string(rec.TypeBuffer()), false)
	c.logger.Debug("job disabled", "job_key", key)
	return nil
}

// ThrowError moves an ACTIVATABLE job to ERROR_THROWN, removing it from the
// activatable index.
func (c *Core) ThrowError(txn *kvengine.Txn, key uint64, rec *jobrecord.Record) error {
	if err := validateType(rec); err != nil {
		return err
	}

	current, err := c.GetState(txn, key)
	if err != nil {
		return err
	}
	if err := c.assertTransition("throwError", current, StateActivatable); err != nil {
		return err
	}

	if err := c.setState(txn, key, StateErrorThrown); err != nil {
		return err
	}
	if err := txn.Handle(kvengine.CFJobActivatable).Delete(activatableKey(rec.TypeBuffer(), key)); err != nil {
		return err
	}

	c.collector.RecordFailed(c.partitionID, string(rec.TypeBuffer()), false)
	c.logger.Debug("job error thrown", "job_key", key)
	return nil
}

// Fail handles an ACTIVATED job's failure, routing it to FAILED-with-backoff,
// straight back to ACTIVATABLE, or plain FAILED depending on rec's retries
// and retryBackoff, per spec.md §4.4's Fail row. It always overwrites the
// record and removes any prior JOB_DEADLINES entry.
func (c *Core) Fail(txn *kvengine.Txn, key uint64, rec *jobrecord.Record) error {
	current, err := c.GetState(txn, key)
	if err != nil {
		return err
	}
	if err := c.assertTransition("fail", current, StateActivated); err != nil {
		return err
	}

	if err := c.putJob(txn, key, rec); err != nil {
		return err
	}
	if rec.Deadline() > 0 {
		if err := txn.Handle(kvengine.CFJobDeadlines).Delete(deadlineKey(rec.Deadline(), key)); err != nil {
			return err
		}
	}

	jobType := string(rec.TypeBuffer())
	switch {
	case rec.Retries() > 0 && rec.RetryBackoff() > 0:
		if err := c.setState(txn, key, StateFailed); err != nil {
			return err
		}
		if err := txn.Handle(kvengine.CFJobBackoff).Put(backoffKey(rec.RecurringTime(), key), nil); err != nil {
			return err
		}
		c.collector.RecordFailed(c.partitionID, jobType, true)
	case rec.Retries() > 0:
		if err := c.setState(txn, key, StateActivatable); err != nil {
			return err
		}
		if err := txn.Handle(kvengine.CFJobActivatable).Put(activatableKey(rec.TypeBuffer(), key), nil); err != nil {
			return err
		}
		c.notifier.Notify(jobType)
	default:
		if err := c.setState(txn, key, StateFailed); err != nil {
			return err
		}
		c.collector.RecordFailed(c.partitionID, jobType, false)
	}

	c.logger.Debug("job failed", "job_key", key, "job_type", jobType, "retries", rec.Retries())
	return nil
}

// Resolve moves a FAILED or ERROR_THROWN job back to ACTIVATABLE.
func (c *Core) Resolve(txn *kvengine.Txn, key uint64, rec *jobrecord.Record) error {
	if err := validateType(rec); err != nil {
		return err
	}

	current, err := c.GetState(txn, key)
	if err != nil {
		return err
	}
	if err := c.assertTransition("resolve", current, StateFailed, StateErrorThrown); err != nil {
		return err
	}

	if err := c.setState(txn, key, StateActivatable); err != nil {
		return err
	}
	if err := txn.Handle(kvengine.CFJobActivatable).Put(activatableKey(rec.TypeBuffer(), key), nil); err != nil {
		return err
	}

	jobType := string(rec.TypeBuffer())
	c.notifier.Notify(jobType)
	c.logger.Debug("job resolved", "job_key", key, "job_type", jobType)
	return nil
}

// RecurAfterBackoff wakes a FAILED, backed-off job back to ACTIVATABLE.
func (c *Core) RecurAfterBackoff(txn *kvengine.Txn, key uint64, rec *jobrecord.Record) error {
	if err := validateType(rec); err != nil {
		return err
	}

	current, err := c.GetState(txn, key)
	if err != nil {
		return err
	}
	if err := c.assertTransition("recurAfterBackoff", current, StateFailed); err != nil {
		return err
	}

	if err := c.setState(txn, key, StateActivatable); err != nil {
		return err
	}
	if err := txn.Handle(kvengine.CFJobActivatable).Put(activatableKey(rec.TypeBuffer(), key), nil); err != nil {
		return err
	}
	if err := txn.Handle(kvengine.CFJobBackoff).Delete(backoffKey(rec.RecurringTime(), key)); err != nil {
		return err
	}

	jobType := string(rec.TypeBuffer())
	c.notifier.Notify(jobType)
	c.logger.Debug("job recurred after backoff", "job_key", key, "job_type", jobType)
	return nil
}

// UpdateJobRetries sets key's retries field and rewrites its record,
// without driving the state machine — per spec.md §9 Open Question (a), a
// caller raising retries on a FAILED job must explicitly Resolve it
// afterward. Returns the updated record, or ok=false if key has no JOBS
// entry.
func (c *Core) UpdateJobRetries(txn *kvengine.Txn, key uint64, retries int32) (rec *jobrecord.Record, ok bool, err error) {
	existing, ok, err := c.GetJob(txn, key)
	if err != nil || !ok {
		return nil, ok, err
	}

	existing.SetRetries(retries)
	if err := c.putJob(txn, key, existing); err != nil {
		return nil, false, err
	}

	return existing, true, nil
}
