// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package jobstate wires a partition's engine, state machine, and notifier
// into one root-level Store, the way the teacher's top-level package wires
// its factory-built client together for external callers (NewClient,
// ClientOption) instead of making every caller assemble internal packages
// by hand.
package jobstate

import (
	"context"

	"github.com/jontk/jobstate/internal/factory"
	"github.com/jontk/jobstate/internal/jobrecord"
	core "github.com/jontk/jobstate/internal/jobstate"
	"github.com/jontk/jobstate/internal/kvengine"
	"github.com/jontk/jobstate/internal/notify"
	"github.com/jontk/jobstate/pkg/config"
	"github.com/jontk/jobstate/pkg/logging"
	"github.com/jontk/jobstate/pkg/metrics"
)

// Option configures a Store at Open time.
type Option func(*options) error

type options struct {
	factoryOpts       []factory.Option
	strictTransitions bool
}

// WithConfig overrides the engine-tuning configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		o.factoryOpts = append(o.factoryOpts, factory.WithConfig(cfg))
		return nil
	}
}

// WithLogger overrides the structured logger used for every operation.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) error {
		o.factoryOpts = append(o.factoryOpts, factory.WithLogger(logger))
		return nil
	}
}

// WithMetrics overrides the metrics collector used for every operation.
func WithMetrics(collector metrics.JobEventCollector) Option {
	return func(o *options) error {
		o.factoryOpts = append(o.factoryOpts, factory.WithMetrics(collector))
		return nil
	}
}

// WithDataDir overrides just the data directory, without requiring the
// caller to build a whole Config.
func WithDataDir(dir string) Option {
	return func(o *options) error {
		o.factoryOpts = append(o.factoryOpts, factory.WithDataDir(dir))
		return nil
	}
}

// WithStrictTransitions enables the debug-mode transition assertions
// described in spec.md §4.4's closing note. Off by default.
func WithStrictTransitions(strict bool) Option {
	return func(o *options) error {
		o.strictTransitions = strict
		return nil
	}
}

// Store is one partition's open engine plus its state machine and
// notifier, ready for a command processor to drive. Every mutating method
// opens its own read-write transaction; Core's single-owner-per-partition
// contract (spec.md §5) means callers must not call two mutating methods
// on the same Store concurrently from different goroutines.
type Store struct {
	store *factory.Store
	core  *core.Core
}

// Open opens a Store for partitionID, applying opts in order.
func Open(ctx context.Context, partitionID uint32, opts ...Option) (*Store, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	sf, err := factory.NewStoreFactory(partitionID, o.factoryOpts...)
	if err != nil {
		return nil, err
	}

	st, err := sf.Open(ctx)
	if err != nil {
		return nil, err
	}

	c := core.New(partitionID, st.Metrics(), st.Logger(), core.WithStrictTransitions(o.strictTransitions))

	return &Store{store: st, core: c}, nil
}

// SetNotifyCallback registers the single jobs-available listener described
// in spec.md §4.5. A nil callback disables notifications.
func (s *Store) SetNotifyCallback(cb notify.Callback) {
	s.core.Notifier().SetCallback(cb)
}

// Close releases the store's engine handle.
func (s *Store) Close() error { return s.store.Close() }

// ID returns the store's unique instance id.
func (s *Store) ID() string { return s.store.ID() }

// PartitionID returns the partition this store serves.
func (s *Store) PartitionID() uint32 { return s.store.PartitionID() }

// Metrics returns the store's metrics collector.
func (s *Store) Metrics() metrics.JobEventCollector { return s.store.Metrics() }

// Create writes a brand-new job into ACTIVATABLE.
func (s *Store) Create(ctx context.Context, key uint64, rec *jobrecord.Record) error {
	return s.store.Update(ctx, func(txn *kvengine.Txn) error {
		return s.core.Create(txn, key, rec)
	})
}

// Activate claims an ACTIVATABLE job, moving it to ACTIVATED.
func (s *Store) Activate(ctx context.Context, key uint64, rec *jobrecord.Record) error {
	return s.store.Update(ctx, func(txn *kvengine.Txn) error {
		return s.core.Activate(txn, key, rec)
	})
}

// Timeout restores an expired ACTIVATED job to ACTIVATABLE.
func (s *Store) Timeout(ctx context.Context, key uint64, rec *jobrecord.Record) error {
	return s.store.Update(ctx, func(txn *kvengine.Txn) error {
		return s.core.Timeout(txn, key, rec)
	})
}

// Complete purges a successfully finished job.
func (s *Store) Complete(ctx context.Context, key uint64, rec *jobrecord.Record) error {
	return s.store.Update(ctx, func(txn *kvengine.Txn) error {
		return s.core.Complete(txn, key, rec)
	})
}

// Cancel purges a job cancelled by its owning workflow instance.
func (s *Store) Cancel(ctx context.Context, key uint64, rec *jobrecord.Record) error {
	return s.store.Update(ctx, func(txn *kvengine.Txn) error {
		return s.core.Cancel(txn, key, rec)
	})
}

// Delete purges a job unconditionally, from any state.
func (s *Store) Delete(ctx context.Context, key uint64, rec *jobrecord.Record) error {
	return s.store.Update(ctx, func(txn *kvengine.Txn) error {
		return s.core.Delete(txn, key, rec)
	})
}

// Disable moves an ACTIVATABLE job to FAILED without a backoff schedule.
func (s *Store) Disable(ctx context.Context, key uint64, rec *jobrecord.Record) error {
	return s.store.Update(ctx, func(txn *kvengine.Txn) error {
		return s.core.Disable(txn, key, rec)
	})
}

// ThrowError moves an ACTIVATABLE job to ERROR_THROWN.
func (s *Store) ThrowError(ctx context.Context, key uint64, rec *jobrecord.Record) error {
	return s.store.Update(ctx, func(txn *kvengine.Txn) error {
		return s.core.ThrowError(txn, key, rec)
	})
}

// Fail handles an ACTIVATED job's failure per spec.md §4.4's Fail row.
func (s *Store) Fail(ctx context.Context, key uint64, rec *jobrecord.Record) error {
	return s.store.Update(ctx, func(txn *kvengine.Txn) error {
		return s.core.Fail(txn, key, rec)
	})
}

// Resolve moves a FAILED or ERROR_THROWN job back to ACTIVATABLE.
func (s *Store) Resolve(ctx context.Context, key uint64, rec *jobrecord.Record) error {
	return s.store.Update(ctx, func(txn *kvengine.Txn) error {
		return s.core.Resolve(txn, key, rec)
	})
}

// RecurAfterBackoff wakes a FAILED, backed-off job back to ACTIVATABLE.
func (s *Store) RecurAfterBackoff(ctx context.Context, key uint64, rec *jobrecord.Record) error {
	return s.store.Update(ctx, func(txn *kvengine.Txn) error {
		return s.core.RecurAfterBackoff(txn, key, rec)
	})
}

// UpdateJobRetries sets key's retries field without driving the state
// machine; see spec.md §9 Open Question (a).
func (s *Store) UpdateJobRetries(ctx context.Context, key uint64, retries int32) (rec *jobrecord.Record, ok bool, err error) {
	err = s.store.Update(ctx, func(txn *kvengine.Txn) error {
		rec, ok, err = s.core.UpdateJobRetries(txn, key, retries)
		return err
	})
	return rec, ok, err
}

// Exists reports whether key has a JOB_STATES entry.
func (s *Store) Exists(ctx context.Context, key uint64) (exists bool, err error) {
	err = s.store.View(ctx, func(txn *kvengine.Txn) error {
		exists, err = s.core.Exists(txn, key)
		return err
	})
	return exists, err
}

// GetState returns key's current lifecycle state.
func (s *Store) GetState(ctx context.Context, key uint64) (state core.State, err error) {
	err = s.store.View(ctx, func(txn *kvengine.Txn) error {
		state, err = s.core.GetState(txn, key)
		return err
	})
	return state, err
}

// GetJob returns key's JobRecord, or ok=false if key has no JOBS entry.
func (s *Store) GetJob(ctx context.Context, key uint64) (rec *jobrecord.Record, ok bool, err error) {
	err = s.store.View(ctx, func(txn *kvengine.Txn) error {
		rec, ok, err = s.core.GetJob(txn, key)
		return err
	})
	return rec, ok, err
}

// ForEachActivatable visits every job of jobType currently in
// JOB_ACTIVATABLE, in key order, until visit returns false.
func (s *Store) ForEachActivatable(ctx context.Context, jobType []byte, visit core.ActivatableVisitor) error {
	return s.store.Scan(ctx, func(txn *kvengine.Txn) error {
		return s.core.ForEachActivatable(txn, jobType, visit)
	})
}

// ForEachTimedOut visits every ACTIVATED job whose deadline is strictly
// less than upperBound.
func (s *Store) ForEachTimedOut(ctx context.Context, upperBound uint64, visit core.TimedOutVisitor) error {
	return s.store.Scan(ctx, func(txn *kvengine.Txn) error {
		return s.core.ForEachTimedOut(txn, upperBound, visit)
	})
}

// FindBackedOffJobs consults predicate for every backed-off job whose due
// time has arrived, returning the next due time or -1.
func (s *Store) FindBackedOffJobs(ctx context.Context, now uint64, predicate core.BackoffPredicate) (nextDue int64, err error) {
	err = s.store.Scan(ctx, func(txn *kvengine.Txn) error {
		nextDue, err = s.core.FindBackedOffJobs(txn, now, predicate)
		return err
	})
	return nextDue, err
}
