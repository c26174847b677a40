// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package factory opens and owns a Store: one partition's worth of engine,
// column families, and ambient wiring (logging, metrics). It follows the
// teacher's functional-options factory shape — build defaults, then apply
// options in order, the first error wins — generalized from an HTTP client
// factory to a storage engine factory.
package factory

import (
	"context"

	"github.com/google/uuid"
	"github.com/jontk/jobstate/internal/kvengine"
	"github.com/jontk/jobstate/pkg/config"
	pkgcontext "github.com/jontk/jobstate/pkg/context"
	"github.com/jontk/jobstate/pkg/errors"
	"github.com/jontk/jobstate/pkg/logging"
	"github.com/jontk/jobstate/pkg/metrics"
)

// StoreFactory builds a Store for one partition. Exported so callers can
// assemble options programmatically, the way the teacher's ClientFactory is
// exported alongside its root-level convenience constructor.
type StoreFactory struct {
	partitionID uint32
	config      *config.Config
	logger      logging.Logger
	collector   metrics.JobEventCollector
}

// Option mutates a StoreFactory during construction. Returning an error
// aborts NewStoreFactory before any option after it runs.
type Option func(*StoreFactory) error

// NewStoreFactory builds a StoreFactory with defaults, then applies options
// in order. The first option to return an error aborts construction.
func NewStoreFactory(partitionID uint32, options ...Option) (*StoreFactory, error) {
	f := &StoreFactory{
		partitionID: partitionID,
		config:      config.NewDefault(),
		logger:      logging.NoOpLogger{},
		collector:   metrics.GetDefaultCollector(),
	}

	for _, opt := range options {
		if err := opt(f); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// WithConfig overrides the engine-tuning configuration.
func WithConfig(cfg *config.Config) Option {
	return func(f *StoreFactory) error {
		if cfg == nil {
			return errors.New(errors.CodeInvalidArgument, "config must not be nil")
		}
		f.config = cfg
		return nil
	}
}

// WithLogger overrides the structured logger used by the resulting Store.
func WithLogger(logger logging.Logger) Option {
	return func(f *StoreFactory) error {
		if logger == nil {
			logger = logging.NoOpLogger{}
		}
		f.logger = logger
		return nil
	}
}

// WithMetrics overrides the metrics collector used by the resulting Store.
func WithMetrics(collector metrics.JobEventCollector) Option {
	return func(f *StoreFactory) error {
		if collector == nil {
			collector = metrics.NoOpCollector{}
		}
		f.collector = collector
		return nil
	}
}

// WithDataDir overrides just the data directory of the factory's config,
// without requiring the caller to build a whole Config.
func WithDataDir(dir string) Option {
	return func(f *StoreFactory) error {
		if dir == "" {
			return errors.New(errors.CodeInvalidArgument, "data dir must not be empty")
		}
		f.config.DataDir = dir
		return nil
	}
}

// Open opens the engine and returns a ready Store. On failure, any handles
// already acquired are released before returning StoreOpenError.
func (f *StoreFactory) Open(ctx context.Context) (*Store, error) {
	if err := f.config.Validate(); err != nil {
		return nil, errors.NewStoreOpenError("invalid engine configuration", err)
	}

	engine, err := kvengine.Open(ctx, f.config, f.logger)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	logger := f.logger.With("store_id", id, "partition", f.partitionID)

	return &Store{
		id:          id,
		partitionID: f.partitionID,
		engine:      engine,
		config:      f.config,
		logger:      logger,
		collector:   f.collector,
	}, nil
}

// Store is one partition's open engine plus its ambient wiring. It is the
// single owner of its engine's mutable transactions; per spec.md §5,
// concurrent query paths must use a separate snapshot reader (View), not
// interleave with the owner's Update calls from another goroutine.
type Store struct {
	id          string
	partitionID uint32
	engine      *kvengine.Engine
	config      *config.Config
	logger      logging.Logger
	collector   metrics.JobEventCollector
}

// ID returns the store's unique instance id, minted at Open time so that
// multiple partitions opened in one process are distinguishable in logs.
// The metrics collector does not receive it.
func (s *Store) ID() string { return s.id }

// PartitionID returns the partition this store serves.
func (s *Store) PartitionID() uint32 { return s.partitionID }

// Logger returns the store's logger, already annotated with its id and
// partition.
func (s *Store) Logger() logging.Logger { return s.logger }

// Metrics returns the store's metrics collector.
func (s *Store) Metrics() metrics.JobEventCollector { return s.collector }

// Engine returns the underlying kvengine.Engine for use by JobStateCore.
func (s *Store) Engine() *kvengine.Engine { return s.engine }

// Update runs fn inside a read-write transaction, bounding ctx with the
// write timeout if the caller didn't already give it a deadline, the same
// way the teacher bounds every outbound HTTP call regardless of what the
// caller passed in. kvengine.Engine.Update's own conflict-retry loop runs fn
// once before ever checking ctx.Done, so an already-expired ctx is rejected
// here first rather than silently letting one more attempt through.
func (s *Store) Update(ctx context.Context, fn func(txn *kvengine.Txn) error) error {
	ctx, cancel := pkgcontext.WithTimeout(ctx, pkgcontext.OpWrite, nil)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return pkgcontext.WrapContextError(err, "update", pkgcontext.DefaultTimeout)
	}
	return s.engine.Update(ctx, fn)
}

// View runs fn inside a read-only snapshot transaction, bounding ctx with
// the read timeout. The timeout is advisory only: kvengine.Engine.View
// itself takes no context (badger's View has no cancellation hook), so a
// timed-out ctx surfaces on the *next* Update/View call rather than
// interrupting fn mid-scan.
func (s *Store) View(ctx context.Context, fn func(txn *kvengine.Txn) error) error {
	ctx, cancel := pkgcontext.WithTimeout(ctx, pkgcontext.OpRead, nil)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return pkgcontext.WrapContextError(err, "view", pkgcontext.DefaultTimeout)
	}
	return s.engine.View(fn)
}

// Scan runs fn inside a read-write transaction intended for an iterator
// sweep (ForEachActivatable, ForEachTimedOut, FindBackedOffJobs), bounding
// ctx with the longer scan timeout instead of the point-query one. These
// iterators repair dangling index entries in-scan (internal/jobstate's
// "tolerated post-crash state" deletes per spec.md §9), which badger
// rejects on a read-only transaction — so Scan must go through Update, not
// View, even though most scans never trigger a repair delete.
func (s *Store) Scan(ctx context.Context, fn func(txn *kvengine.Txn) error) error {
	ctx, cancel := pkgcontext.WithTimeout(ctx, pkgcontext.OpScan, nil)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return pkgcontext.WrapContextError(err, "scan", pkgcontext.DefaultLongTimeout)
	}
	return s.engine.Update(ctx, fn)
}

// Close releases the store's engine handle. Safe to call on a store built
// with NewUnopenedForTest, which has no engine to release.
func (s *Store) Close() error {
	if s.engine == nil {
		return nil
	}
	return s.engine.Close()
}

// NewUnopenedForTest builds a Store for partitionID without opening any real
// engine or touching disk. It exists so packages that merely need a
// distinguishable, comparable *Store value (e.g. a pool keyed by partition)
// can build test doubles without paying for badger I/O.
func NewUnopenedForTest(partitionID uint32) *Store {
	return &Store{
		id:          uuid.New().String(),
		partitionID: partitionID,
		logger:      logging.NoOpLogger{},
		collector:   metrics.NoOpCollector{},
	}
}
