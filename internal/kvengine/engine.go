// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package kvengine wraps badger as the ordered, transactional, snapshot
// isolated key-value engine backing every column family. Badger has a
// single flat keyspace with no native concept of column families; cfhandle.go
// prepends a 2-byte ordinal discriminator to every physical key so that all
// five logical keyspaces described in spec.md §3 share one physical store,
// exactly as the data model asks for.
package kvengine

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	storeerrors "github.com/jontk/jobstate/pkg/errors"
	"github.com/jontk/jobstate/pkg/config"
	"github.com/jontk/jobstate/pkg/logging"
	"github.com/jontk/jobstate/pkg/retry"
)

// Engine owns one badger.DB instance, i.e. one partition's worth of storage.
type Engine struct {
	db     *badger.DB
	logger logging.Logger
}

// badgerLogAdapter routes badger's internal logger through our structured
// Logger, the same shape the teacher uses to bridge third-party loggers.
type badgerLogAdapter struct {
	logger logging.Logger
}

func (a badgerLogAdapter) Errorf(format string, args ...interface{})   { a.logger.Error(format, "args", args) }
func (a badgerLogAdapter) Warningf(format string, args ...interface{}) { a.logger.Warn(format, "args", args) }
func (a badgerLogAdapter) Infof(format string, args ...interface{})    { a.logger.Info(format, "args", args) }
func (a badgerLogAdapter) Debugf(format string, args ...interface{})   { a.logger.Debug(format, "args", args) }

// buildOptions translates the engine-tuning knobs of spec.md §4.3 into
// badger's Options. Badger's own iterator already does fixed-length prefix
// scanning efficiently via the Prefix option on IteratorOptions (see
// cfhandle.go), so no separate prefix-extractor configuration is needed on
// the DB itself. SST size, base level, multiplier, bloom bits and the block
// cache / memtable split map onto real Options fields. ManifestCapBytes is
// applied as the value log file size; the manifest itself is not capped.
// FsyncIntervalBytes is not applied: SyncWrites is off and no periodic
// fsync is configured.
func buildOptions(cfg *config.Config, logger logging.Logger) badger.Options {
	opts := badger.DefaultOptions(cfg.DataDir)

	opts = opts.WithLogger(badgerLogAdapter{logger: logger})
	opts = opts.WithSyncWrites(false)
	opts = opts.WithDetectConflicts(true)

	// Snappy on every level: no level is left uncompressed and LZ4 is not
	// used.
	opts = opts.WithCompression(options.Snappy)

	opts = opts.WithBaseTableSize(cfg.TargetSSTSizeBytes)
	opts = opts.WithBaseLevelSize(cfg.BaseLevelSizeBytes)
	opts = opts.WithLevelSizeMultiplier(cfg.LevelSizeMultiplier)
	opts = opts.WithValueLogFileSize(cfg.ManifestCapBytes)
	opts = opts.WithBloomFalsePositive(1.0 / float64(int64(1)<<uint(cfg.BitsPerKey)))

	blockCache := cfg.MemoryBudgetBytes / 3
	opts = opts.WithBlockCacheSize(blockCache)
	opts = opts.WithIndexCacheSize(blockCache)

	opts = opts.WithNumMemtables(10)
	opts = opts.WithMemTableSize(cfg.MemoryBudgetBytes - 2*blockCache)

	if cfg.Debug {
		opts = opts.WithLoggingLevel(badger.DEBUG)
	} else {
		opts = opts.WithLoggingLevel(badger.WARNING)
	}

	return opts
}

// Open opens (creating if necessary) a badger database at cfg.DataDir,
// retrying the open itself since a crash-restart can race a still-closing
// prior process holding the directory lock. Column families are not a
// badger concept to register; the fixed enumeration in cfhandle.go is
// enforced purely by convention at the call sites that build Handles.
func Open(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	opts := buildOptions(cfg, logger)

	openBackoff := retry.NewExponentialBackoff()
	openBackoff.MaxAttempts = 3

	db, err := retry.RetryWithResult(ctx, openBackoff, func() (*badger.DB, error) {
		return badger.Open(opts)
	})
	if err != nil {
		return nil, storeerrors.NewStoreOpenError("failed to open engine", err)
	}

	return &Engine{db: db, logger: logger}, nil
}

// Update runs fn inside a read-write transaction and commits it, retrying
// the whole transaction when the commit fails with badger.ErrConflict.
// spec.md §7 makes transaction-conflict retry the caller's decision; this is
// that caller's bounded, internal retry policy.
func (e *Engine) Update(ctx context.Context, fn func(txn *Txn) error) error {
	conflictBackoff := retry.NewConstantBackoff(0, 5)

	var result error
	retryErr := retry.Retry(ctx, conflictBackoff, func() error {
		err := e.db.Update(func(bt *badger.Txn) error {
			return fn(&Txn{badger: bt})
		})
		if err == badger.ErrConflict {
			return storeerrors.NewEngineError("transaction conflict, retry", err, true)
		}
		if err != nil {
			// Any other failure ends the loop without another attempt.
			result = storeerrors.WrapEngineError(err)
		}
		return nil
	})
	if retryErr != nil {
		return retryErr
	}
	return result
}

// View runs fn inside a read-only snapshot transaction. Per spec.md §5,
// query paths outside the single mutable-core owner must go through a
// snapshot reader rather than the mutable core; View is that reader.
func (e *Engine) View(fn func(txn *Txn) error) error {
	err := e.db.View(func(bt *badger.Txn) error {
		return fn(&Txn{badger: bt})
	})
	if err != nil {
		return storeerrors.WrapEngineError(err)
	}
	return nil
}

// RunValueLogGC reclaims space in the value log files. Callers typically
// invoke this periodically; a nil error does not imply anything was
// reclaimed, and badger.ErrNoRewrite (nothing to do) is swallowed.
func (e *Engine) RunValueLogGC(discardRatio float64) error {
	err := e.db.RunValueLogGC(discardRatio)
	if err != nil && err != badger.ErrNoRewrite {
		return storeerrors.WrapEngineError(err)
	}
	return nil
}

// Close releases the engine's handle on the database.
func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	if err := e.db.Close(); err != nil {
		return storeerrors.WrapEngineError(err)
	}
	return nil
}
