// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package pool manages a set of per-partition Store instances for processes
// that host more than one partition in a single address space.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jontk/jobstate/internal/factory"
	"github.com/jontk/jobstate/pkg/logging"
)

// Opener opens the Store backing a given partition id. The pool calls it
// whenever a partition is requested and no Store for it is cached: on the
// first request, and again after that Store was evicted or failed to open.
type Opener func(partitionID uint32) (*factory.Store, error)

// PartitionPool lazily opens, caches, and closes one *factory.Store per
// partition id.
type PartitionPool struct {
	mu     sync.RWMutex
	stores map[uint32]*pooledStore
	opener Opener
	config *PoolConfig
	logger logging.Logger
}

// pooledStore wraps a Store with usage statistics.
type pooledStore struct {
	store    *factory.Store
	created  time.Time
	lastUsed time.Time
	useCount int64
	inUse    int32
}

// PoolConfig holds configuration for the partition pool's idle-eviction
// policy.
type PoolConfig struct {
	// CleanupInterval is how often the pool's background routine sweeps for
	// idle partitions.
	CleanupInterval time.Duration

	// MaxIdleTime is how long a partition may sit unused before the sweep
	// closes it.
	MaxIdleTime time.Duration
}

// DefaultPoolConfig returns a pool configuration with conservative idle
// eviction.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		CleanupInterval: 5 * time.Minute,
		MaxIdleTime:     15 * time.Minute,
	}
}

// NewPartitionPool creates a new partition pool. opener is called to open a
// partition's Store the first time it is requested.
func NewPartitionPool(opener Opener, config *PoolConfig, logger logging.Logger) *PartitionPool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &PartitionPool{
		stores: make(map[uint32]*pooledStore),
		opener: opener,
		config: config,
		logger: logger,
	}
}

// GetStore returns the Store for the given partition id, opening it if this
// is the first request for that partition.
func (p *PartitionPool) GetStore(partitionID uint32) (*factory.Store, error) {
	p.mu.RLock()
	ps, exists := p.stores[partitionID]
	p.mu.RUnlock()

	if exists {
		p.mu.Lock()
		ps.lastUsed = time.Now()
		ps.useCount++
		p.mu.Unlock()

		return ps.store, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock.
	if ps, exists := p.stores[partitionID]; exists {
		ps.lastUsed = time.Now()
		ps.useCount++
		return ps.store, nil
	}

	store, err := p.opener(partitionID)
	if err != nil {
		return nil, fmt.Errorf("open partition %d: %w", partitionID, err)
	}

	ps = &pooledStore{
		store:    store,
		created:  time.Now(),
		lastUsed: time.Now(),
		useCount: 1,
	}

	p.stores[partitionID] = ps
	p.logger.Info("opened store for partition", "partition", partitionID)

	return store, nil
}

// Stats returns statistics about the partition pool.
func (p *PartitionPool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := PoolStats{
		TotalPartitions: len(p.stores),
		PartitionStats:  make(map[uint32]PartitionStats),
	}

	for partitionID, ps := range p.stores {
		stats.PartitionStats[partitionID] = PartitionStats{
			Created:  ps.created,
			LastUsed: ps.lastUsed,
			UseCount: ps.useCount,
			InUse:    ps.inUse,
		}
	}

	return stats
}

// CleanupIdleStores closes stores that haven't been used recently.
func (p *PartitionPool) CleanupIdleStores(maxIdleTime time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxIdleTime)

	for partitionID, ps := range p.stores {
		if ps.lastUsed.Before(cutoff) && ps.inUse == 0 {
			if err := ps.store.Close(); err != nil {
				p.logger.Error("failed to close idle partition store",
					"partition", partitionID,
					"error", err,
				)
				continue
			}

			delete(p.stores, partitionID)
			removed++

			p.logger.Info("closed idle partition store",
				"partition", partitionID,
				"idle_duration", time.Since(ps.lastUsed),
			)
		}
	}

	return removed
}

// Close closes every store in the pool.
func (p *PartitionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for partitionID, ps := range p.stores {
		if err := ps.store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close partition %d: %w", partitionID, err)
		}
		delete(p.stores, partitionID)
	}

	p.logger.Info("closed all partition stores in pool")
	return firstErr
}

// PoolStats contains statistics about the partition pool.
type PoolStats struct {
	TotalPartitions int
	PartitionStats  map[uint32]PartitionStats
}

// PartitionStats contains statistics for a single partition's store.
type PartitionStats struct {
	Created  time.Time
	LastUsed time.Time
	UseCount int64
	InUse    int32
}

// PartitionManager runs the pool's background idle-eviction routine.
type PartitionManager struct {
	pool            *PartitionPool
	cleanupInterval time.Duration
	maxIdleTime     time.Duration
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	logger          logging.Logger
}

// NewPartitionManager creates a new partition lifecycle manager.
func NewPartitionManager(pool *PartitionPool, logger logging.Logger) *PartitionManager {
	ctx, cancel := context.WithCancel(context.Background())

	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &PartitionManager{
		pool:            pool,
		cleanupInterval: pool.config.CleanupInterval,
		maxIdleTime:     pool.config.MaxIdleTime,
		ctx:             ctx,
		cancel:          cancel,
		logger:          logger,
	}
}

// Start begins the partition management routine.
func (pm *PartitionManager) Start() {
	pm.wg.Add(1)
	go pm.cleanupRoutine()
}

// Stop stops the partition management routine.
func (pm *PartitionManager) Stop() {
	pm.cancel()
	pm.wg.Wait()
}

func (pm *PartitionManager) cleanupRoutine() {
	defer pm.wg.Done()

	ticker := time.NewTicker(pm.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := pm.pool.CleanupIdleStores(pm.maxIdleTime)
			if removed > 0 {
				pm.logger.Info("cleaned up idle partition stores", "removed", removed)
			}
		case <-pm.ctx.Done():
			return
		}
	}
}
