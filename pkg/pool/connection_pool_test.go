// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package pool

import (
	"errors"
	"testing"
	"time"

	"github.com/jontk/jobstate/internal/factory"
	"github.com/jontk/jobstate/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOpener builds an Opener that counts calls and optionally errors on
// specific partition ids, without touching badger at all.
func fakeOpener(t *testing.T, fail map[uint32]bool) (Opener, *int) {
	t.Helper()
	calls := 0
	opener := func(partitionID uint32) (*factory.Store, error) {
		calls++
		if fail[partitionID] {
			return nil, errors.New("simulated open failure")
		}
		return factory.NewUnopenedForTest(partitionID), nil
	}
	return opener, &calls
}

func TestDefaultPoolConfig(t *testing.T) {
	config := DefaultPoolConfig()

	require.NotNil(t, config)
	assert.Equal(t, 5*time.Minute, config.CleanupInterval)
	assert.Equal(t, 15*time.Minute, config.MaxIdleTime)
}

func TestNewPartitionPool(t *testing.T) {
	t.Run("with config and logger", func(t *testing.T) {
		opener, _ := fakeOpener(t, nil)
		config := &PoolConfig{CleanupInterval: time.Minute, MaxIdleTime: time.Minute}
		logger := logging.NoOpLogger{}

		pool := NewPartitionPool(opener, config, logger)

		require.NotNil(t, pool)
		assert.Equal(t, config, pool.config)
		assert.Equal(t, logger, pool.logger)
		assert.NotNil(t, pool.stores)
	})

	t.Run("with nil config", func(t *testing.T) {
		opener, _ := fakeOpener(t, nil)
		pool := NewPartitionPool(opener, nil, nil)

		require.NotNil(t, pool)
		assert.Equal(t, DefaultPoolConfig(), pool.config)
		assert.IsType(t, logging.NoOpLogger{}, pool.logger)
	})
}

func TestPartitionPool_GetStore(t *testing.T) {
	opener, calls := fakeOpener(t, nil)
	pool := NewPartitionPool(opener, nil, nil)

	store1, err := pool.GetStore(1)
	require.NoError(t, err)
	require.NotNil(t, store1)

	store2, err := pool.GetStore(1)
	require.NoError(t, err)
	assert.Equal(t, store1, store2)
	assert.Equal(t, 1, *calls)

	stats := pool.Stats()
	assert.Equal(t, 1, stats.TotalPartitions)
	require.Contains(t, stats.PartitionStats, uint32(1))
	assert.Equal(t, int64(2), stats.PartitionStats[uint32(1)].UseCount)
}

func TestPartitionPool_GetStore_DifferentPartitions(t *testing.T) {
	opener, calls := fakeOpener(t, nil)
	pool := NewPartitionPool(opener, nil, nil)

	store1, err := pool.GetStore(1)
	require.NoError(t, err)
	store2, err := pool.GetStore(2)
	require.NoError(t, err)

	assert.NotEqual(t, store1, store2)
	assert.Equal(t, 2, *calls)

	stats := pool.Stats()
	assert.Equal(t, 2, stats.TotalPartitions)
}

func TestPartitionPool_GetStore_OpenError(t *testing.T) {
	opener, _ := fakeOpener(t, map[uint32]bool{3: true})
	pool := NewPartitionPool(opener, nil, nil)

	store, err := pool.GetStore(3)
	assert.Nil(t, store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open partition 3")

	stats := pool.Stats()
	assert.Equal(t, 0, stats.TotalPartitions)
}

func TestPartitionPool_Stats(t *testing.T) {
	opener, _ := fakeOpener(t, nil)
	pool := NewPartitionPool(opener, nil, nil)

	stats := pool.Stats()
	assert.Equal(t, 0, stats.TotalPartitions)
	assert.Empty(t, stats.PartitionStats)

	_, err := pool.GetStore(1)
	require.NoError(t, err)
	_, err = pool.GetStore(2)
	require.NoError(t, err)
	_, err = pool.GetStore(1)
	require.NoError(t, err)

	stats = pool.Stats()
	assert.Equal(t, 2, stats.TotalPartitions)
	assert.Equal(t, int64(2), stats.PartitionStats[uint32(1)].UseCount)
	assert.Equal(t, int64(1), stats.PartitionStats[uint32(2)].UseCount)
}

func TestPartitionPool_CleanupIdleStores(t *testing.T) {
	opener, _ := fakeOpener(t, nil)
	pool := NewPartitionPool(opener, nil, nil)

	_, err := pool.GetStore(1)
	require.NoError(t, err)
	_, err = pool.GetStore(2)
	require.NoError(t, err)

	stats := pool.Stats()
	assert.Equal(t, 2, stats.TotalPartitions)

	pool.mu.Lock()
	pool.stores[1].lastUsed = time.Now().Add(-1 * time.Hour)
	pool.mu.Unlock()

	removed := pool.CleanupIdleStores(30 * time.Minute)
	assert.Equal(t, 1, removed)

	stats = pool.Stats()
	assert.Equal(t, 1, stats.TotalPartitions)
	assert.Contains(t, stats.PartitionStats, uint32(2))
	assert.NotContains(t, stats.PartitionStats, uint32(1))
}

func TestPartitionPool_CleanupIdleStores_InUse(t *testing.T) {
	opener, _ := fakeOpener(t, nil)
	pool := NewPartitionPool(opener, nil, nil)

	_, err := pool.GetStore(1)
	require.NoError(t, err)

	pool.mu.Lock()
	pool.stores[1].lastUsed = time.Now().Add(-1 * time.Hour)
	pool.stores[1].inUse = 1
	pool.mu.Unlock()

	removed := pool.CleanupIdleStores(30 * time.Minute)
	assert.Equal(t, 0, removed)

	stats := pool.Stats()
	assert.Equal(t, 1, stats.TotalPartitions)
}

func TestPartitionPool_Close(t *testing.T) {
	opener, _ := fakeOpener(t, nil)
	pool := NewPartitionPool(opener, nil, nil)

	_, err := pool.GetStore(1)
	require.NoError(t, err)
	_, err = pool.GetStore(2)
	require.NoError(t, err)

	stats := pool.Stats()
	assert.Equal(t, 2, stats.TotalPartitions)

	err = pool.Close()
	assert.NoError(t, err)

	stats = pool.Stats()
	assert.Equal(t, 0, stats.TotalPartitions)
	assert.Empty(t, stats.PartitionStats)
}

func TestPooledStore(t *testing.T) {
	store := factory.NewUnopenedForTest(9)
	now := time.Now()

	ps := &pooledStore{
		store:    store,
		created:  now,
		lastUsed: now,
		useCount: 5,
		inUse:    2,
	}

	assert.Equal(t, store, ps.store)
	assert.Equal(t, now, ps.created)
	assert.Equal(t, now, ps.lastUsed)
	assert.Equal(t, int64(5), ps.useCount)
	assert.Equal(t, int32(2), ps.inUse)
}

func TestNewPartitionManager(t *testing.T) {
	opener, _ := fakeOpener(t, nil)
	pool := NewPartitionPool(opener, nil, nil)
	logger := logging.NoOpLogger{}

	pm := NewPartitionManager(pool, logger)

	require.NotNil(t, pm)
	assert.Equal(t, pool, pm.pool)
	assert.Equal(t, logger, pm.logger)
	assert.Equal(t, 5*time.Minute, pm.cleanupInterval)
	assert.Equal(t, 15*time.Minute, pm.maxIdleTime)
	assert.NotNil(t, pm.ctx)
	assert.NotNil(t, pm.cancel)
}

func TestNewPartitionManager_NilLogger(t *testing.T) {
	opener, _ := fakeOpener(t, nil)
	pool := NewPartitionPool(opener, nil, nil)

	pm := NewPartitionManager(pool, nil)

	require.NotNil(t, pm)
	assert.IsType(t, logging.NoOpLogger{}, pm.logger)
}

func TestPartitionManager_StartStop(t *testing.T) {
	opener, _ := fakeOpener(t, nil)
	pool := NewPartitionPool(opener, nil, nil)
	pm := NewPartitionManager(pool, nil)

	pm.Start()

	done := make(chan struct{})
	go func() {
		pm.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Stop() took too long")
	}
}

func TestPartitionManager_CleanupRoutine(t *testing.T) {
	opener, _ := fakeOpener(t, nil)
	pool := NewPartitionPool(opener, nil, nil)

	pm := NewPartitionManager(pool, nil)
	pm.cleanupInterval = 10 * time.Millisecond
	pm.maxIdleTime = 5 * time.Millisecond

	_, err := pool.GetStore(1)
	require.NoError(t, err)

	stats := pool.Stats()
	assert.Equal(t, 1, stats.TotalPartitions)

	pm.Start()
	time.Sleep(50 * time.Millisecond)
	pm.Stop()

	stats = pool.Stats()
	assert.Equal(t, 0, stats.TotalPartitions)
}

func TestPartitionStats(t *testing.T) {
	now := time.Now()
	stats := PartitionStats{
		Created:  now,
		LastUsed: now,
		UseCount: 10,
		InUse:    3,
	}

	assert.Equal(t, now, stats.Created)
	assert.Equal(t, now, stats.LastUsed)
	assert.Equal(t, int64(10), stats.UseCount)
	assert.Equal(t, int32(3), stats.InUse)
}

func TestPoolStats(t *testing.T) {
	stats := PoolStats{
		TotalPartitions: 5,
		PartitionStats: map[uint32]PartitionStats{
			1: {UseCount: 10},
			2: {UseCount: 20},
		},
	}

	assert.Equal(t, 5, stats.TotalPartitions)
	assert.Len(t, stats.PartitionStats, 2)
	assert.Equal(t, int64(10), stats.PartitionStats[1].UseCount)
	assert.Equal(t, int64(20), stats.PartitionStats[2].UseCount)
}

func TestPartitionPool_ConcurrentAccess(t *testing.T) {
	opener, _ := fakeOpener(t, nil)
	pool := NewPartitionPool(opener, nil, nil)

	const numGoroutines = 10
	stores := make([]*factory.Store, numGoroutines)
	done := make(chan int, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(index int) {
			s, err := pool.GetStore(7)
			require.NoError(t, err)
			stores[index] = s
			done <- index
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	for i := 1; i < numGoroutines; i++ {
		assert.Equal(t, stores[0], stores[i])
	}

	stats := pool.Stats()
	assert.Equal(t, 1, stats.TotalPartitions)
	assert.Equal(t, int64(numGoroutines), stats.PartitionStats[7].UseCount)
}
