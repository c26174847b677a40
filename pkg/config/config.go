// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"strconv"
)

// Config holds the engine-tuning knobs for a Store's badger instance.
type Config struct {
	// DataDir is the on-disk directory the engine opens.
	DataDir string

	// MemoryBudgetBytes bounds the in-memory table size badger keeps
	// before flushing to disk.
	MemoryBudgetBytes int64

	// TargetSSTSizeBytes is the target size of each on-disk table file.
	TargetSSTSizeBytes int64

	// BaseLevelSizeBytes is the target size of the LSM tree's base level.
	BaseLevelSizeBytes int64

	// LevelSizeMultiplier is the size ratio between adjacent LSM levels.
	LevelSizeMultiplier int

	// ManifestCapBytes is applied by the engine as badger's value log file
	// size; the manifest file itself is not capped.
	ManifestCapBytes int64

	// BitsPerKey configures the bloom filter: the engine sets its false
	// positive rate to 1/2^BitsPerKey, so 10 bits per key gives roughly 0.1%.
	BitsPerKey int

	// FsyncIntervalBytes is validated but not applied by the engine, which
	// runs with synchronous writes off and no periodic fsync.
	FsyncIntervalBytes int64

	// ColumnFamilyPrefixLen is the width, in bytes, of the discriminator
	// prepended to every key. Fixed at 2 by the data model.
	ColumnFamilyPrefixLen int

	// Debug enables verbose engine logging.
	Debug bool
}

// NewDefault creates a new configuration with default values.
func NewDefault() *Config {
	return &Config{
		DataDir:               getEnvOrDefault("JOBSTATE_DATA_DIR", "./data"),
		MemoryBudgetBytes:     getEnvInt64OrDefault("JOBSTATE_MEMORY_BUDGET_BYTES", 512<<20),
		TargetSSTSizeBytes:    getEnvInt64OrDefault("JOBSTATE_TARGET_SST_BYTES", 8<<20),
		BaseLevelSizeBytes:    getEnvInt64OrDefault("JOBSTATE_BASE_LEVEL_SIZE_BYTES", 32<<20),
		LevelSizeMultiplier:   getEnvIntOrDefault("JOBSTATE_LEVEL_SIZE_MULTIPLIER", 10),
		ManifestCapBytes:      getEnvInt64OrDefault("JOBSTATE_MANIFEST_CAP_BYTES", 256<<20),
		BitsPerKey:            getEnvIntOrDefault("JOBSTATE_BLOOM_BITS_PER_KEY", 10),
		FsyncIntervalBytes:    getEnvInt64OrDefault("JOBSTATE_FSYNC_INTERVAL_BYTES", 1<<20),
		ColumnFamilyPrefixLen: 2,
		Debug:                 getEnvBoolOrDefault("JOBSTATE_DEBUG", false),
	}
}

// Load loads configuration from environment variables, overriding whatever
// values c already holds.
func (c *Config) Load() {
	if dir := os.Getenv("JOBSTATE_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}

	if v := os.Getenv("JOBSTATE_MEMORY_BUDGET_BYTES"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MemoryBudgetBytes = i
		}
	}

	if v := os.Getenv("JOBSTATE_TARGET_SST_BYTES"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.TargetSSTSizeBytes = i
		}
	}

	if v := os.Getenv("JOBSTATE_BASE_LEVEL_SIZE_BYTES"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.BaseLevelSizeBytes = i
		}
	}

	if v := os.Getenv("JOBSTATE_LEVEL_SIZE_MULTIPLIER"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.LevelSizeMultiplier = i
		}
	}

	if v := os.Getenv("JOBSTATE_MANIFEST_CAP_BYTES"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.ManifestCapBytes = i
		}
	}

	if v := os.Getenv("JOBSTATE_BLOOM_BITS_PER_KEY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.BitsPerKey = i
		}
	}

	if v := os.Getenv("JOBSTATE_FSYNC_INTERVAL_BYTES"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.FsyncIntervalBytes = i
		}
	}

	c.Debug = getEnvBoolOrDefault("JOBSTATE_DEBUG", c.Debug)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return ErrMissingDataDir
	}

	if c.MemoryBudgetBytes <= 0 {
		return ErrInvalidMemoryBudget
	}

	if c.TargetSSTSizeBytes <= 0 {
		return ErrInvalidSSTSize
	}

	if c.BaseLevelSizeBytes <= 0 {
		return ErrInvalidBaseLevelSize
	}

	if c.LevelSizeMultiplier < 1 {
		return ErrInvalidLevelMultiplier
	}

	if c.ManifestCapBytes <= 0 {
		return ErrInvalidManifestCap
	}

	if c.FsyncIntervalBytes <= 0 {
		return ErrInvalidFsyncInterval
	}

	if c.ColumnFamilyPrefixLen != 2 {
		return ErrInvalidPrefixLen
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns the environment variable value as an int or a
// default value.
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvInt64OrDefault returns the environment variable value as an int64 or
// a default value.
func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the environment variable value as a boolean or
// a default value.
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
