package config

import "errors"

var (
	// ErrMissingDataDir is returned when the data directory is not set.
	ErrMissingDataDir = errors.New("data directory is required")

	// ErrInvalidMemoryBudget is returned when the memory budget is not positive.
	ErrInvalidMemoryBudget = errors.New("memory budget must be greater than 0")

	// ErrInvalidSSTSize is returned when the target SST size is not positive.
	ErrInvalidSSTSize = errors.New("target SST size must be greater than 0")

	// ErrInvalidBaseLevelSize is returned when the base level size is not positive.
	ErrInvalidBaseLevelSize = errors.New("base level size must be greater than 0")

	// ErrInvalidLevelMultiplier is returned when the level size multiplier is less than 1.
	ErrInvalidLevelMultiplier = errors.New("level size multiplier must be at least 1")

	// ErrInvalidManifestCap is returned when the manifest cap is not positive.
	ErrInvalidManifestCap = errors.New("manifest cap must be greater than 0")

	// ErrInvalidFsyncInterval is returned when the fsync interval is not positive.
	ErrInvalidFsyncInterval = errors.New("fsync interval must be greater than 0")

	// ErrInvalidPrefixLen is returned when the column-family prefix length
	// isn't the fixed 2 bytes the data model requires.
	ErrInvalidPrefixLen = errors.New("column family prefix length must be 2")
)
