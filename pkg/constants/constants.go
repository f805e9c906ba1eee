// Package constants provides shared constants used throughout the curator codebase.
// This includes version-store limits, retention defaults, file permissions and
// other values that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultTimeout is the standard timeout for general operations
	DefaultTimeout = 10 * time.Second

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute

	// CleanupTimeout bounds a single retention pass across all entities
	CleanupTimeout = 5 * time.Minute

	// BadgerGCInterval is how often the badger value log garbage collector runs
	BadgerGCInterval = 5 * time.Minute
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Version store limits
const (
	// DefaultMaxVersionsPerItem caps the length of a single entity's log
	DefaultMaxVersionsPerItem = 100

	// DefaultMinVersions is the floor eviction never goes below
	DefaultMinVersions = 5

	// DefaultPageSize is the default number of versions returned by history queries
	DefaultPageSize = 50

	// MaxConcurrentCleanups is the number of entities cleaned in parallel
	MaxConcurrentCleanups = 8

	// VersionIDSuffixLength is the number of random characters appended to version ids
	VersionIDSuffixLength = 8
)

// Retention defaults
const (
	// DefaultRetentionDays is the age after which versions become eligible for cleanup
	DefaultRetentionDays = 30

	// DefaultKeepMinimumVersions is the number of most recent versions always retained
	DefaultKeepMinimumVersions = 5

	// DefaultCleanupInterval is the default interval between automatic cleanup passes
	DefaultCleanupInterval = 24 * time.Hour
)

// Confidence values reported by the structural differ
const (
	// ExactConfidence is reported for key-based and scalar changes
	ExactConfidence = 1.0

	// PositionalConfidence is reported for trailing array additions and removals
	PositionalConfidence = 0.9
)

// Tag names applied by the engine
const (
	TagBackup       = "backup"
	TagRestorePoint = "restore-point"
	TagMerge        = "merge"
	TagAuto         = "auto"
	TagManual       = "manual"
	TagBranch       = "branch"
)

// BranchSeparator joins an entity id and a branch name into a branch entity id
const BranchSeparator = "_branch_"

// Path constants
const (
	// DefaultDataPath is the default directory for persisted version logs
	DefaultDataPath = "~/.curator"

	// DefaultConfigPath is the default path for configuration files
	DefaultConfigPath = "~/.curator.yaml"
)

// Format constants
const (
	// TimeFormatHuman is a human-readable time format
	TimeFormatHuman = "Jan 2, 2006 at 3:04pm MST"

	// TimeFormatLog is the format used in log files
	TimeFormatLog = "2006-01-02 15:04:05.000"
)
