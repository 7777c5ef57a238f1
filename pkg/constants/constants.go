// Package constants provides shared constants used throughout the tally codebase.
// This includes exit codes, defaults, limits and file permissions that must be
// consistent between the library and the CLI.
package constants

import "time"

// Exit code constants form the process exit-code contract of the CLI.
// Wrappers (CI jobs, schedulers) surface them verbatim.
const (
	// ExitSuccess means the run completed and nothing failed policy
	ExitSuccess = 0

	// ExitPolicyFail means the verdict was fail (or differences were found under --strict-exit)
	ExitPolicyFail = 1

	// ExitUsage means the command line or configuration was invalid
	ExitUsage = 2

	// ExitDuplicateKey means duplicate keys were found under on_duplicate=error
	ExitDuplicateKey = 3

	// ExitAmbiguous means ambiguous matches were found under on_ambiguous=error
	ExitAmbiguous = 4

	// ExitParse means an input could not be loaded or parsed
	ExitParse = 5
)

// Default reconciliation settings
const (
	// DefaultTolerance is the absolute tolerance applied when none is configured
	DefaultTolerance = 0.0

	// DefaultKeyTransform is the key transform applied when none is configured
	DefaultKeyTransform = "trim"

	// DefaultStrategy is the matching strategy applied when none is configured
	DefaultStrategy = "exact"

	// DefaultOnAmbiguous is the ambiguity policy applied when none is configured
	DefaultOnAmbiguous = "error"

	// DefaultOnDuplicate is the duplicate policy applied when none is configured
	DefaultOnDuplicate = "error"

	// DefaultLeftName is the source name of the left side of a 2-way run
	DefaultLeftName = "left"

	// DefaultRightName is the source name of the right side of a 2-way run
	DefaultRightName = "right"
)

// Output contract versions
const (
	// ContractVersion is the version of the serialized reconciliation result
	ContractVersion = "1"

	// FingerprintVersion is the canonical serialization format version of fingerprints
	FingerprintVersion = 2
)

// Limit constants define various limits and capacities
const (
	// MaxWorkers caps the classification worker pool
	MaxWorkers = 64

	// ShardSize is the minimum number of groups handed to one classification worker
	ShardSize = 256

	// DefaultHistoryLimit is the default number of baseline records returned by history queries
	DefaultHistoryLimit = 20
)

// Timeout constants
const (
	// ShutdownTimeout bounds cleanup (store close, metric flush) after a command returns
	ShutdownTimeout = 5 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)
