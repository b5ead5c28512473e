package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Default level thresholds. Chosen so that a single finding with
// risk 0.95 and confidence 0.9 (0.855) lands in CRITICAL on its own.
const (
	DefaultLowThreshold      = 0.10
	DefaultMediumThreshold   = 0.35
	DefaultHighThreshold     = 0.60
	DefaultCriticalThreshold = 0.80
)

// Classification defaults
const (
	// DefaultNoteWeight damps documented-note evidence.
	DefaultNoteWeight = 0.5
	// NoEvidenceRationale is the synthetic item added when nothing was found.
	NoEvidenceRationale = "no evidence found"
)

// Batch classification defaults
const (
	DefaultClassifyWorkers = 4
	DefaultClassifyBurst   = 1
)

// History constants
const (
	// DefaultHistoryLimit is the default number of decisions to display
	DefaultHistoryLimit = 20
	// DefaultHistoryRetainDays is the default number of days to retain decisions
	DefaultHistoryRetainDays = 30
)

// Decision defaults
const (
	DefaultQuarantineDir = ".riskgate_quarantine"
	// DefaultStoreTimeout bounds a single store round trip from the CLI.
	DefaultStoreTimeout = 5 * time.Second
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
