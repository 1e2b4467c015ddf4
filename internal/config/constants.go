package config

// Default paths for databases
const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./course-import.db"

	// DefaultAuditReportDir holds one JSON report per finished import
	DefaultAuditReportDir = "./audit"

	// DefaultBucket is the object storage bucket used for lesson and test files
	DefaultBucket = "course-content"
)

// Size thresholds, in bytes
const (
	// DefaultMaxDocExportBytes is the largest native document exported inline as text.
	// Anything bigger is exported as PDF and stored as a binary object.
	DefaultMaxDocExportBytes = 25 * 1024 * 1024

	// DefaultResumableThresholdBytes is the size from which uploads switch to the chunked protocol.
	DefaultResumableThresholdBytes = 50 * 1024 * 1024

	// DefaultUploadChunkSize is the part size used by resumable uploads.
	DefaultUploadChunkSize = 6 * 1024 * 1024
)
