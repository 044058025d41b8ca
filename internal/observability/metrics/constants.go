// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Store operation names passed to Recorder. Table scoped operations are
// suffixed with ":<table>".
const (
	// OpRead represents a full table read.
	OpRead = "read"
	// OpAppend represents a row append.
	OpAppend = "append"
	// OpUpdate represents a cell update.
	OpUpdate = "update"
	// OpDelete represents a row delete.
	OpDelete = "delete"
	// OpCreateTable represents table creation during schema repair.
	OpCreateTable = "create_table"
	// OpReplace represents rewriting every row of an existing table.
	OpReplace = "replace"
	// OpPing represents a backend reachability check.
	OpPing = "ping"
	// OpJob represents one job executed by the store worker.
	OpJob = "job"
	// OpQueueWait is the time a job waited before the worker picked it up.
	OpQueueWait = "queue_wait"
	// OpLimiterWait is the time a job waited for the store call quota.
	OpLimiterWait = "limiter_wait"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~32s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0

	BucketFactor2 = 2

	BucketCount10 = 10
	BucketCount12 = 12
	BucketCount15 = 15
)

// ShutdownTimeout is the timeout for graceful shutdown operations.
const ShutdownTimeout = 5 * time.Second

// SplitPartsCount is the expected number of parts in "operation:table".
const SplitPartsCount = 2
