// Package static contains static information for the counters service.
package static

import "time"

// Constants used by the counters service, the journal client and the
// history exporter.
const (
	RedisKeyPrefix        = "counters:"
	RedisMaxIdle          = 3
	RedisIdleTimeout      = 240 * time.Second
	RemoteTimeout         = 10 * time.Second
	BackendTimeout        = 10 * time.Second
	HistoryExportMin      = 30 * time.Second
	HistoryExportExpected = time.Minute
	HistoryExportMax      = 5 * time.Minute
	JournalPrefix         = "swh.journal.objects"
	JournalGroupID        = "swh.counters"
	JournalBatchSize      = 200
	JournalBatchTimeout   = time.Second
	// Backoff parameters used when the counters backend is unavailable.
	BackoffInitialInterval     = time.Second
	BackoffRandomizationFactor = 0.5
	BackoffMultiplier          = 2
	BackoffMaxInterval         = time.Minute
	BackoffMaxElapsedTime      = 10 * time.Minute
)

// JournalObjectTypes are the archive object types consumed by default.
var JournalObjectTypes = []string{"origin", "revision", "release"}
