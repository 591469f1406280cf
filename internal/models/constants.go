package models

const (
	// DefaultDebounceSeconds minimum interval the remote toggle enforces
	// between two punches for the same employee.
	DefaultDebounceSeconds = 60

	// DefaultRemoteTimeout per-call limit for user-initiated remote
	// lookups, in seconds.
	DefaultRemoteTimeout = 15

	// DefaultMaxSyncAttempts attempts after which automatic retries for a
	// queued entry stop and it is left for manual review.
	DefaultMaxSyncAttempts = 10

	// DefaultEntryDelayMs pause between consecutive entries during a drain.
	DefaultEntryDelayMs = 100

	// DefaultPollIntervalSeconds safety-net timer that re-checks the queue
	// independently of connectivity events.
	DefaultPollIntervalSeconds = 60

	// DefaultProbeIntervalSeconds connectivity probe period.
	DefaultProbeIntervalSeconds = 15

	// DefaultCacheTTL lifetime of a cached last action, in seconds.
	DefaultCacheTTL = 24 * 60 * 60
)

// RetryBackoffSeconds delays between drain passes, indexed by
// min(queueCount-1, len-1). Larger queues back off harder.
var RetryBackoffSeconds = []int{5, 10, 30, 60}
