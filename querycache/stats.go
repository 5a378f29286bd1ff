package querycache

import "sync/atomic"

// Stats cumulative cache counters
type Stats struct {
	// Hits fresh values served without a fetch
	Hits uint64
	// StaleHits stale values served while a background refetch ran
	StaleHits uint64
	// Misses calls that had to block on a fetch
	Misses uint64
	// Fetches fetch executions started (deduplicated callers count once)
	Fetches uint64
	// Refetches background refreshes triggered by staleness or invalidation
	Refetches uint64
	// Errors fetch executions that failed after retries
	Errors uint64
	// Invalidations invalidation calls processed
	Invalidations uint64
	// Evictions entries removed by garbage collection
	Evictions uint64
	// Entries current entry count
	Entries int
}

// statsCounters internal atomic counters
type statsCounters struct {
	hits          atomic.Uint64
	staleHits     atomic.Uint64
	misses        atomic.Uint64
	fetches       atomic.Uint64
	refetches     atomic.Uint64
	errors        atomic.Uint64
	invalidations atomic.Uint64
	evictions     atomic.Uint64
}

func (c *statsCounters) snapshot(entries int) Stats {
	return Stats{
		Hits:          c.hits.Load(),
		StaleHits:     c.staleHits.Load(),
		Misses:        c.misses.Load(),
		Fetches:       c.fetches.Load(),
		Refetches:     c.refetches.Load(),
		Errors:        c.errors.Load(),
		Invalidations: c.invalidations.Load(),
		Evictions:     c.evictions.Load(),
		Entries:       entries,
	}
}
