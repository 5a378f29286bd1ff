package querycache

import "time"

// Freshness classification of an entry at a point in time
type Freshness int8

const (
	// FreshnessMissing no usable value: never fetched, or evicted
	FreshnessMissing Freshness = iota
	// FreshnessFresh value within its staleness window, serve as-is
	FreshnessFresh
	// FreshnessStale value usable but due for refresh
	FreshnessStale
)

// String renders the classification name
func (f Freshness) String() string {
	switch f {
	case FreshnessMissing:
		return "missing"
	case FreshnessFresh:
		return "fresh"
	case FreshnessStale:
		return "stale"
	default:
		return "unknown"
	}
}

// classify evaluates an entry snapshot against its staleness window at now
//
// Entries without a value are missing regardless of state. An error state
// with a retained previous value classifies as stale: the value stays
// servable while refetches keep failing. A zero stale time means the value
// is considered stale the moment it lands.
func classify(snap EntrySnapshot, now time.Time) Freshness {
	if !snap.HasValue {
		return FreshnessMissing
	}
	if snap.State == StateStale || snap.State == StateError {
		return FreshnessStale
	}
	if snap.StaleTime <= 0 {
		return FreshnessStale
	}
	if now.Sub(snap.FetchedAt) < snap.StaleTime {
		return FreshnessFresh
	}
	return FreshnessStale
}
