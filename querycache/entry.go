package querycache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntryState cache entry lifecycle state
type EntryState int8

const (
	// StateEmpty created but never fetched
	StateEmpty EntryState = iota
	// StateFetching an in-flight fetch exists for the key
	StateFetching
	// StateFresh last fetch succeeded within the staleness window
	StateFresh
	// StateStale value present but due for refresh
	StateStale
	// StateError last fetch failed; a previous value may still be present
	StateError
)

// String renders the state name
func (s EntryState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFetching:
		return "fetching"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// FetchFunc loads the value for a key
// The cache treats it as an opaque operation; transport is the caller's concern
type FetchFunc func(ctx context.Context) (any, error)

// entry mutable cache entry; all access is serialized by the owning store
type entry struct {
	key       Key
	canonical string

	value     any
	hasValue  bool
	fetchedAt time.Time
	state     EntryState
	err       error

	staleTime time.Duration
	gcTime    time.Duration
	fetchFn   FetchFunc

	subscribers map[uuid.UUID]*Subscription

	// invalidated set when an invalidation matches the key while a fetch is
	// in flight; the write-back lands the result as stale instead of fresh
	invalidated bool

	// idleSince marks when the entry last lost its final subscriber
	// (or was created/accessed without any); the GC deadline counts from here
	idleSince time.Time
}

// EntrySnapshot immutable view of an entry
type EntrySnapshot struct {
	Key             Key
	Value           any
	HasValue        bool
	FetchedAt       time.Time
	State           EntryState
	Err             error
	SubscriberCount int
	StaleTime       time.Duration
	GCTime          time.Duration
}

// entryStore key-addressed entry map
//
// Single logical owner of all entry state: every mutation happens behind the
// store mutex. Fetch execution itself runs outside the lock, so unrelated
// keys never serialize on each other's fetches.
type entryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func newEntryStore() *entryStore {
	return &entryStore{entries: make(map[string]*entry)}
}

// snapshotLocked builds an immutable view; callers hold the lock
func (e *entry) snapshotLocked() EntrySnapshot {
	return EntrySnapshot{
		Key:             e.key,
		Value:           e.value,
		HasValue:        e.hasValue,
		FetchedAt:       e.fetchedAt,
		State:           e.state,
		Err:             e.err,
		SubscriberCount: len(e.subscribers),
		StaleTime:       e.staleTime,
		GCTime:          e.gcTime,
	}
}

// subscribersLocked copies the subscriber set for notification outside the lock
func (e *entry) subscribersLocked() []*Subscription {
	if len(e.subscribers) == 0 {
		return nil
	}
	subs := make([]*Subscription, 0, len(e.subscribers))
	for _, s := range e.subscribers {
		subs = append(subs, s)
	}
	return subs
}

// getOrCreate returns the entry for canonical, creating it when absent
// The fetch function and window overrides of the latest caller win
func (s *entryStore) getOrCreate(key Key, canonical string, staleTime, gcTime time.Duration, fn FetchFunc) EntrySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[canonical]
	if !ok {
		e = &entry{
			key:         key,
			canonical:   canonical,
			state:       StateEmpty,
			staleTime:   staleTime,
			gcTime:      gcTime,
			subscribers: make(map[uuid.UUID]*Subscription),
			idleSince:   time.Now(),
		}
		s.entries[canonical] = e
	} else {
		e.staleTime = staleTime
		e.gcTime = gcTime
	}
	if fn != nil {
		e.fetchFn = fn
	}
	if len(e.subscribers) == 0 {
		e.idleSince = time.Now()
	}
	return e.snapshotLocked()
}

// snapshot returns a view of the entry, false when absent
func (s *entryStore) snapshot(canonical string) (EntrySnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[canonical]
	if !ok {
		return EntrySnapshot{}, false
	}
	return e.snapshotLocked(), true
}

// fetchFn returns the registered fetch function for the key
func (s *entryStore) fetchFn(canonical string) (FetchFunc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[canonical]
	if !ok || e.fetchFn == nil {
		return nil, false
	}
	return e.fetchFn, true
}

// setFetching transitions the entry to the fetching state
func (s *entryStore) setFetching(canonical string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[canonical]
	if !ok {
		return false
	}
	e.state = StateFetching
	return true
}

// setSuccess writes back a fetched value and returns the subscribers to notify
func (s *entryStore) setSuccess(canonical string, value any, now time.Time) (EntrySnapshot, []*Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[canonical]
	if !ok {
		return EntrySnapshot{}, nil
	}
	e.value = value
	e.hasValue = true
	e.fetchedAt = now
	e.err = nil
	if e.invalidated {
		// The flight predates an invalidation; its result is already stale
		e.invalidated = false
		e.state = StateStale
	} else {
		e.state = StateFresh
	}
	return e.snapshotLocked(), e.subscribersLocked()
}

// setFailure records a fetch failure, retaining any previous value
// (stale-while-error), and returns the subscribers to notify
func (s *entryStore) setFailure(canonical string, err error) (EntrySnapshot, []*Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[canonical]
	if !ok {
		return EntrySnapshot{}, nil
	}
	e.state = StateError
	e.err = err
	// An error state already classifies as stale
	e.invalidated = false
	return e.snapshotLocked(), e.subscribersLocked()
}

// invalidateMatching marks every entry equal to or prefixed by prefix as
// stale and reports which of them have active subscribers (eager refetch)
func (s *entryStore) invalidateMatching(prefix Key) (stale []EntrySnapshot, eager []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for canonical, e := range s.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		// Missing entries have nothing to mark
		if e.state == StateEmpty {
			continue
		}
		// A fetch that started before this invalidation carries pre-mutation
		// data; flag the entry so the write-back lands it stale
		if e.state == StateFetching {
			e.invalidated = true
			continue
		}
		e.state = StateStale
		stale = append(stale, e.snapshotLocked())
		if len(e.subscribers) > 0 {
			eager = append(eager, canonical)
		}
	}
	return stale, eager
}

// addSubscriber registers a subscription on the entry
func (s *entryStore) addSubscriber(canonical string, sub *Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[canonical]
	if !ok {
		return false
	}
	e.subscribers[sub.id] = sub
	return true
}

// removeSubscriber unregisters a subscription and returns the remaining count
func (s *entryStore) removeSubscriber(canonical string, id uuid.UUID) (remaining int, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[canonical]
	if !ok {
		return 0, false
	}
	if _, ok := e.subscribers[id]; !ok {
		return len(e.subscribers), false
	}
	delete(e.subscribers, id)
	if len(e.subscribers) == 0 {
		e.idleSince = time.Now()
	}
	return len(e.subscribers), true
}

// touch refreshes the idle clock of a zero-subscriber entry
func (s *entryStore) touch(canonical string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[canonical]; ok && len(e.subscribers) == 0 {
		e.idleSince = time.Now()
	}
}

// remove drops the entry
func (s *entryStore) remove(canonical string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, canonical)
}

// sweep removes entries with no subscribers that have been idle for at
// least their gc window; entries with an in-flight fetch are skipped so
// followers are never orphaned
func (s *entryStore) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for canonical, e := range s.entries {
		if len(e.subscribers) > 0 || e.state == StateFetching {
			continue
		}
		if now.Sub(e.idleSince) >= e.gcTime {
			delete(s.entries, canonical)
			removed++
		}
	}
	return removed
}

// sweepKey applies the sweep conditions to a single entry
func (s *entryStore) sweepKey(canonical string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[canonical]
	if !ok {
		return false
	}
	if len(e.subscribers) > 0 || e.state == StateFetching {
		return false
	}
	if now.Sub(e.idleSince) < e.gcTime {
		return false
	}
	delete(s.entries, canonical)
	return true
}

// len returns the stored entry count
func (s *entryStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
