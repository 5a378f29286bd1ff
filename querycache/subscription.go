package querycache

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// UpdateKind what changed on an observed entry
type UpdateKind int8

const (
	// UpdateValue a fetch landed a new value
	UpdateValue UpdateKind = iota
	// UpdateError a fetch failed after retries
	UpdateError
	// UpdateInvalidated the entry was marked stale by an invalidation
	UpdateInvalidated
)

// String renders the kind name
func (k UpdateKind) String() string {
	switch k {
	case UpdateValue:
		return "value"
	case UpdateError:
		return "error"
	case UpdateInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// Update state change delivered to subscribers
type Update struct {
	Kind      UpdateKind
	Key       Key
	Value     any
	HasValue  bool
	Err       error
	State     EntryState
	FetchedAt time.Time
}

// subscriptionBuffer default update channel capacity
const subscriptionBuffer = 16

// Subscription an active observer of one cache key
//
// Updates are delivered best-effort: a subscriber that stops draining its
// channel loses updates rather than blocking the cache. The latest state is
// always recoverable through Client.Get.
type Subscription struct {
	id        uuid.UUID
	key       Key
	canonical string

	ch   chan Update
	done chan struct{}

	closeOnce sync.Once
	unsub     func()
}

func newSubscription(key Key, canonical string, unsub func()) *Subscription {
	return &Subscription{
		id:        uuid.New(),
		key:       key,
		canonical: canonical,
		ch:        make(chan Update, subscriptionBuffer),
		done:      make(chan struct{}),
		unsub:     unsub,
	}
}

// ID returns the subscription identifier
func (s *Subscription) ID() uuid.UUID {
	return s.id
}

// Key returns the observed key
func (s *Subscription) Key() Key {
	return s.key
}

// Updates returns the update channel
// The channel is never closed; select on Done to detect termination
func (s *Subscription) Updates() <-chan Update {
	return s.ch
}

// Done is closed when the subscription terminates
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unregisters the subscription; the entry's gc clock starts when the
// last subscriber leaves. Safe to call multiple times.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		if s.unsub != nil {
			s.unsub()
		}
		close(s.done)
	})
}

// deliver pushes an update without ever blocking the cache
func (s *Subscription) deliver(u Update) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.ch <- u:
	default:
		// Slow subscriber: drop the oldest queued update and retry once,
		// keeping the channel biased toward the newest state
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- u:
		default:
		}
	}
}
