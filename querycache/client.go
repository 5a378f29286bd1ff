package querycache

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jobdeck/go-querycache/logger"
)

// FetchOption per-call overrides for Fetch and Subscribe
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	staleTime *time.Duration
	gcTime    *time.Duration
}

// WithStaleTime overrides the staleness window for this key
// Zero means the value is stale as soon as it lands
func WithStaleTime(d time.Duration) FetchOption {
	return func(o *fetchOptions) { o.staleTime = &d }
}

// WithGCTime overrides the idle retention window for this key
func WithGCTime(d time.Duration) FetchOption {
	return func(o *fetchOptions) { o.gcTime = &d }
}

// Client key-addressed query cache
//
// Fetch is the read path: fresh values return immediately, stale values
// return immediately while one background refetch runs, missing values block
// on a deduplicated fetch. Invalidate marks entries stale by key prefix.
// Entries with no subscribers are garbage collected after their gc window.
type Client struct {
	cfg     Config
	store   *entryStore
	coord   *coordinator
	gc      *gcController
	counter statsCounters
	log     *logger.CtxZapLogger
	closed  atomic.Bool
}

// NewClient creates a cache client from cfg (defaults applied, then validated)
func NewClient(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.GetLogger("querycache")
	store := newEntryStore()

	c := &Client{
		cfg:   cfg,
		store: store,
		log:   log,
	}

	coord, err := newCoordinator(store, cfg.Retry, &c.counter, log)
	if err != nil {
		return nil, err
	}
	c.coord = coord
	c.gc = newGCController(c.evictKey)

	return c, nil
}

// Fetch returns the value for key, loading it through fn when needed
//
// Behavior by freshness:
//   - fresh: the cached snapshot is returned, fn is not called
//   - stale: the cached snapshot is returned and one background refetch runs
//   - missing: the caller blocks until the (deduplicated) fetch resolves
//
// Cancelling ctx while blocked releases this caller; the fetch itself keeps
// running and its result is cached for everyone else.
func (c *Client) Fetch(ctx context.Context, key Key, fn FetchFunc, opts ...FetchOption) (EntrySnapshot, error) {
	if c.closed.Load() {
		return EntrySnapshot{}, ErrClientClosed
	}
	canonical, err := key.Canonical()
	if err != nil {
		return EntrySnapshot{}, err
	}

	staleTime, gcTime := c.resolveWindows(key, opts)
	snap := c.store.getOrCreate(key, canonical, staleTime, gcTime, fn)

	switch classify(snap, time.Now()) {
	case FreshnessFresh:
		c.counter.hits.Add(1)
		return snap, nil
	case FreshnessStale:
		c.counter.staleHits.Add(1)
		c.coord.refreshAsync(ctx, canonical)
		return snap, nil
	default:
		c.counter.misses.Add(1)
		return c.coord.fetchBlocking(ctx, canonical)
	}
}

// Get returns the current snapshot for key without triggering a fetch
func (c *Client) Get(ctx context.Context, key Key) (EntrySnapshot, error) {
	if c.closed.Load() {
		return EntrySnapshot{}, ErrClientClosed
	}
	canonical, err := key.Canonical()
	if err != nil {
		return EntrySnapshot{}, err
	}
	snap, ok := c.store.snapshot(canonical)
	if !ok {
		return EntrySnapshot{}, ErrEntryNotFound.WithMsgf("no entry for key %s", canonical)
	}
	return snap, nil
}

// Set writes value directly into the cache as a fresh entry
// Used to seed entries from mutation results without a round trip
func (c *Client) Set(ctx context.Context, key Key, value any, opts ...FetchOption) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	canonical, err := key.Canonical()
	if err != nil {
		return err
	}

	staleTime, gcTime := c.resolveWindows(key, opts)
	c.store.getOrCreate(key, canonical, staleTime, gcTime, nil)
	snap, subs := c.store.setSuccess(canonical, value, time.Now())
	notify(subs, Update{
		Kind:      UpdateValue,
		Key:       snap.Key,
		Value:     snap.Value,
		HasValue:  true,
		State:     snap.State,
		FetchedAt: snap.FetchedAt,
	})
	return nil
}

// Subscribe registers an observer on key and returns the current snapshot
//
// The entry is fetched (or refreshed) in the background when it is missing
// or stale; updates arrive on the subscription channel. While at least one
// subscription is open the entry is exempt from garbage collection.
func (c *Client) Subscribe(ctx context.Context, key Key, fn FetchFunc, opts ...FetchOption) (*Subscription, EntrySnapshot, error) {
	if c.closed.Load() {
		return nil, EntrySnapshot{}, ErrClientClosed
	}
	canonical, err := key.Canonical()
	if err != nil {
		return nil, EntrySnapshot{}, err
	}

	staleTime, gcTime := c.resolveWindows(key, opts)
	snap := c.store.getOrCreate(key, canonical, staleTime, gcTime, fn)

	var sub *Subscription
	sub = newSubscription(key, canonical, func() {
		remaining, _ := c.store.removeSubscriber(canonical, sub.id)
		if remaining == 0 {
			c.gc.schedule(canonical, gcTime)
		}
	})
	c.store.addSubscriber(canonical, sub)
	c.gc.cancel(canonical)

	if classify(snap, time.Now()) != FreshnessFresh {
		c.coord.refreshAsync(ctx, canonical)
	}
	return sub, snap, nil
}

// Refetch forces a refresh of key regardless of freshness and blocks for
// the result; concurrent refetches of the same key share one execution
func (c *Client) Refetch(ctx context.Context, key Key) (EntrySnapshot, error) {
	if c.closed.Load() {
		return EntrySnapshot{}, ErrClientClosed
	}
	canonical, err := key.Canonical()
	if err != nil {
		return EntrySnapshot{}, err
	}
	if _, ok := c.store.snapshot(canonical); !ok {
		return EntrySnapshot{}, ErrEntryNotFound.WithMsgf("no entry for key %s", canonical)
	}
	c.counter.refetches.Add(1)
	return c.coord.fetchBlocking(ctx, canonical)
}

// Invalidate marks every entry matching any of the key prefixes as stale
//
// Subscribed entries are refetched eagerly; unsubscribed entries stay stale
// and refresh lazily on their next Fetch. An empty prefix matches nothing.
func (c *Client) Invalidate(ctx context.Context, prefixes ...Key) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	c.counter.invalidations.Add(1)

	for _, prefix := range prefixes {
		if len(prefix) == 0 {
			continue
		}
		stale, eager := c.store.invalidateMatching(prefix)
		for _, snap := range stale {
			subs := c.subscribersOf(snap.Key)
			notify(subs, Update{
				Kind:      UpdateInvalidated,
				Key:       snap.Key,
				Value:     snap.Value,
				HasValue:  snap.HasValue,
				State:     StateStale,
				FetchedAt: snap.FetchedAt,
			})
		}
		for _, canonical := range eager {
			c.coord.refreshAsync(ctx, canonical)
		}
		if len(stale) > 0 {
			c.log.DebugCtx(ctx, "invalidated entries",
				zap.String("prefix", prefix.String()),
				zap.Int("count", len(stale)))
		}
	}
	return nil
}

// Sweep removes every unsubscribed entry whose gc window has elapsed at now
// and returns the eviction count. The component schedules this periodically.
func (c *Client) Sweep(now time.Time) int {
	removed := c.store.sweep(now)
	if removed > 0 {
		c.counter.evictions.Add(uint64(removed))
		c.log.Debug("gc sweep", zap.Int("evicted", removed))
	}
	return removed
}

// Stats returns cumulative counters and the current entry count
func (c *Client) Stats() Stats {
	return c.counter.snapshot(c.store.len())
}

// Close releases the client; subsequent calls return ErrClientClosed
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.gc.stop()
	c.coord.close()
	return nil
}

// evictKey runs the single-key sweep when a gc timer fires
func (c *Client) evictKey(canonical string) {
	if c.store.sweepKey(canonical, time.Now()) {
		c.counter.evictions.Add(1)
	}
}

// resolveWindows applies per-call overrides on top of configured prefixes
func (c *Client) resolveWindows(key Key, opts []FetchOption) (staleTime, gcTime time.Duration) {
	staleTime, gcTime = c.cfg.windowsFor(key)

	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.staleTime != nil {
		staleTime = *o.staleTime
	}
	if o.gcTime != nil {
		gcTime = *o.gcTime
	}
	return staleTime, gcTime
}

// subscribersOf copies the subscriber set of a key for notification
func (c *Client) subscribersOf(key Key) []*Subscription {
	canonical, err := key.Canonical()
	if err != nil {
		return nil
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	if e, ok := c.store.entries[canonical]; ok {
		return e.subscribersLocked()
	}
	return nil
}
