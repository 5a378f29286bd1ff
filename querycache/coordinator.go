package querycache

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jobdeck/go-querycache/logger"
	"github.com/jobdeck/go-querycache/retry"
)

// defaultPoolSize background refetch pool capacity
const defaultPoolSize = 64

// coordinator deduplicates fetch execution per key
//
// All fetches for a key funnel through one singleflight flight: concurrent
// callers of a missing key block on the same execution, and background
// refreshes of a stale key collapse into at most one in-flight fetch.
// Execution runs on a detached context so one caller cancelling never fails
// the flight for its followers.
type coordinator struct {
	store   *entryStore
	group   singleflight.Group
	pool    *ants.Pool
	retry   RetryConfig
	counter *statsCounters
	log     *logger.CtxZapLogger
}

func newCoordinator(store *entryStore, retryCfg RetryConfig, counter *statsCounters, log *logger.CtxZapLogger) (*coordinator, error) {
	pool, err := ants.NewPool(defaultPoolSize, ants.WithNonblocking(false))
	if err != nil {
		return nil, ErrConfigInvalid.Wrapf(err, "create refetch pool")
	}
	return &coordinator{
		store:   store,
		pool:    pool,
		retry:   retryCfg,
		counter: counter,
		log:     log,
	}, nil
}

// fetchBlocking joins (or starts) the flight for canonical and waits for it
//
// Cancelling ctx releases this caller only; the flight keeps running and its
// result still lands in the store for everyone else.
func (c *coordinator) fetchBlocking(ctx context.Context, canonical string) (EntrySnapshot, error) {
	ch := c.group.DoChan(canonical, func() (any, error) {
		return c.doFetch(logger.WithTraceID(context.Background(), logger.TraceIDFromContext(ctx)), canonical)
	})

	select {
	case <-ctx.Done():
		return EntrySnapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			snap, _ := c.store.snapshot(canonical)
			return snap, res.Err
		}
		return res.Val.(EntrySnapshot), nil
	}
}

// refreshAsync starts a background flight for canonical unless one is
// already running
func (c *coordinator) refreshAsync(ctx context.Context, canonical string) {
	if snap, ok := c.store.snapshot(canonical); ok && snap.State == StateFetching {
		return
	}
	// Entries seeded through Set have no fetch function; leave them stale
	// until a Fetch call registers one
	if _, ok := c.store.fetchFn(canonical); !ok {
		return
	}

	bgCtx := logger.WithTraceID(context.Background(), logger.TraceIDFromContext(ctx))
	err := c.pool.Submit(func() {
		c.group.Do(canonical, func() (any, error) {
			return c.doFetch(bgCtx, canonical)
		})
	})
	if err != nil {
		// Pool saturated: run the flight inline on a detached goroutine
		// rather than silently dropping the refresh
		c.log.WarnCtx(ctx, "refetch pool rejected task, running inline",
			zap.String("key", canonical), zap.Error(err))
		go c.group.Do(canonical, func() (any, error) {
			return c.doFetch(bgCtx, canonical)
		})
	}
	c.counter.refetches.Add(1)
}

// doFetch executes one flight: bounded retry around the entry's fetch
// function, write-back, subscriber notification
func (c *coordinator) doFetch(ctx context.Context, canonical string) (EntrySnapshot, error) {
	fn, ok := c.store.fetchFn(canonical)
	if !ok {
		return EntrySnapshot{}, ErrFetchFnMissing.WithMsgf("no fetch function for key %s", canonical)
	}

	c.store.setFetching(canonical)
	c.counter.fetches.Add(1)

	started := time.Now()
	value, err := retry.DoWithData(ctx, func() (any, error) {
		return fn(ctx)
	},
		retry.MaxAttempts(c.retry.MaxAttempts()),
		retry.Backoff(retry.ExponentialBackoff(c.retry.BaseDelay, retry.WithMaxDelay(c.retry.MaxDelay))),
		retry.OnRetry(func(attempt int, attemptErr error) {
			c.log.DebugCtx(ctx, "fetch attempt failed, retrying",
				zap.String("key", canonical),
				zap.Int("attempt", attempt),
				zap.Error(attemptErr))
		}),
	)

	if err != nil {
		c.counter.errors.Add(1)
		wrapped := ErrFetchFailed.Wrapf(err, "fetch %s failed after %d attempts", canonical, retry.Attempts(err))
		snap, subs := c.store.setFailure(canonical, wrapped)
		c.log.WarnCtx(ctx, "fetch failed",
			zap.String("key", canonical),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(wrapped))
		notify(subs, Update{
			Kind:      UpdateError,
			Key:       snap.Key,
			Value:     snap.Value,
			HasValue:  snap.HasValue,
			Err:       wrapped,
			State:     snap.State,
			FetchedAt: snap.FetchedAt,
		})
		return snap, wrapped
	}

	snap, subs := c.store.setSuccess(canonical, value, time.Now())
	if snap.State == StateStale {
		// Invalidated while in flight: the result landed stale. Forget the
		// completed flight so the eager refetch starts a new one instead of
		// joining this result; unsubscribed entries stay lazily stale.
		c.group.Forget(canonical)
		if snap.SubscriberCount > 0 {
			c.refreshAsync(ctx, canonical)
		}
	}
	c.log.DebugCtx(ctx, "fetch succeeded",
		zap.String("key", canonical),
		zap.Duration("elapsed", time.Since(started)))
	notify(subs, Update{
		Kind:      UpdateValue,
		Key:       snap.Key,
		Value:     snap.Value,
		HasValue:  snap.HasValue,
		State:     snap.State,
		FetchedAt: snap.FetchedAt,
	})
	return snap, nil
}

// close releases the refetch pool
func (c *coordinator) close() {
	c.pool.Release()
}

func notify(subs []*Subscription, u Update) {
	for _, sub := range subs {
		sub.deliver(u)
	}
}
