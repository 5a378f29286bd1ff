package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	cfg.Enabled = true
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = time.Millisecond
	}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestFetch_MissBlocksThenHits(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})

	var calls atomic.Int32
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "v1", nil
	}

	snap, err := client.Fetch(context.Background(), NewKey("jobs", "active"), fn)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if snap.Value != "v1" || snap.State != StateFresh {
		t.Errorf("Fetch() = %v (%v), want v1 (fresh)", snap.Value, snap.State)
	}

	// Second call within the window must not touch the fetch function
	snap, err = client.Fetch(context.Background(), NewKey("jobs", "active"), fn)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if snap.Value != "v1" {
		t.Errorf("Fetch() = %v, want cached v1", snap.Value)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}

	stats := client.Stats()
	if stats.Misses != 1 || stats.Hits != 1 {
		t.Errorf("stats = %d misses / %d hits, want 1/1", stats.Misses, stats.Hits)
	}
}

func TestFetch_ConcurrentCallersShareOneFetch(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := client.Fetch(context.Background(), NewKey("jobs"), fn)
			results[i], errs[i] = snap.Value, err
		}(i)
	}

	// Let every caller join the flight before releasing it
	waitFor(t, time.Second, func() bool { return calls.Load() == 1 }, "fetch never started")
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d error = %v", i, errs[i])
		}
		if results[i] != "shared" {
			t.Errorf("caller %d value = %v, want shared", i, results[i])
		}
	}
}

func TestFetch_StaleServesCachedAndRefetchesOnce(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})

	var calls atomic.Int32
	fn := func(ctx context.Context) (any, error) {
		return int(calls.Add(1)), nil
	}

	key := NewKey("jobs", "detail", "42")
	if _, err := client.Fetch(context.Background(), key, fn, WithStaleTime(0)); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	// Zero stale time: the value is already stale, so this call must return
	// the cached value immediately and trigger exactly one refetch
	snap, err := client.Fetch(context.Background(), key, fn, WithStaleTime(0))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if snap.Value != 1 {
		t.Errorf("stale Fetch() = %v, want cached 1", snap.Value)
	}

	waitFor(t, time.Second, func() bool { return calls.Load() == 2 }, "background refetch never ran")

	waitFor(t, time.Second, func() bool {
		got, err := client.Get(context.Background(), key)
		return err == nil && got.Value == 2
	}, "refetched value never landed")
}

func TestFetch_CancelReleasesCallerNotFlight(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})

	release := make(chan struct{})
	fn := func(ctx context.Context) (any, error) {
		<-release
		return "late", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.Fetch(ctx, NewKey("slow"), fn)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Fetch() error = %v, want context.Canceled", err)
	}

	// The flight keeps running and its result still lands in the cache
	close(release)
	waitFor(t, time.Second, func() bool {
		snap, err := client.Get(context.Background(), NewKey("slow"))
		return err == nil && snap.Value == "late"
	}, "abandoned flight result never landed")
}

func TestFetch_RetryBudgetAndStaleWhileError(t *testing.T) {
	client := newTestClient(t, Config{
		StaleTime: time.Minute,
		Retry:     RetryConfig{MaxRetries: RetryCount(1), BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})

	var calls atomic.Int32
	healthy := atomic.Bool{}
	healthy.Store(true)
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		if healthy.Load() {
			return "good", nil
		}
		return nil, errors.New("backend down")
	}

	key := NewKey("applications")
	if _, err := client.Fetch(context.Background(), key, fn); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	healthy.Store(false)
	calls.Store(0)

	_, err := client.Refetch(context.Background(), key)
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("Refetch() error = %v, want ErrFetchFailed", err)
	}
	// MaxRetries=1 means two attempts total
	if got := calls.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}

	// The previous value must survive the failure
	snap, err := client.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if snap.State != StateError {
		t.Errorf("state = %v, want error", snap.State)
	}
	if !snap.HasValue || snap.Value != "good" {
		t.Errorf("retained value = %v, want good", snap.Value)
	}
	if !errors.Is(snap.Err, ErrFetchFailed) {
		t.Errorf("snapshot err = %v, want ErrFetchFailed", snap.Err)
	}

	// And the entry classifies as stale, so reads keep serving it
	got, err := client.Fetch(context.Background(), key, fn)
	if err != nil {
		t.Fatalf("Fetch() after failure error = %v", err)
	}
	if got.Value != "good" {
		t.Errorf("Fetch() after failure = %v, want good", got.Value)
	}
}

func TestInvalidate_PrefixMatching(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})
	ctx := context.Background()

	seed := map[string]Key{
		"active": NewKey("jobs", "active"),
		"detail": NewKey("jobs", "detail", "42"),
		"apps":   NewKey("applications"),
	}
	for name, key := range seed {
		if err := client.Set(ctx, key, name); err != nil {
			t.Fatalf("Set(%v) error = %v", key, err)
		}
	}

	if err := client.Invalidate(ctx, NewKey("jobs")); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	for name, key := range seed {
		snap, err := client.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get(%v) error = %v", key, err)
		}
		wantStale := name != "apps"
		if gotStale := snap.State == StateStale; gotStale != wantStale {
			t.Errorf("%s state = %v, want stale=%v", name, snap.State, wantStale)
		}
	}
}

func TestInvalidate_EagerRefetchForSubscribed(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})
	ctx := context.Background()

	var calls atomic.Int32
	fn := func(fetchCtx context.Context) (any, error) {
		return int(calls.Add(1)), nil
	}

	key := NewKey("jobs", "active")
	sub, _, err := client.Subscribe(ctx, key, fn)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	// Initial background fetch triggered by the subscription
	waitFor(t, time.Second, func() bool { return calls.Load() == 1 }, "initial fetch never ran")
	drainUntil(t, sub, UpdateValue)

	if err := client.Invalidate(ctx, NewKey("jobs")); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	// Subscribed entries refetch eagerly
	waitFor(t, time.Second, func() bool { return calls.Load() == 2 }, "eager refetch never ran")

	sawInvalidated := false
	for {
		u := drainUntilAny(t, sub)
		if u.Kind == UpdateInvalidated {
			sawInvalidated = true
			continue
		}
		if u.Kind == UpdateValue {
			if u.Value != 2 {
				t.Errorf("refetched value = %v, want 2", u.Value)
			}
			break
		}
	}
	if !sawInvalidated {
		t.Error("no invalidation update delivered")
	}
}

func TestInvalidate_DuringFlightLandsStale(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})
	ctx := context.Background()

	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(fetchCtx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			<-release
		}
		return int(calls.Load()), nil
	}

	key := NewKey("jobs", "active")
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = client.Fetch(ctx, key, fn)
	}()
	waitFor(t, time.Second, func() bool { return calls.Load() == 1 }, "fetch never started")

	// The flight started before this invalidation, so its result carries
	// pre-invalidation data and must not land fresh
	if err := client.Invalidate(ctx, NewKey("jobs")); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	close(release)
	<-done

	snap, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if snap.State != StateStale {
		t.Errorf("state after invalidate-during-flight = %v, want stale", snap.State)
	}
	if snap.Value != 1 {
		t.Errorf("value = %v, want 1", snap.Value)
	}

	// No subscriber: the stale entry must not refetch on its own
	time.Sleep(30 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1 (lazy)", got)
	}
}

func TestInvalidate_DuringFlightRefetchesSubscribed(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})
	ctx := context.Background()

	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(fetchCtx context.Context) (any, error) {
		n := calls.Add(1)
		if n == 1 {
			<-release
		}
		return int(n), nil
	}

	key := NewKey("jobs", "active")
	sub, _, err := client.Subscribe(ctx, key, fn)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	waitFor(t, time.Second, func() bool { return calls.Load() == 1 }, "initial fetch never started")

	if err := client.Invalidate(ctx, NewKey("jobs")); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	close(release)

	// The pre-invalidation flight lands stale; the subscribed entry must
	// then refetch immediately and land fresh
	waitFor(t, time.Second, func() bool { return calls.Load() == 2 }, "eager refetch never ran")
	waitFor(t, time.Second, func() bool {
		snap, err := client.Get(ctx, key)
		return err == nil && snap.State == StateFresh && snap.Value == 2
	}, "refetched value never landed fresh")
}

func TestFetch_ZeroRetriesMeansSingleAttempt(t *testing.T) {
	client := newTestClient(t, Config{
		StaleTime: time.Minute,
		Retry:     RetryConfig{MaxRetries: RetryCount(0), BaseDelay: time.Millisecond},
	})

	var calls atomic.Int32
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, errors.New("backend down")
	}

	_, err := client.Fetch(context.Background(), NewKey("jobs"), fn)
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("Fetch() error = %v, want ErrFetchFailed", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (retries disabled)", got)
	}
}

func TestSubscribe_UnsubscribedEntriesStayLazy(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})
	ctx := context.Background()

	var calls atomic.Int32
	fn := func(fetchCtx context.Context) (any, error) {
		return int(calls.Add(1)), nil
	}

	key := NewKey("jobs", "detail", "7")
	if _, err := client.Fetch(ctx, key, fn); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if err := client.Invalidate(ctx, NewKey("jobs")); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	// No subscriber: the invalidated entry must not refetch on its own
	time.Sleep(30 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("fetch calls after invalidation = %d, want 1 (lazy)", got)
	}

	// The next read serves the stale value and refreshes in the background
	snap, err := client.Fetch(ctx, key, fn)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if snap.Value != 1 {
		t.Errorf("stale read = %v, want 1", snap.Value)
	}
	waitFor(t, time.Second, func() bool { return calls.Load() == 2 }, "lazy refetch never ran")
}

func TestGC_SweepEvictsIdleEntries(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute, GCTime: time.Hour})
	ctx := context.Background()

	key := NewKey("ephemeral")
	if err := client.Set(ctx, key, "x", WithGCTime(5*time.Millisecond)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Window not elapsed yet
	if removed := client.Sweep(time.Now()); removed != 0 {
		t.Errorf("early Sweep() = %d, want 0", removed)
	}

	time.Sleep(10 * time.Millisecond)
	if removed := client.Sweep(time.Now()); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Get() after sweep error = %v, want ErrEntryNotFound", err)
	}
	if got := client.Stats().Evictions; got != 1 {
		t.Errorf("evictions = %d, want 1", got)
	}
}

func TestGC_SubscriberExemptsEntry(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})
	ctx := context.Background()

	key := NewKey("watched")
	fn := func(fetchCtx context.Context) (any, error) { return "v", nil }

	sub, _, err := client.Subscribe(ctx, key, fn, WithGCTime(5*time.Millisecond))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if removed := client.Sweep(time.Now()); removed != 0 {
		t.Errorf("Sweep() with live subscriber = %d, want 0", removed)
	}

	// Releasing the last subscriber starts the gc clock
	sub.Close()
	waitFor(t, time.Second, func() bool {
		_, err := client.Get(ctx, key)
		return errors.Is(err, ErrEntryNotFound)
	}, "entry never evicted after last unsubscribe")
}

func TestGC_ResubscribeRescuesEntry(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})
	ctx := context.Background()

	key := NewKey("rescued")
	fn := func(fetchCtx context.Context) (any, error) { return "v", nil }

	sub1, _, err := client.Subscribe(ctx, key, fn, WithGCTime(50*time.Millisecond))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	sub1.Close()

	// Re-subscribe before the gc timer fires
	sub2, _, err := client.Subscribe(ctx, key, fn, WithGCTime(50*time.Millisecond))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub2.Close()

	time.Sleep(80 * time.Millisecond)
	if _, err := client.Get(ctx, key); err != nil {
		t.Errorf("entry evicted despite active subscriber: %v", err)
	}
}

func TestMutation_InvalidatesOnSuccess(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})
	ctx := context.Background()

	if err := client.Set(ctx, NewKey("jobs", "active"), "old"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var gotInput any
	mutation := client.NewMutation(
		func(mutCtx context.Context, input any) (any, error) {
			gotInput = input
			return "created", nil
		},
		WithInvalidateKeys(NewKey("jobs")),
	)

	result, err := mutation.Do(ctx, "payload")
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if result != "created" || gotInput != "payload" {
		t.Errorf("Do() = %v with input %v", result, gotInput)
	}

	snap, err := client.Get(ctx, NewKey("jobs", "active"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if snap.State != StateStale {
		t.Errorf("state after mutation = %v, want stale", snap.State)
	}
}

func TestMutation_NoRetryByDefault(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})

	var calls atomic.Int32
	mutation := client.NewMutation(func(ctx context.Context, input any) (any, error) {
		calls.Add(1)
		return nil, errors.New("conflict")
	})

	_, err := mutation.Do(context.Background(), nil)
	if !errors.Is(err, ErrMutationFailed) {
		t.Fatalf("Do() error = %v, want ErrMutationFailed", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry)", got)
	}
}

func TestMutation_OnErrorCallback(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})

	var cbErr error
	mutation := client.NewMutation(
		func(ctx context.Context, input any) (any, error) {
			return nil, errors.New("rejected")
		},
		WithOnError(func(ctx context.Context, err error, input any) { cbErr = err }),
	)

	_, _ = mutation.Do(context.Background(), nil)
	if !errors.Is(cbErr, ErrMutationFailed) {
		t.Errorf("onError err = %v, want ErrMutationFailed", cbErr)
	}
}

func TestClient_ClosedRejectsOperations(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	fn := func(ctx context.Context) (any, error) { return nil, nil }
	if _, err := client.Fetch(context.Background(), NewKey("k"), fn); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Fetch() error = %v, want ErrClientClosed", err)
	}
	if err := client.Invalidate(context.Background(), NewKey("k")); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Invalidate() error = %v, want ErrClientClosed", err)
	}
	// Close is idempotent
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestFetch_InvalidKey(t *testing.T) {
	client := newTestClient(t, Config{StaleTime: time.Minute})

	fn := func(ctx context.Context) (any, error) { return nil, nil }
	if _, err := client.Fetch(context.Background(), Key{}, fn); !errors.Is(err, ErrKeyInvalid) {
		t.Errorf("Fetch(empty key) error = %v, want ErrKeyInvalid", err)
	}
}

// drainUntil reads updates until one of the wanted kind arrives
func drainUntil(t *testing.T, sub *Subscription, kind UpdateKind) Update {
	t.Helper()
	for {
		u := drainUntilAny(t, sub)
		if u.Kind == kind {
			return u
		}
	}
}

// drainUntilAny reads the next update or fails after a timeout
func drainUntilAny(t *testing.T, sub *Subscription) Update {
	t.Helper()
	select {
	case u := <-sub.Updates():
		return u
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
		return Update{}
	}
}
