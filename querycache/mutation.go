package querycache

import (
	"context"

	"go.uber.org/zap"

	"github.com/jobdeck/go-querycache/retry"
)

// MutationFunc performs a write against the backing source
type MutationFunc func(ctx context.Context, input any) (any, error)

// MutationOption configures a Mutation
type MutationOption func(*Mutation)

// WithInvalidateKeys invalidates the given key prefixes after each
// successful execution
func WithInvalidateKeys(prefixes ...Key) MutationOption {
	return func(m *Mutation) { m.invalidate = prefixes }
}

// WithOnSuccess registers a callback run after a successful execution,
// before invalidation
func WithOnSuccess(fn func(ctx context.Context, result, input any)) MutationOption {
	return func(m *Mutation) { m.onSuccess = fn }
}

// WithOnError registers a callback run when execution fails after retries
func WithOnError(fn func(ctx context.Context, err error, input any)) MutationOption {
	return func(m *Mutation) { m.onError = fn }
}

// WithMutationRetry enables bounded retry for the mutation
// Mutations do not retry unless asked to: writes are not assumed idempotent
func WithMutationRetry(cfg RetryConfig) MutationOption {
	return func(m *Mutation) { m.retry = cfg }
}

// Mutation a write operation bound to the cache
//
// Do executes the write, then runs the success callback and invalidates the
// configured key prefixes so dependent queries refetch.
type Mutation struct {
	client *Client
	fn     MutationFunc

	invalidate []Key
	onSuccess  func(ctx context.Context, result, input any)
	onError    func(ctx context.Context, err error, input any)
	retry      RetryConfig
}

// NewMutation binds a write operation to the cache client
func (c *Client) NewMutation(fn MutationFunc, opts ...MutationOption) *Mutation {
	m := &Mutation{
		client: c,
		fn:     fn,
		retry:  RetryConfig{MaxRetries: RetryCount(0)},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Do executes the mutation with input
func (m *Mutation) Do(ctx context.Context, input any) (any, error) {
	if m.client.closed.Load() {
		return nil, ErrClientClosed
	}

	opts := []retry.Option{retry.MaxAttempts(m.retry.MaxAttempts())}
	if m.retry.MaxAttempts() > 1 {
		opts = append(opts, retry.Backoff(
			retry.ExponentialBackoff(m.retry.BaseDelay, retry.WithMaxDelay(m.retry.MaxDelay))))
	}

	result, err := retry.DoWithData(ctx, func() (any, error) {
		return m.fn(ctx, input)
	}, opts...)
	if err != nil {
		wrapped := ErrMutationFailed.Wrap(err)
		m.client.log.WarnCtx(ctx, "mutation failed", zap.Error(wrapped))
		if m.onError != nil {
			m.onError(ctx, wrapped, input)
		}
		return nil, wrapped
	}

	if m.onSuccess != nil {
		m.onSuccess(ctx, result, input)
	}
	if len(m.invalidate) > 0 {
		if err := m.client.Invalidate(ctx, m.invalidate...); err != nil {
			return result, err
		}
	}
	return result, nil
}
