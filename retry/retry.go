// Package retry provides bounded retry with pluggable backoff strategies
package retry

import (
	"context"
	"errors"
	"time"
)

// Do performs operation, retrying on failure
// Returns the aggregated error if all attempts fail
func Do(ctx context.Context, operation func() error, opts ...Option) error {
	_, err := DoWithData(ctx, func() (struct{}, error) {
		return struct{}{}, operation()
	}, opts...)

	return err
}

// DoWithData performs an operation returning data, retrying on failure
func DoWithData[T any](ctx context.Context, operation func() (T, error), opts ...Option) (T, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var result T
	var errs []error

	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		// Bail out if the context is already done
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		var err error
		if cfg.timeout > 0 {
			// Per-attempt timeout
			opCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
			result, err = executeWithContext(opCtx, operation)
			cancel()
		} else {
			result, err = operation()
		}

		if err == nil {
			return result, nil
		}

		errs = append(errs, err)

		if !cfg.condition.ShouldRetry(err, attempt) {
			return result, &MultiError{Errors: errs, Attempts: attempt}
		}

		// Final attempt, no more waiting
		if attempt == cfg.maxAttempts {
			return result, &MultiError{Errors: errs, Attempts: attempt}
		}

		if cfg.onRetry != nil {
			cfg.onRetry(attempt, err)
		}

		backoff := cfg.backoff.Next(attempt)

		// Not enough time left before the deadline to wait out the backoff
		if deadline, ok := ctx.Deadline(); ok {
			if time.Until(deadline) < backoff {
				errs = append(errs, context.DeadlineExceeded)
				return result, &MultiError{Errors: errs, Attempts: attempt}
			}
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}

	return result, &MultiError{Errors: errs, Attempts: cfg.maxAttempts}
}

// executeWithContext runs the operation under a timeout context
func executeWithContext[T any](ctx context.Context, operation func() (T, error)) (T, error) {
	type result struct {
		data T
		err  error
	}

	ch := make(chan result, 1)

	go func() {
		data, err := operation()
		ch <- result{data: data, err: err}
	}()

	select {
	case res := <-ch:
		return res.data, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Attempts returns the attempt count recorded in err, 0 if err carries none
func Attempts(err error) int {
	var multiErr *MultiError
	if errors.As(err, &multiErr) {
		return multiErr.Attempts
	}
	return 0
}

// AllErrors returns every per-attempt error recorded in err
func AllErrors(err error) []error {
	var multiErr *MultiError
	if errors.As(err, &multiErr) {
		return multiErr.Errors
	}
	return nil
}
