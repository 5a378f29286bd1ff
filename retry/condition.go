package retry

import (
	"context"
	"errors"
	"net"
)

// RetryCondition retry condition interface
type RetryCondition interface {
	// ShouldRetry decides whether another attempt should be made
	// err: current error
	// attempt: current attempt number (starting from 1)
	ShouldRetry(err error, attempt int) bool
}

// alwaysRetry retries on any error
type alwaysRetry struct{}

// AlwaysRetry creates the condition that retries any error
func AlwaysRetry() RetryCondition {
	return &alwaysRetry{}
}

func (c *alwaysRetry) ShouldRetry(err error, attempt int) bool {
	return err != nil
}

// neverRetry never retries
type neverRetry struct{}

// NeverRetry creates the condition that never retries
func NeverRetry() RetryCondition {
	return &neverRetry{}
}

func (c *neverRetry) ShouldRetry(err error, attempt int) bool {
	return false
}

// retryOnErrors retries when the error matches one of the targets
type retryOnErrors struct {
	targets []error
}

// RetryOnErrors creates a condition matching specific errors (errors.Is)
func RetryOnErrors(targets ...error) RetryCondition {
	return &retryOnErrors{targets: targets}
}

func (c *retryOnErrors) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}

	for _, target := range c.targets {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// retryOnCondition custom predicate condition
type retryOnCondition struct {
	fn func(error) bool
}

// RetryOnCondition creates a condition from a predicate
func RetryOnCondition(fn func(error) bool) RetryCondition {
	return &retryOnCondition{fn: fn}
}

func (c *retryOnCondition) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	return c.fn(err)
}

// retryOnTemporaryError transient network error condition
type retryOnTemporaryError struct{}

// RetryOnTemporaryError creates a condition matching transient failures:
// context timeouts/cancellations and net.Error timeouts
func RetryOnTemporaryError() RetryCondition {
	return &retryOnTemporaryError{}
}

func (c *retryOnTemporaryError) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// notCondition negates a condition
type notCondition struct {
	condition RetryCondition
}

// Not negates a condition
func Not(condition RetryCondition) RetryCondition {
	return &notCondition{condition: condition}
}

func (c *notCondition) ShouldRetry(err error, attempt int) bool {
	return !c.condition.ShouldRetry(err, attempt)
}
