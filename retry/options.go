package retry

import (
	"time"
)

// Config retry configuration
type Config struct {
	maxAttempts int                          // total attempts including the first (default 3)
	backoff     BackoffStrategy              // backoff strategy (default exponential)
	condition   RetryCondition               // retry condition (default retry on any error)
	onRetry     func(attempt int, err error) // callback before each retry
	timeout     time.Duration                // per-attempt timeout (0 means unlimited)
}

// defaultConfig default configuration
func defaultConfig() *Config {
	return &Config{
		maxAttempts: 3,
		backoff:     ExponentialBackoff(time.Second),
		condition:   AlwaysRetry(),
	}
}

// Option configuration option function
type Option func(*Config)

// MaxAttempts sets the total attempt count
func MaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// Backoff sets the backoff strategy
func Backoff(b BackoffStrategy) Option {
	return func(c *Config) {
		if b != nil {
			c.backoff = b
		}
	}
}

// Condition sets the retry condition
func Condition(cond RetryCondition) Option {
	return func(c *Config) {
		if cond != nil {
			c.condition = cond
		}
	}
}

// OnRetry sets the retry callback
func OnRetry(f func(attempt int, err error)) Option {
	return func(c *Config) {
		c.onRetry = f
	}
}

// Timeout sets the per-attempt timeout
func Timeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.timeout = d
		}
	}
}
