package querycache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Default windows applied when configuration leaves them unset
const (
	DefaultStaleTime     = 30 * time.Second
	DefaultGCTime        = 5 * time.Minute
	DefaultSweepInterval = time.Minute

	DefaultRetryMax       = 2
	DefaultRetryBaseDelay = 200 * time.Millisecond
	DefaultRetryMaxDelay  = 5 * time.Second
)

// RetryConfig bounded retry policy for failed fetches
//
// MaxRetries counts retries after the first attempt: MaxRetries=1 means two
// attempts total. A nil MaxRetries means unset (default applies); an
// explicit zero disables retries. Delays grow exponentially from BaseDelay,
// capped at MaxDelay.
type RetryConfig struct {
	MaxRetries *int          `mapstructure:"max_retries" yaml:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// RetryCount expresses an explicit retry count, distinguishing a configured
// zero (no retries) from an unset field
func RetryCount(n int) *int {
	return &n
}

// MaxAttempts returns the total attempt budget: retries plus the first attempt
func (r RetryConfig) MaxAttempts() int {
	if r.MaxRetries == nil {
		return DefaultRetryMax + 1
	}
	return *r.MaxRetries + 1
}

// QueryConfig per-key-prefix window overrides
//
// The longest matching prefix wins when several rules match a key.
type QueryConfig struct {
	Name      string        `mapstructure:"name" yaml:"name"`
	KeyPrefix []string      `mapstructure:"key_prefix" yaml:"key_prefix"`
	StaleTime time.Duration `mapstructure:"stale_time" yaml:"stale_time"`
	GCTime    time.Duration `mapstructure:"gc_time" yaml:"gc_time"`
}

// InvalidationRule binds a dispatched event to cache key prefixes
type InvalidationRule struct {
	Event       string     `mapstructure:"event" yaml:"event"`
	KeyPrefixes [][]string `mapstructure:"key_prefixes" yaml:"key_prefixes"`
}

// Config querycache configuration
type Config struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	StaleTime     time.Duration `mapstructure:"stale_time" yaml:"stale_time"`
	GCTime        time.Duration `mapstructure:"gc_time" yaml:"gc_time"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`

	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`

	Queries      []QueryConfig      `mapstructure:"queries" yaml:"queries"`
	Invalidation []InvalidationRule `mapstructure:"invalidation" yaml:"invalidation"`
}

// DefaultConfig returns a configuration with all defaults applied
func DefaultConfig() Config {
	cfg := Config{Enabled: true}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields
func (c *Config) ApplyDefaults() {
	if c.StaleTime == 0 {
		c.StaleTime = DefaultStaleTime
	}
	if c.GCTime == 0 {
		c.GCTime = DefaultGCTime
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = DefaultRetryBaseDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = DefaultRetryMaxDelay
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.StaleTime, validation.Min(time.Duration(0))),
		validation.Field(&c.GCTime, validation.Min(time.Duration(0))),
		validation.Field(&c.SweepInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.Retry),
		validation.Field(&c.Queries),
		validation.Field(&c.Invalidation),
	)
	if err != nil {
		return ErrConfigInvalid.Wrap(err)
	}
	return nil
}

// Validate validates the retry policy
func (r RetryConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MaxRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&r.BaseDelay, validation.Min(time.Duration(0))),
		validation.Field(&r.MaxDelay, validation.Min(time.Duration(0))),
	)
}

// Validate validates a per-prefix override
func (q QueryConfig) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Name, validation.Required),
		validation.Field(&q.KeyPrefix, validation.Required, validation.Length(1, 0)),
		validation.Field(&q.StaleTime, validation.Min(time.Duration(0))),
		validation.Field(&q.GCTime, validation.Min(time.Duration(0))),
	)
}

// Validate validates an invalidation rule
func (r InvalidationRule) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Event, validation.Required),
		validation.Field(&r.KeyPrefixes, validation.Required, validation.Length(1, 0)),
	)
}

// windowsFor resolves the stale/gc windows for a key: the longest matching
// prefix override wins, then module-level defaults
func (c Config) windowsFor(key Key) (staleTime, gcTime time.Duration) {
	staleTime, gcTime = c.StaleTime, c.GCTime

	best := -1
	for _, q := range c.Queries {
		prefix := make(Key, len(q.KeyPrefix))
		for i, p := range q.KeyPrefix {
			prefix[i] = p
		}
		if !key.HasPrefix(prefix) || len(q.KeyPrefix) <= best {
			continue
		}
		best = len(q.KeyPrefix)
		if q.StaleTime > 0 {
			staleTime = q.StaleTime
		}
		if q.GCTime > 0 {
			gcTime = q.GCTime
		}
	}
	return staleTime, gcTime
}
