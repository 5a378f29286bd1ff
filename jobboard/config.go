package jobboard

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/jobdeck/go-querycache/querycache"
)

// Product staleness windows applied when configuration leaves them unset
//
// Jobs change rarely, applications move fast, the dashboard aggregates both.
const (
	DefaultJobsStaleTime         = 3 * time.Minute
	DefaultJobDetailStaleTime    = 5 * time.Minute
	DefaultApplicationsStaleTime = time.Minute
	DefaultDashboardStaleTime    = 30 * time.Second
)

// Config per-resource staleness windows for the job board
type Config struct {
	JobsStaleTime         time.Duration `mapstructure:"jobs_stale_time" yaml:"jobs_stale_time"`
	JobDetailStaleTime    time.Duration `mapstructure:"job_detail_stale_time" yaml:"job_detail_stale_time"`
	ApplicationsStaleTime time.Duration `mapstructure:"applications_stale_time" yaml:"applications_stale_time"`
	DashboardStaleTime    time.Duration `mapstructure:"dashboard_stale_time" yaml:"dashboard_stale_time"`
}

// DefaultConfig returns the product defaults
func DefaultConfig() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset windows
func (c *Config) ApplyDefaults() {
	if c.JobsStaleTime == 0 {
		c.JobsStaleTime = DefaultJobsStaleTime
	}
	if c.JobDetailStaleTime == 0 {
		c.JobDetailStaleTime = DefaultJobDetailStaleTime
	}
	if c.ApplicationsStaleTime == 0 {
		c.ApplicationsStaleTime = DefaultApplicationsStaleTime
	}
	if c.DashboardStaleTime == 0 {
		c.DashboardStaleTime = DefaultDashboardStaleTime
	}
}

// Validate validates the windows
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.JobsStaleTime, validation.Min(time.Duration(0))),
		validation.Field(&c.JobDetailStaleTime, validation.Min(time.Duration(0))),
		validation.Field(&c.ApplicationsStaleTime, validation.Min(time.Duration(0))),
		validation.Field(&c.DashboardStaleTime, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return ErrConfigInvalid.Wrap(err)
	}
	return nil
}

// QueryConfigs expresses the windows as per-prefix cache overrides
// Job detail is listed after jobs so its longer prefix wins
func (c Config) QueryConfigs() []querycache.QueryConfig {
	return []querycache.QueryConfig{
		{Name: "jobs", KeyPrefix: []string{segJobs}, StaleTime: c.JobsStaleTime},
		{Name: "job-detail", KeyPrefix: []string{segJobs, "detail"}, StaleTime: c.JobDetailStaleTime},
		{Name: "applications", KeyPrefix: []string{segApplications}, StaleTime: c.ApplicationsStaleTime},
		{Name: "admin-dashboard", KeyPrefix: []string{segAdmin, "dashboard"}, StaleTime: c.DashboardStaleTime},
	}
}

// CacheConfig merges the product windows into a querycache configuration
func (c Config) CacheConfig(base querycache.Config) querycache.Config {
	base.Queries = append(base.Queries, c.QueryConfigs()...)
	return base
}
