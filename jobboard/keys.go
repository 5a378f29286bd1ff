// Package jobboard wires the job-board product onto the query cache:
// typed cache keys, mutation-success events and product staleness windows
package jobboard

import (
	"github.com/google/uuid"

	"github.com/jobdeck/go-querycache/querycache"
)

// Key segment roots; invalidation prefixes are built from these
const (
	segJobs         = "jobs"
	segApplications = "applications"
	segAdmin        = "admin"
)

// JobFilters search filter object used as a cache key segment
// Fields serialize deterministically (fixed struct order)
type JobFilters struct {
	Location string   `json:"location,omitempty"`
	Remote   bool     `json:"remote,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Page     int      `json:"page,omitempty"`
}

// Jobs root key for all job queries; invalidating it hits every job list,
// search and detail entry
func Jobs() querycache.Key {
	return querycache.NewKey(segJobs)
}

// ActiveJobs key for the active-jobs listing
func ActiveJobs() querycache.Key {
	return querycache.NewKey(segJobs, "active")
}

// JobDetail key for a single job posting
func JobDetail(id string) querycache.Key {
	return querycache.NewKey(segJobs, "detail", id)
}

// JobSearch key for a filtered job search
func JobSearch(filters JobFilters) querycache.Key {
	return querycache.NewKey(segJobs, "search", filters)
}

// Applications root key for all application queries
func Applications() querycache.Key {
	return querycache.NewKey(segApplications)
}

// ApplicationDetail key for a single application
func ApplicationDetail(id uuid.UUID) querycache.Key {
	return querycache.NewKey(segApplications, "detail", id.String())
}

// AdminDashboard key for the admin dashboard aggregate
func AdminDashboard() querycache.Key {
	return querycache.NewKey(segAdmin, "dashboard")
}
