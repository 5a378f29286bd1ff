package jobboard

import (
	"github.com/google/uuid"

	"github.com/jobdeck/go-querycache/event"
	"github.com/jobdeck/go-querycache/querycache"
)

// Domain event names dispatched on mutation success
const (
	EventJobCreated           = "job.created"
	EventJobUpdated           = "job.updated"
	EventJobDeleted           = "job.deleted"
	EventApplicationSubmitted = "application.submitted"
	EventApplicationReviewed  = "application.reviewed"
)

// Invalidator an event that names the cache key prefixes it invalidates
type Invalidator interface {
	event.Event
	Invalidates() []querycache.Key
}

// JobCreated a job posting was created
type JobCreated struct {
	event.BaseEvent
	JobID string
}

// NewJobCreated creates the event
func NewJobCreated(jobID string) JobCreated {
	return JobCreated{BaseEvent: event.NewEvent(EventJobCreated), JobID: jobID}
}

// Invalidates implements Invalidator
// A new posting changes every listing and search result
func (e JobCreated) Invalidates() []querycache.Key {
	return []querycache.Key{Jobs(), AdminDashboard()}
}

// JobUpdated a job posting was edited
type JobUpdated struct {
	event.BaseEvent
	JobID string
}

// NewJobUpdated creates the event
func NewJobUpdated(jobID string) JobUpdated {
	return JobUpdated{BaseEvent: event.NewEvent(EventJobUpdated), JobID: jobID}
}

// Invalidates implements Invalidator
// Listings embed job summaries, so the whole jobs prefix goes stale
func (e JobUpdated) Invalidates() []querycache.Key {
	return []querycache.Key{Jobs()}
}

// JobDeleted a job posting was removed
type JobDeleted struct {
	event.BaseEvent
	JobID string
}

// NewJobDeleted creates the event
func NewJobDeleted(jobID string) JobDeleted {
	return JobDeleted{BaseEvent: event.NewEvent(EventJobDeleted), JobID: jobID}
}

// Invalidates implements Invalidator
func (e JobDeleted) Invalidates() []querycache.Key {
	return []querycache.Key{Jobs(), AdminDashboard()}
}

// ApplicationSubmitted a candidate applied to a job
type ApplicationSubmitted struct {
	event.BaseEvent
	ApplicationID uuid.UUID
	JobID         string
}

// NewApplicationSubmitted creates the event
func NewApplicationSubmitted(applicationID uuid.UUID, jobID string) ApplicationSubmitted {
	return ApplicationSubmitted{
		BaseEvent:     event.NewEvent(EventApplicationSubmitted),
		ApplicationID: applicationID,
		JobID:         jobID,
	}
}

// Invalidates implements Invalidator
// New applications change application lists, the job's detail (application
// count) and the dashboard
func (e ApplicationSubmitted) Invalidates() []querycache.Key {
	return []querycache.Key{Applications(), JobDetail(e.JobID), AdminDashboard()}
}

// ApplicationReviewed an application's review status changed
type ApplicationReviewed struct {
	event.BaseEvent
	ApplicationID uuid.UUID
}

// NewApplicationReviewed creates the event
func NewApplicationReviewed(applicationID uuid.UUID) ApplicationReviewed {
	return ApplicationReviewed{
		BaseEvent:     event.NewEvent(EventApplicationReviewed),
		ApplicationID: applicationID,
	}
}

// Invalidates implements Invalidator
func (e ApplicationReviewed) Invalidates() []querycache.Key {
	return []querycache.Key{Applications(), AdminDashboard()}
}
