// Package event provides an in-process event dispatcher
// Listeners subscribe by event name; dispatch is synchronous by default with
// optional asynchronous execution on a shared goroutine pool
package event

import "time"

// Event event interface
type Event interface {
	// Name event name (unique identifier, such as "job.created")
	Name() string
}

// BaseEvent base struct for events, embeddable into concrete event types
type BaseEvent struct {
	name       string
	occurredAt time.Time
}

// NewEvent creates a base event
func NewEvent(name string) BaseEvent {
	return BaseEvent{
		name:       name,
		occurredAt: time.Now(),
	}
}

// Name returns the event name
func (e BaseEvent) Name() string {
	return e.name
}

// OccurredAt returns the event occurrence time
func (e BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}
