package jobboard

import (
	"context"

	"github.com/jobdeck/go-querycache/event"
	"github.com/jobdeck/go-querycache/querycache"
)

// invalidatedEvents every domain event that carries invalidation prefixes
var invalidatedEvents = []string{
	EventJobCreated,
	EventJobUpdated,
	EventJobDeleted,
	EventApplicationSubmitted,
	EventApplicationReviewed,
}

// BindInvalidation subscribes the cache to every job-board domain event
//
// Dispatched events that implement Invalidator get their key prefixes
// invalidated; mutation call sites only dispatch events and never touch the
// cache directly. The returned function removes all subscriptions.
func BindInvalidation(dispatcher event.Dispatcher, client *querycache.Client) event.UnsubscribeFunc {
	listener := event.ListenerFunc(func(ctx context.Context, evt event.Event) error {
		inv, ok := evt.(Invalidator)
		if !ok {
			return nil
		}
		return client.Invalidate(ctx, inv.Invalidates()...)
	})

	unsubs := make([]event.UnsubscribeFunc, 0, len(invalidatedEvents))
	for _, name := range invalidatedEvents {
		unsubs = append(unsubs, dispatcher.Subscribe(name, listener))
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
