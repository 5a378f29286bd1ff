package event

import "context"

// Listener interface
type Listener interface {
	// Handle handles the event
	// Returning an error stops further synchronous listener execution
	// Returning ErrStopPropagation stops propagation without being treated as an error
	Handle(ctx context.Context, event Event) error
}

// ListenerFunc functional listener adapter
type ListenerFunc func(ctx context.Context, event Event) error

// Handle implements the Listener interface
func (f ListenerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}
