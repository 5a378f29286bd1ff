package event

// listenerEntry registered listener record
type listenerEntry struct {
	id       uint64   // unique ID (for unsubscribing)
	listener Listener // listener
	priority int      // priority (smaller runs first)
	async    bool     // asynchronous execution
	once     bool     // unsubscribe after first execution
}

// SubscribeOption subscription options
type SubscribeOption func(*listenerEntry)

// WithPriority sets the priority
// Smaller numbers run first; the default priority is 0
func WithPriority(priority int) SubscribeOption {
	return func(e *listenerEntry) {
		e.priority = priority
	}
}

// WithAsync marks the listener as asynchronous
// Even under synchronous Dispatch this listener executes on the pool;
// its errors do not affect event propagation
func WithAsync() SubscribeOption {
	return func(e *listenerEntry) {
		e.async = true
	}
}

// WithOnce executes the listener once, then automatically unsubscribes
func WithOnce() SubscribeOption {
	return func(e *listenerEntry) {
		e.once = true
	}
}

// DispatcherOption dispatcher configuration options
type DispatcherOption func(*dispatcher)

// WithPoolSize sets the asynchronous goroutine pool size
func WithPoolSize(size int) DispatcherOption {
	return func(d *dispatcher) {
		if size > 0 {
			d.poolSize = size
		}
	}
}

// WithSetAllSync forces every listener to run synchronously (for tests)
func WithSetAllSync(v bool) DispatcherOption {
	return func(d *dispatcher) {
		d.setAllSync = v
	}
}
