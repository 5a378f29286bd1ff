package event

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jobdeck/go-querycache/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// UnsubscribeFunc removes a subscription; safe to call multiple times
type UnsubscribeFunc func()

// Dispatcher event dispatcher interface
type Dispatcher interface {
	// Subscribe subscribes to an event, returns the unsubscribe function
	Subscribe(eventName string, listener Listener, opts ...SubscribeOption) UnsubscribeFunc

	// Dispatch dispatches an event to its listeners synchronously
	Dispatch(ctx context.Context, event Event) error

	// DispatchAsync dispatches an event on the pool without waiting
	DispatchAsync(ctx context.Context, event Event)
}

// dispatcher event dispatcher implementation
type dispatcher struct {
	mu         sync.RWMutex
	listeners  map[string][]listenerEntry
	nextID     uint64
	pool       *ants.Pool
	poolSize   int
	logger     *logger.CtxZapLogger
	closed     int32
	setAllSync bool
}

// NewDispatcher creates an event dispatcher
func NewDispatcher(opts ...DispatcherOption) *dispatcher {
	d := &dispatcher{
		listeners: make(map[string][]listenerEntry),
		poolSize:  100,
		logger:    logger.GetLogger("event"),
	}

	for _, opt := range opts {
		opt(d)
	}

	var err error
	d.pool, err = ants.NewPool(d.poolSize)
	if err != nil {
		d.logger.Error("failed to create goroutine pool, using default size", zap.Error(err))
		d.pool, _ = ants.NewPool(100)
	}

	return d
}

// Subscribe subscribes to an event
func (d *dispatcher) Subscribe(eventName string, listener Listener, opts ...SubscribeOption) UnsubscribeFunc {
	if eventName == "" || listener == nil {
		return func() {}
	}

	entry := listenerEntry{
		id:       atomic.AddUint64(&d.nextID, 1),
		listener: listener,
	}

	for _, opt := range opts {
		opt(&entry)
	}
	if d.setAllSync {
		entry.async = false
	}

	d.mu.Lock()
	d.listeners[eventName] = append(d.listeners[eventName], entry)
	sort.SliceStable(d.listeners[eventName], func(i, j int) bool {
		return d.listeners[eventName][i].priority < d.listeners[eventName][j].priority
	})
	d.mu.Unlock()

	return func() {
		d.unsubscribe(eventName, entry.id)
	}
}

// unsubscribe removes a subscription by id
func (d *dispatcher) unsubscribe(eventName string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.listeners[eventName]
	for i, e := range entries {
		if e.id == id {
			d.listeners[eventName] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// Dispatch dispatches an event synchronously
func (d *dispatcher) Dispatch(ctx context.Context, event Event) error {
	if event == nil {
		return nil
	}

	d.mu.RLock()
	entries := make([]listenerEntry, len(d.listeners[event.Name()]))
	copy(entries, d.listeners[event.Name()])
	d.mu.RUnlock()

	err := d.executeListeners(ctx, event, entries)

	d.cleanupOnceListeners(event.Name(), entries)

	// ErrStopPropagation is not considered an error
	if errors.Is(err, ErrStopPropagation) {
		return nil
	}

	return err
}

// DispatchAsync dispatches an event on the pool without waiting
func (d *dispatcher) DispatchAsync(ctx context.Context, event Event) {
	if event == nil || atomic.LoadInt32(&d.closed) == 1 {
		return
	}

	// Preserve the trace id across the goroutine boundary
	asyncCtx := logger.WithTraceID(context.Background(), logger.TraceIDFromContext(ctx))
	eventName := event.Name()

	err := d.pool.Submit(func() {
		if err := d.Dispatch(asyncCtx, event); err != nil {
			d.logger.ErrorCtx(asyncCtx, "async event dispatch failed",
				zap.String("event", eventName),
				zap.Error(err))
		}
	})

	if err != nil {
		d.logger.ErrorCtx(ctx, "failed to submit async dispatch",
			zap.String("event", eventName),
			zap.Error(err))
	}
}

// executeListeners runs the listeners in priority order
func (d *dispatcher) executeListeners(ctx context.Context, event Event, entries []listenerEntry) error {
	for _, entry := range entries {
		if entry.async {
			// Asynchronous listeners run on the pool; their errors are logged only
			listener := entry.listener
			eventName := event.Name()
			_ = d.pool.Submit(func() {
				if err := listener.Handle(ctx, event); err != nil && !errors.Is(err, ErrStopPropagation) {
					d.logger.ErrorCtx(ctx, "async listener failed",
						zap.String("event", eventName),
						zap.Error(err))
				}
			})
			continue
		}

		if err := entry.listener.Handle(ctx, event); err != nil {
			return err
		}
	}

	return nil
}

// cleanupOnceListeners removes executed once-listeners
func (d *dispatcher) cleanupOnceListeners(eventName string, executed []listenerEntry) {
	var onceIDs []uint64
	for _, e := range executed {
		if e.once {
			onceIDs = append(onceIDs, e.id)
		}
	}

	if len(onceIDs) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.listeners[eventName]
	filtered := entries[:0]
	for _, e := range entries {
		remove := false
		for _, id := range onceIDs {
			if e.id == id {
				remove = true
				break
			}
		}
		if !remove {
			filtered = append(filtered, e)
		}
	}
	d.listeners[eventName] = filtered
}

// Close releases the dispatcher's pool
func (d *dispatcher) Close() {
	atomic.StoreInt32(&d.closed, 1)
	if d.pool != nil {
		d.pool.Release()
	}
}

// ListenerCount returns the listener count for an event (for testing)
func (d *dispatcher) ListenerCount(eventName string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[eventName])
}
