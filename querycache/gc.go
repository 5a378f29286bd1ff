package querycache

import (
	"sync"
	"time"
)

// gcController schedules per-key eviction timers
//
// A timer starts when an entry loses its last subscriber and is cancelled if
// anyone re-subscribes before it fires. The periodic sweep (Client.Sweep)
// covers entries that never had subscribers, so the timers are an
// optimization for prompt eviction, not the only collection path.
type gcController struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool

	// evict runs the single-key sweep when a timer fires
	evict func(canonical string)
}

func newGCController(evict func(canonical string)) *gcController {
	return &gcController{
		timers: make(map[string]*time.Timer),
		evict:  evict,
	}
}

// schedule arms (or re-arms) the eviction timer for canonical
func (g *gcController) schedule(canonical string, after time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return
	}
	if t, ok := g.timers[canonical]; ok {
		t.Stop()
	}
	g.timers[canonical] = time.AfterFunc(after, func() {
		g.mu.Lock()
		delete(g.timers, canonical)
		stopped := g.stopped
		g.mu.Unlock()
		if !stopped {
			g.evict(canonical)
		}
	})
}

// cancel disarms the eviction timer for canonical
func (g *gcController) cancel(canonical string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t, ok := g.timers[canonical]; ok {
		t.Stop()
		delete(g.timers, canonical)
	}
}

// stop disarms every timer
func (g *gcController) stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopped = true
	for canonical, t := range g.timers {
		t.Stop()
		delete(g.timers, canonical)
	}
}
