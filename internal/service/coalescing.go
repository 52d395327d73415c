package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/paddock-weather/internal/models"
)

// cycle is one refresh in flight that several callers may wait for.
type cycle struct {
	result  models.Snapshot
	err     error
	done    chan struct{}
	waiters int
}

// cycleGuard allows at most one refresh cycle at a time. Callers arriving while
// a cycle is outstanding wait for its result instead of starting another.
type cycleGuard struct {
	mu      sync.Mutex
	current *cycle
	timeout time.Duration
	wg      sync.WaitGroup
}

// newCycleGuard creates a guard whose callers wait at most timeout for a result.
func newCycleGuard(timeout time.Duration) *cycleGuard {
	return &cycleGuard{timeout: timeout}
}

// Do joins the outstanding cycle or starts fn as a new one. joined reports
// whether the caller attached to a cycle started by someone else. fn runs in
// its own goroutine, so a caller giving up does not abort the shared cycle.
func (g *cycleGuard) Do(ctx context.Context, fn func() (models.Snapshot, error)) (snap models.Snapshot, joined bool, err error) {
	g.mu.Lock()
	c := g.current
	if c != nil {
		joined = true
		c.waiters++
	} else {
		c = &cycle{done: make(chan struct{})}
		g.current = c
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			c.result, c.err = fn()

			g.mu.Lock()
			g.current = nil
			g.mu.Unlock()
			close(c.done)
		}()
	}
	g.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	select {
	case <-c.done:
		return c.result, joined, c.err
	case <-waitCtx.Done():
		return models.Snapshot{}, joined, waitCtx.Err()
	}
}

// InFlight reports whether a cycle is outstanding.
func (g *cycleGuard) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != nil
}

// waiting returns how many callers joined the outstanding cycle.
func (g *cycleGuard) waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return 0
	}
	return g.current.waiters
}

// Wait blocks until the outstanding cycle, if any, has finished.
func (g *cycleGuard) Wait() {
	g.wg.Wait()
}
