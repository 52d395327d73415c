// Package lifecycle holds the process-wide draining flag.
package lifecycle

import (
	"sync"
	"time"
)

var (
	mu    sync.RWMutex
	since time.Time
)

// SetShuttingDown marks the process as draining (true) or serving (false).
// While draining, /health answers 503 so the page host is taken out of rotation
// before the refresher and offline worker are stopped.
func SetShuttingDown(v bool) {
	mu.Lock()
	defer mu.Unlock()
	switch {
	case v && since.IsZero():
		since = time.Now()
	case !v:
		since = time.Time{}
	}
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return !ShuttingDownSince().IsZero()
}

// ShuttingDownSince returns when draining began, or the zero time.
func ShuttingDownSince() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return since
}
