// Package traffic keeps sliding windows of refresh outcomes and manual
// refresh denials. It backs the degraded and overload health checks.
package traffic

import (
	"sort"
	"sync"
	"time"
)

// DefaultHorizon bounds how long outcomes are retained. Health windows longer
// than this see at most DefaultHorizon of history.
const DefaultHorizon = 30 * time.Minute

var defaultTracker = NewTracker(DefaultHorizon)

// RecordSuccess records a refresh cycle that produced a snapshot.
func RecordSuccess() { defaultTracker.RecordSuccess() }

// RecordError records a refresh cycle that failed or timed out.
func RecordError() { defaultTracker.RecordError() }

// RecordDenied records a manual refresh rejected by the rate limiter.
func RecordDenied() { defaultTracker.RecordDenied() }

// RequestCount returns successes, errors and denials within window.
func RequestCount(window time.Duration) int { return defaultTracker.RequestCount(window) }

// DenialCount returns the number of denials within window.
func DenialCount(window time.Duration) int { return defaultTracker.DenialCount(window) }

// ErrorRate returns (errors, successes+errors) within window. Denials are excluded.
func ErrorRate(window time.Duration) (errors, total int) { return defaultTracker.ErrorRate(window) }

// Reset clears all recorded outcomes. For tests only.
func Reset() { defaultTracker.Reset() }

type kind int

const (
	success kind = iota
	failure
	denied
	numKinds
)

// Tracker holds timestamps per outcome kind, oldest first.
type Tracker struct {
	mu      sync.Mutex
	horizon time.Duration
	now     func() time.Time
	times   [numKinds][]time.Time
}

// NewTracker returns a Tracker that forgets outcomes older than horizon.
func NewTracker(horizon time.Duration) *Tracker {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return &Tracker{horizon: horizon, now: time.Now}
}

func (t *Tracker) RecordSuccess() { t.record(success) }
func (t *Tracker) RecordError()   { t.record(failure) }
func (t *Tracker) RecordDenied()  { t.record(denied) }

func (t *Tracker) record(k kind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.times[k] = append(t.times[k], now)
	t.pruneLocked(now)
}

func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	return t.countLocked(success, cutoff) + t.countLocked(failure, cutoff) + t.countLocked(denied, cutoff)
}

func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countLocked(denied, t.now().Add(-window))
}

func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errors = t.countLocked(failure, cutoff)
	return errors, errors + t.countLocked(success, cutoff)
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.times {
		t.times[k] = nil
	}
}

// countLocked counts timestamps at or after cutoff. Slices are sorted, so a
// binary search finds the first one in the window.
func (t *Tracker) countLocked(k kind, cutoff time.Time) int {
	times := t.times[k]
	i := sort.Search(len(times), func(i int) bool { return !times[i].Before(cutoff) })
	return len(times) - i
}

func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.horizon)
	for k := range t.times {
		times := t.times[k]
		i := sort.Search(len(times), func(i int) bool { return !times[i].Before(cutoff) })
		if i > 0 {
			t.times[k] = append(times[:0], times[i:]...)
		}
	}
}
