// Package degraded tracks refresh cycle outcomes for the health check.
package degraded

import (
	"time"

	"github.com/kjstillabower/paddock-weather/internal/traffic"
)

// RecordSuccess records a refresh cycle that produced a snapshot.
func RecordSuccess() {
	traffic.RecordSuccess()
}

// RecordError records a refresh cycle that failed or timed out.
func RecordError() {
	traffic.RecordError()
}

// ErrorRate returns (errors, total) refresh cycles within window.
func ErrorRate(window time.Duration) (errors, total int) {
	return traffic.ErrorRate(window)
}

// Breached reports whether failed cycles within window reach thresholdPct of
// all cycles. No cycles means no breach.
func Breached(window time.Duration, thresholdPct int) bool {
	if window <= 0 || thresholdPct <= 0 {
		return false
	}
	errors, total := ErrorRate(window)
	if total == 0 {
		return false
	}
	return float64(errors)*100/float64(total) >= float64(thresholdPct)
}

// Reset clears all recorded data. For tests only.
func Reset() {
	traffic.Reset()
}
