// Package overload tracks load on the manual refresh endpoint for the health check.
package overload

import (
	"time"

	"github.com/kjstillabower/paddock-weather/internal/traffic"
)

// RecordDenial records a manual refresh rejected with 429.
func RecordDenial() {
	traffic.RecordDenied()
}

// RequestCount returns refresh cycles plus denials within window.
func RequestCount(window time.Duration) int {
	return traffic.RequestCount(window)
}

// DenialCount returns the number of denials within window.
func DenialCount(window time.Duration) int {
	return traffic.DenialCount(window)
}

// Exceeded reports whether load within window is above thresholdPct of what
// the rate limiter admits (rps * window).
func Exceeded(window time.Duration, rps, thresholdPct int) bool {
	if window <= 0 || rps <= 0 || thresholdPct <= 0 {
		return false
	}
	limit := float64(rps) * window.Seconds() * float64(thresholdPct) / 100
	return float64(RequestCount(window)) > limit
}

// Reset clears all recorded data. For tests only.
func Reset() {
	traffic.Reset()
}
