package overload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kjstillabower/paddock-weather/internal/traffic"
)

func TestRequestCount_IncludesCyclesAndDenials(t *testing.T) {
	Reset()
	traffic.RecordSuccess()
	traffic.RecordError()
	RecordDenial()
	assert.Equal(t, 3, RequestCount(time.Minute))
	assert.Equal(t, 1, DenialCount(time.Minute))
}

func TestDenialCount_ExpiresOutsideWindow(t *testing.T) {
	Reset()
	RecordDenial()
	assert.Equal(t, 0, DenialCount(time.Nanosecond))
}

func TestExceeded(t *testing.T) {
	Reset()
	// 1 rps over 10s at 50% admits 5.
	for i := 0; i < 5; i++ {
		RecordDenial()
	}
	assert.False(t, Exceeded(10*time.Second, 1, 50))
	RecordDenial()
	assert.True(t, Exceeded(10*time.Second, 1, 50))

	assert.False(t, Exceeded(10*time.Second, 0, 50), "disabled without a rate limit")
}

func TestReset_ClearsBoth(t *testing.T) {
	Reset()
	traffic.RecordSuccess()
	RecordDenial()
	Reset()
	assert.Equal(t, 0, RequestCount(time.Minute))
	assert.Equal(t, 0, DenialCount(time.Minute))
}
