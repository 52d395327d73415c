package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsShuttingDown_DefaultFalse(t *testing.T) {
	SetShuttingDown(false)
	assert.False(t, IsShuttingDown())
	assert.True(t, ShuttingDownSince().IsZero())
}

// TestSetShuttingDown_KeepsFirstTimestamp verifies a repeated signal does not
// move the draining start time.
func TestSetShuttingDown_KeepsFirstTimestamp(t *testing.T) {
	defer SetShuttingDown(false)
	SetShuttingDown(true)
	first := ShuttingDownSince()
	assert.True(t, IsShuttingDown())
	assert.WithinDuration(t, time.Now(), first, time.Second)

	SetShuttingDown(true)
	assert.Equal(t, first, ShuttingDownSince())
}

func TestSetShuttingDown_False(t *testing.T) {
	SetShuttingDown(true)
	SetShuttingDown(false)
	assert.False(t, IsShuttingDown())
}
