package motionevent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_GeneratesIDAndTTL(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := New("s1", "u1", "session-1", EventMotionDetected, ts, ActionPlaybackStarted, true, Telemetry{}, nil, 0)

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, ts.AddDate(0, 0, 30), ev.TTL)
	assert.True(t, ev.PlaybackTriggered)
	assert.Equal(t, ActionPlaybackStarted, ev.ActionTaken)
}
