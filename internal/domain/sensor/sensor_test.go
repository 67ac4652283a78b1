package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New("s1", "u1", now)

	assert.True(t, s.Enabled)
	assert.Equal(t, DefaultTimeoutMinutes, s.TimeoutMinutes)
	assert.Equal(t, DefaultMotionDebounceMinutes, s.MotionDebounceMinutes)
	require.NoError(t, s.Validate())
}

func TestValidate_RejectsBadSensorID(t *testing.T) {
	now := time.Now()
	s := New("no spaces allowed", "u1", now)
	assert.Error(t, s.Validate())

	s2 := New("ab", "u1", now) // below min=3
	assert.Error(t, s2.Validate())
}

func TestQuietHours_InQuietHours(t *testing.T) {
	tests := []struct {
		name     string
		q        *QuietHours
		wallTime string // HH:MM
		weekday  time.Weekday
		expect   bool
	}{
		{
			name:     "disabled never in window",
			q:        &QuietHours{Enabled: false, StartHHMM: "22:00", EndHHMM: "07:00"},
			wallTime: "23:30",
			weekday:  time.Monday,
			expect:   false,
		},
		{
			name:     "wraps midnight, inside late window",
			q:        &QuietHours{Enabled: true, StartHHMM: "22:00", EndHHMM: "07:00"},
			wallTime: "23:30",
			weekday:  time.Monday,
			expect:   true,
		},
		{
			name:     "wraps midnight, inside early window",
			q:        &QuietHours{Enabled: true, StartHHMM: "22:00", EndHHMM: "07:00"},
			wallTime: "05:00",
			weekday:  time.Monday,
			expect:   true,
		},
		{
			name:     "wraps midnight, outside window",
			q:        &QuietHours{Enabled: true, StartHHMM: "22:00", EndHHMM: "07:00"},
			wallTime: "12:00",
			weekday:  time.Monday,
			expect:   false,
		},
		{
			name:     "non-wrapping window, inside",
			q:        &QuietHours{Enabled: true, StartHHMM: "13:00", EndHHMM: "14:00"},
			wallTime: "13:30",
			weekday:  time.Monday,
			expect:   true,
		},
		{
			name:     "non-wrapping window, at end boundary is outside",
			q:        &QuietHours{Enabled: true, StartHHMM: "13:00", EndHHMM: "14:00"},
			wallTime: "14:00",
			weekday:  time.Monday,
			expect:   false,
		},
		{
			name:     "day filter excludes",
			q:        &QuietHours{Enabled: true, StartHHMM: "22:00", EndHHMM: "07:00", Days: []int{1, 2, 3, 4, 5}},
			wallTime: "23:30",
			weekday:  time.Sunday,
			expect:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := time.Parse("15:04", tt.wallTime)
			require.NoError(t, err)
			// anchor to a known date whose weekday we can control
			base := time.Date(2026, 1, 4, parsed.Hour(), parsed.Minute(), 0, 0, time.UTC) // 2026-01-04 is a Sunday
			offset := int(tt.weekday) - int(base.Weekday())
			wall := base.AddDate(0, 0, offset)

			assert.Equal(t, tt.expect, tt.q.InQuietHours(wall))
		})
	}
}

func TestQuietHours_NilIsNeverInWindow(t *testing.T) {
	var q *QuietHours
	assert.False(t, q.InQuietHours(time.Now()))
}
