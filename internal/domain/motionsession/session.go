// Package motionsession provides the Session domain entity: a contiguous
// period of detected presence at one sensor that should drive one streaming
// playback.
package motionsession

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Status is the Session lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// DefaultTTLDays is the default retention window (spec §6: Sessions carry a
// ttl epoch attribute for automatic expiry at ~30 days).
const DefaultTTLDays = 30

// Session is a single sensor's contiguous presence period.
type Session struct {
	SessionID         string
	SensorID          string
	UserID            string
	Status            Status
	StartTime         time.Time
	LastMotionTime    time.Time
	MotionEventsCount int
	PlaybackStarted   bool
	EndTime           *time.Time
	DurationMinutes   *float64
	TTL               time.Time
	UpdatedAt         time.Time
}

// NewID builds a session id in the spec §3 shape:
// session-{sensorId}-{epoch}-{8hex}.
func NewID(sensorID string, now time.Time) string {
	suffix := uuid.New().String()
	suffix = suffix[:8]
	return fmt.Sprintf("session-%s-%d-%s", sensorID, now.Unix(), suffix)
}

// Open creates a fresh active session for one qualifying motion event
// (spec §4.2 openOrExtend, created=true branch).
func Open(sensorID, userID string, now time.Time, ttlDays int) *Session {
	if ttlDays <= 0 {
		ttlDays = DefaultTTLDays
	}
	return &Session{
		SessionID:         NewID(sensorID, now),
		SensorID:          sensorID,
		UserID:            userID,
		Status:            StatusActive,
		StartTime:         now,
		LastMotionTime:    now,
		MotionEventsCount: 1,
		PlaybackStarted:   false,
		TTL:               now.AddDate(0, 0, ttlDays),
		UpdatedAt:         now,
	}
}

// Extend records another qualifying motion event against an already-active
// session (spec §4.2 openOrExtend, created=false branch).
func (s *Session) Extend(now time.Time) {
	s.MotionEventsCount++
	s.LastMotionTime = now
	s.UpdatedAt = now
}

// MarkPlaybackStarted idempotently records that playback has begun for this
// session.
func (s *Session) MarkPlaybackStarted(now time.Time) {
	s.PlaybackStarted = true
	s.UpdatedAt = now
}

// Complete closes the session, computing duration from StartTime to
// endTime. Idempotent: completing an already-completed session is a no-op,
// matching spec §4.2's complete() contract and Testable Property 7.
func (s *Session) Complete(endTime time.Time) {
	if s.Status == StatusCompleted {
		return
	}
	s.Status = StatusCompleted
	et := endTime
	s.EndTime = &et
	dur := math.Round(et.Sub(s.StartTime).Minutes()*100) / 100
	s.DurationMinutes = &dur
	s.UpdatedAt = endTime
}

// IsActive reports whether the session is still open.
func (s *Session) IsActive() bool { return s.Status == StatusActive }
