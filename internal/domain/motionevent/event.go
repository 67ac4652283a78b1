// Package motionevent provides the MotionEvent append-only audit record.
package motionevent

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the kind of motion signal reported by a sensor.
type EventType string

const (
	EventMotionDetected EventType = "motion_detected"
	EventMotionCleared  EventType = "motion_cleared"
	EventHeartbeat      EventType = "heartbeat"
)

// ActionTaken is the single terminal outcome the Dispatcher's gate pipeline
// reached for this event (spec §4.3).
type ActionTaken string

const (
	ActionIgnoredDisabled   ActionTaken = "ignored_disabled"
	ActionIgnoredQuietHours ActionTaken = "ignored_quiet_hours"
	ActionIgnoredDebounce   ActionTaken = "ignored_debounce"
	ActionPlaybackStarted   ActionTaken = "playback_started"
	ActionAlreadyPlaying    ActionTaken = "already_playing"
	ActionPlaybackResumed   ActionTaken = "playback_resumed"
	ActionError             ActionTaken = "error"
)

// Telemetry holds optional per-event sensor readings (spec §6: preserved
// under metadata when present).
type Telemetry struct {
	BatteryLevel    *float64
	SignalStrength  *float64
	FirmwareVersion string
}

// MotionEvent is an append-only audit record; it is never mutated once
// written.
type MotionEvent struct {
	EventID           string
	SensorID          string
	UserID            string
	SessionID         string
	EventType         EventType
	Timestamp         time.Time
	ActionTaken       ActionTaken
	PlaybackTriggered bool
	Telemetry         Telemetry
	Metadata          map[string]any
	TTL               time.Time
}

// New builds a MotionEvent ready to append to the store.
func New(sensorID, userID, sessionID string, eventType EventType, timestamp time.Time, action ActionTaken, playbackTriggered bool, telemetry Telemetry, metadata map[string]any, ttlDays int) *MotionEvent {
	if ttlDays <= 0 {
		ttlDays = 30
	}
	return &MotionEvent{
		EventID:           uuid.New().String(),
		SensorID:          sensorID,
		UserID:            userID,
		SessionID:         sessionID,
		EventType:         eventType,
		Timestamp:         timestamp,
		ActionTaken:       action,
		PlaybackTriggered: playbackTriggered,
		Telemetry:         telemetry,
		Metadata:          metadata,
		TTL:               timestamp.AddDate(0, 0, ttlDays),
	}
}
