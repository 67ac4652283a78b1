// Package store defines the key-value store ports the orchestration core
// depends on. Spec §1 scopes the real persistence primitives out as an
// external collaborator; this package is the Go-facing contract a real
// DynamoDB-backed (or similar) adapter implements, plus one in-memory
// reference implementation under store/memstore.
package store

import (
	"context"

	"github.com/spottypottysense/motionengine/internal/domain/motionevent"
	"github.com/spottypottysense/motionengine/internal/domain/motionsession"
	"github.com/spottypottysense/motionengine/internal/domain/sensor"
	"github.com/spottypottysense/motionengine/internal/domain/user"
)

// SensorStore is the Sensors table port (PK sensorId, GSI UserIdIndex on
// userId — spec §6).
type SensorStore interface {
	Get(ctx context.Context, sensorID string) (*sensor.Sensor, error)
	Put(ctx context.Context, s *sensor.Sensor) error
	ListByUser(ctx context.Context, userID string) ([]*sensor.Sensor, error)
}

// UserStore is the Users table port (PK userId — spec §6).
type UserStore interface {
	Get(ctx context.Context, userID string) (*user.User, error)
	Put(ctx context.Context, u *user.User) error
	// ListConnected paginates active, spotify-connected users for the Token
	// Refresher (spec §4.5 step 1).
	ListConnected(ctx context.Context, pageToken string, limit int) (users []*user.User, nextPageToken string, err error)
}

// SessionQuery narrows QueryBySensor (spec §4.2).
type SessionQuery struct {
	SensorID   string
	StartEpoch *int64
	EndEpoch   *int64
	Limit      int
	PageToken  string
}

// Analytics is the aggregate spec §4.2's analytics() operation returns.
type Analytics struct {
	TotalSessions               int
	ActiveSessions              int
	CompletedSessions           int
	TotalMotionEvents           int
	TotalDurationMinutes        float64
	AverageDurationMinutes      float64
	AverageMotionEventsPerSession float64
	PeakHour                    *int
	SessionsWithPlayback        int
}

// AnalyticsQuery narrows Analytics (spec §4.2): exactly one of SensorID or
// UserID is typically set.
type AnalyticsQuery struct {
	SensorID   string
	UserID     string
	StartEpoch *int64
	EndEpoch   *int64
}

// SessionStore is the Sessions table port (PK sessionId, GSI SensorIdIndex
// on sensorId sorted by startTime descending — spec §6).
type SessionStore interface {
	// CreateActive inserts s only if no active session exists for
	// s.SensorID (spec §4.2's conditional-write creation path). Returns
	// ErrActiveSessionExists on conflict so the caller can fall back to the
	// lookup-and-extend path.
	CreateActive(ctx context.Context, s *motionsession.Session) error
	// GetActiveBySensor returns the current active session for sensorID, or
	// ErrNotFound if none exists.
	GetActiveBySensor(ctx context.Context, sensorID string) (*motionsession.Session, error)
	Get(ctx context.Context, sessionID string) (*motionsession.Session, error)
	// Update persists a mutated session record (Extend/MarkPlaybackStarted/
	// Complete all funnel through this).
	Update(ctx context.Context, s *motionsession.Session) error
	// ListActive yields every session with status=active, for the Sweeper
	// (spec §4.2 listActive — finite, not restartable).
	ListActive(ctx context.Context) ([]*motionsession.Session, error)
	QueryBySensor(ctx context.Context, q SessionQuery) (sessions []*motionsession.Session, nextPageToken string, err error)
	Analytics(ctx context.Context, q AnalyticsQuery) (*Analytics, error)
}

// MotionEventStore is the MotionEvents table port (PK eventId — spec §6).
type MotionEventStore interface {
	Put(ctx context.Context, e *motionevent.MotionEvent) error
}

// ErrNotFound is returned by Get-style lookups that find nothing. Callers
// compare against it directly; the Session Registry wraps it with
// apperr.WrapStoreError.
var ErrNotFound = storeErr("store: not found")

// ErrActiveSessionExists is CreateActive's conflict signal (spec §4.2's
// "on conflict, retry the lookup-and-extend path").
var ErrActiveSessionExists = storeErr("store: active session already exists")

type storeErr string

func (e storeErr) Error() string { return string(e) }
