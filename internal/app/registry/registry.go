// Package registry owns the one-active-session-per-sensor invariant
// (spec §4.2): narrow, mutex-disciplined accessor methods over a store port
// rather than an in-process map, since sessions must survive across
// Dispatcher invocations and be visible to the Sweeper.
package registry

import (
	"context"
	"time"

	"github.com/spottypottysense/motionengine/internal/apperr"
	"github.com/spottypottysense/motionengine/internal/domain/motionsession"
	"github.com/spottypottysense/motionengine/internal/infra/clock"
	"github.com/spottypottysense/motionengine/internal/infra/store"
)

// maxCreateRetries bounds the create-conflict retry loop (spec §4.2:
// "create conflicts are retried up to 3 times; persistent conflict
// surfaces BusyError").
const maxCreateRetries = 3

// OpenOrExtendResult is spec §4.2's openOrExtend() return shape.
type OpenOrExtendResult struct {
	SessionID string
	Created   bool
}

// Registry is the Session Registry component.
type Registry struct {
	sessions store.SessionStore
	clock    clock.Clock
	ttlDays  int
}

// New builds a Registry backed by sessions. ttlDays<=0 uses
// motionsession.DefaultTTLDays.
func New(sessions store.SessionStore, clk clock.Clock, ttlDays int) *Registry {
	return &Registry{sessions: sessions, clock: clk, ttlDays: ttlDays}
}

// OpenOrExtend implements spec §4.2's openOrExtend: if an active session
// exists for sensorID, it is extended; otherwise a new one is created.
// Creation is attempted via a conditional write; on conflict with a
// concurrent creator, the call falls back to the lookup-and-extend path, up
// to maxCreateRetries times before surfacing apperr.ErrBusy.
func (r *Registry) OpenOrExtend(ctx context.Context, sensorID, userID string) (*OpenOrExtendResult, error) {
	now := r.clock.Now()

	for attempt := 0; attempt < maxCreateRetries; attempt++ {
		active, err := r.sessions.GetActiveBySensor(ctx, sensorID)
		if err == nil {
			active.Extend(now)
			if err := r.sessions.Update(ctx, active); err != nil {
				return nil, apperr.WrapStoreError(err, "registry: extend session")
			}
			return &OpenOrExtendResult{SessionID: active.SessionID, Created: false}, nil
		}
		if err != store.ErrNotFound {
			return nil, apperr.WrapStoreError(err, "registry: lookup active session")
		}

		fresh := motionsession.Open(sensorID, userID, now, r.ttlDays)
		if err := r.sessions.CreateActive(ctx, fresh); err == nil {
			return &OpenOrExtendResult{SessionID: fresh.SessionID, Created: true}, nil
		} else if err != store.ErrActiveSessionExists {
			return nil, apperr.WrapStoreError(err, "registry: create session")
		}
		// Someone else created it between our lookup and our create attempt;
		// loop around to extend theirs instead.
	}
	return nil, apperr.ErrBusy
}

// MarkPlaybackStarted implements spec §4.2's markPlaybackStarted; idempotent.
func (r *Registry) MarkPlaybackStarted(ctx context.Context, sessionID string) error {
	s, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return apperr.WrapStoreError(err, "registry: get session")
	}
	if s.PlaybackStarted {
		return nil
	}
	s.MarkPlaybackStarted(r.clock.Now())
	if err := r.sessions.Update(ctx, s); err != nil {
		return apperr.WrapStoreError(err, "registry: mark playback started")
	}
	return nil
}

// Complete implements spec §4.2's complete(); idempotent (Testable
// Property 7).
func (r *Registry) Complete(ctx context.Context, sessionID string, endTime time.Time) (*motionsession.Session, error) {
	s, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, apperr.WrapStoreError(err, "registry: get session")
	}
	s.Complete(endTime)
	if err := r.sessions.Update(ctx, s); err != nil {
		return nil, apperr.WrapStoreError(err, "registry: complete session")
	}
	return s, nil
}

// ListActive implements spec §4.2's listActive(), used only by the Sweeper.
func (r *Registry) ListActive(ctx context.Context) ([]*motionsession.Session, error) {
	sessions, err := r.sessions.ListActive(ctx)
	if err != nil {
		return nil, apperr.WrapStoreError(err, "registry: list active sessions")
	}
	return sessions, nil
}

// QueryBySensor implements spec §4.2's queryBySensor, descending by
// startTime.
func (r *Registry) QueryBySensor(ctx context.Context, q store.SessionQuery) (sessions []*motionsession.Session, nextPageToken string, err error) {
	sessions, next, err := r.sessions.QueryBySensor(ctx, q)
	if err != nil {
		return nil, "", apperr.WrapStoreError(err, "registry: query by sensor")
	}
	return sessions, next, nil
}

// Analytics implements spec §4.2's analytics().
func (r *Registry) Analytics(ctx context.Context, q store.AnalyticsQuery) (*store.Analytics, error) {
	a, err := r.sessions.Analytics(ctx, q)
	if err != nil {
		return nil, apperr.WrapStoreError(err, "registry: analytics")
	}
	return a, nil
}
