// Package sweeper is the Timeout Sweeper (spec §4.4): a ticker-driven pass
// that closes sessions whose sensor has gone quiet past its configured
// timeout, pausing playback first when the sensor's device is still
// playing. Runs as a select over ctx.Done()/ticker.C, with per-unit failure
// isolation so one bad session can't stall the pass.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/spottypottysense/motionengine/internal/app/registry"
	"github.com/spottypottysense/motionengine/internal/domain/motionsession"
	"github.com/spottypottysense/motionengine/internal/infra/clock"
	"github.com/spottypottysense/motionengine/internal/infra/secretstore"
	"github.com/spottypottysense/motionengine/internal/infra/store"
	"github.com/spottypottysense/motionengine/internal/infra/streaming"
)

// DefaultInterval matches spec §4.4's "default once per minute".
const DefaultInterval = time.Minute

// CallTimeout bounds each I/O boundary crossed during a pass (spec §5's
// "default 10s per call").
const CallTimeout = 10 * time.Second

// PassSummary is spec §4.4's per-pass report.
type PassSummary struct {
	Checked  int
	TimedOut int
	Paused   int
	Completed int
	Errors   []error
}

// Sweeper is the Timeout Sweeper component.
type Sweeper struct {
	Sensors   store.SensorStore
	Users     store.UserStore
	Registry  *registry.Registry
	Secrets   secretstore.Store
	Streaming streaming.Adapter
	Clock     clock.Clock
	Interval  time.Duration
	Log       zerolog.Logger
}

// New builds a Sweeper. interval<=0 uses DefaultInterval.
func New(sensors store.SensorStore, users store.UserStore, reg *registry.Registry, secrets secretstore.Store, adapter streaming.Adapter, clk clock.Clock, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		Sensors: sensors, Users: users, Registry: reg, Secrets: secrets,
		Streaming: adapter, Clock: clk, Interval: interval, Log: log,
	}
}

// Run blocks, running one Pass every Interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary := s.Pass(ctx)
			s.Log.Info().
				Int("checked", summary.Checked).
				Int("timedOut", summary.TimedOut).
				Int("paused", summary.Paused).
				Int("completed", summary.Completed).
				Int("errors", len(summary.Errors)).
				Msg("sweeper pass complete")
		}
	}
}

// Pass runs one sweep (spec §4.4 steps 1-6). Cancellation mid-pass is safe:
// in-flight session handling completes, remaining sessions are simply left
// for the next tick.
func (s *Sweeper) Pass(ctx context.Context) PassSummary {
	var summary PassSummary

	active, err := s.Registry.ListActive(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, err)
		return summary
	}

	now := s.Clock.Now()
	for _, sess := range active {
		if ctx.Err() != nil {
			return summary
		}
		summary.Checked++
		if s.sweepOne(ctx, sess, now, &summary) {
			summary.Completed++
		}
	}
	return summary
}

// sweepOne implements steps 2-6 for a single session, isolating any failure
// so it cannot block the rest of the pass.
func (s *Sweeper) sweepOne(ctx context.Context, sess *motionsession.Session, now time.Time, summary *PassSummary) (completed bool) {
	defer func() {
		if r := recover(); r != nil {
			s.Log.Error().Interface("panic", r).Str("sessionId", sess.SessionID).Msg("sweeper: recovered from panic")
			summary.Errors = append(summary.Errors, fmt.Errorf("sweeper: panic sweeping session %s: %v", sess.SessionID, r))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	sn, err := s.Sensors.Get(callCtx, sess.SensorID)
	if err != nil {
		// Orphaned session: the owning sensor is gone. Close it without
		// attempting a pause we have no device id for.
		if _, err := s.Registry.Complete(ctx, sess.SessionID, now); err != nil {
			summary.Errors = append(summary.Errors, err)
			return false
		}
		return true
	}

	lastMotion := sess.LastMotionTime
	if lastMotion.IsZero() {
		lastMotion = sess.StartTime
	}
	elapsed := now.Sub(lastMotion)
	if elapsed < time.Duration(sn.TimeoutMinutes)*time.Minute {
		return false
	}
	summary.TimedOut++

	usr, err := s.Users.Get(callCtx, sess.UserID)
	if err != nil {
		summary.Errors = append(summary.Errors, err)
		return false
	}

	if s.pausePlayback(callCtx, sn.SpotifyConfig.DeviceID, usr.SpotifyTokenSecretRef) {
		summary.Paused++
	}

	if _, err := s.Registry.Complete(ctx, sess.SessionID, now); err != nil {
		summary.Errors = append(summary.Errors, err)
		return false
	}
	return true
}

// pausePlayback implements step 5: it pauses only while something is
// playing, and skips the pause when the playing device is known and is not
// this sensor's device. With no device id configured, or no device in the
// reported state, it pauses whatever is playing.
func (s *Sweeper) pausePlayback(ctx context.Context, deviceID, secretRef string) (paused bool) {
	if secretRef == "" {
		return false
	}
	bundle, err := s.Secrets.Get(ctx, secretRef)
	if err != nil || bundle.AccessToken == "" {
		return false
	}

	state, err := s.Streaming.GetPlaybackState(ctx, bundle.AccessToken)
	if err != nil || state == nil || !state.IsPlaying {
		return false
	}
	if deviceID != "" && state.Device != nil && state.Device.ID != deviceID {
		return false
	}
	if err := s.Streaming.PausePlayback(ctx, bundle.AccessToken, deviceID); err != nil {
		return false
	}
	return true
}
