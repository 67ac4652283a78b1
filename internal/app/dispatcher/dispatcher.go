package dispatcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/spottypottysense/motionengine/internal/apperr"
	"github.com/spottypottysense/motionengine/internal/app/registry"
	"github.com/spottypottysense/motionengine/internal/domain/motionevent"
	"github.com/spottypottysense/motionengine/internal/domain/sensor"
	"github.com/spottypottysense/motionengine/internal/domain/user"
	"github.com/spottypottysense/motionengine/internal/infra/clock"
	"github.com/spottypottysense/motionengine/internal/infra/secretstore"
	"github.com/spottypottysense/motionengine/internal/infra/store"
	"github.com/spottypottysense/motionengine/internal/infra/streaming"
)

// HandlerTimeout is the Dispatcher's end-to-end per-event budget (spec §5).
const HandlerTimeout = 15 * time.Second

// MotionEventEnvelope is spec §6's motion event ingress shape.
type MotionEventEnvelope struct {
	SensorID  string         `json:"sensorId"`
	Event     string         `json:"event"`
	Timestamp any            `json:"timestamp,omitempty"` // epoch seconds or ISO-8601
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Dispatcher is the Motion Dispatcher component.
type Dispatcher struct {
	Sensors   store.SensorStore
	Users     store.UserStore
	Registry  *registry.Registry
	Secrets   secretstore.Store
	Streaming streaming.Adapter
	Events    store.MotionEventStore
	Clock     clock.Clock
	Gates     *Chain
	TTLDays   int
	Log       zerolog.Logger
}

// New builds a Dispatcher wired to the default gate chain, DefaultGates
// (spec §4.3 steps 4-6).
func New(sensors store.SensorStore, users store.UserStore, reg *registry.Registry, secrets secretstore.Store, adapter streaming.Adapter, events store.MotionEventStore, clk clock.Clock, ttlDays int, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		Sensors:   sensors,
		Users:     users,
		Registry:  reg,
		Secrets:   secrets,
		Streaming: adapter,
		Events:    events,
		Clock:     clk,
		Gates:     NewChain(DefaultGates()...),
		TTLDays:   ttlDays,
		Log:       log,
	}
}

// Handle processes one motion event through the full pipeline (spec
// §4.3). It never propagates a pipeline-terminal error past this
// boundary: gate rejections and recoverable failures are translated to an
// audited MotionEvent and a nil error so the transport always acknowledges
// delivery (spec §4.3's failure model). A non-nil error here means even the
// best-effort audit write itself failed.
func (d *Dispatcher) Handle(ctx context.Context, env MotionEventEnvelope) (*motionevent.MotionEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, HandlerTimeout)
	defer cancel()

	now := parseTimestamp(env.Timestamp, d.Clock.Now())
	eventType := motionevent.EventType(env.Event)
	if eventType == "" {
		eventType = motionevent.EventMotionDetected
	}
	telemetry := extractTelemetry(env.Metadata)

	// Steps 2-3: load Sensor and User. Either missing is fatal to this
	// event only; it is still audited where we have enough identity to key
	// a record.
	sn, err := d.Sensors.Get(ctx, env.SensorID)
	if err != nil {
		return d.audit(ctx, env.SensorID, "", "", eventType, now, motionevent.ActionError, false, telemetry, env.Metadata)
	}

	usr, err := d.Users.Get(ctx, sn.UserID)
	if err != nil {
		return d.audit(ctx, env.SensorID, sn.UserID, "", eventType, now, motionevent.ActionError, false, telemetry, env.Metadata)
	}

	// Steps 4-6: enabled / quiet-hours / debounce gates.
	gateResult := d.Gates.Execute(GateInput{Sensor: sn, User: usr, Now: now})
	if !gateResult.Passed {
		return d.audit(ctx, sn.SensorID, usr.UserID, "", eventType, now, gateResult.Action, false, telemetry, env.Metadata)
	}

	// Step 7: open or extend the session.
	openResult, err := d.Registry.OpenOrExtend(ctx, sn.SensorID, usr.UserID)
	if err != nil {
		return d.audit(ctx, sn.SensorID, usr.UserID, "", eventType, now, motionevent.ActionError, false, telemetry, env.Metadata)
	}

	action, playbackTriggered := d.decidePlayback(ctx, sn, usr, openResult.SessionID)

	// Step 10: state writes, best-effort in order.
	sn.LastMotionTime = &now
	sn.UpdatedAt = now
	if err := d.Sensors.Put(ctx, sn); err != nil {
		d.Log.Warn().Err(err).Str("sensorId", sn.SensorID).Msg("failed to persist lastMotionTime")
	}
	if playbackTriggered {
		if err := d.Registry.MarkPlaybackStarted(ctx, openResult.SessionID); err != nil {
			d.Log.Warn().Err(err).Str("sessionId", openResult.SessionID).Msg("failed to mark playback started")
		}
	}

	return d.audit(ctx, sn.SensorID, usr.UserID, openResult.SessionID, eventType, now, action, playbackTriggered, telemetry, env.Metadata)
}

// decidePlayback implements spec §4.3 steps 8-9: token fetch then the
// playback decision.
func (d *Dispatcher) decidePlayback(ctx context.Context, sn *sensor.Sensor, usr *user.User, sessionID string) (motionevent.ActionTaken, bool) {
	if usr.SpotifyTokenSecretRef == "" {
		d.Log.Warn().Err(apperr.ErrNoSpotifyCredentials).Str("userId", usr.UserID).Msg("no spotify credentials")
		return motionevent.ActionError, false
	}
	bundle, err := d.Secrets.Get(ctx, usr.SpotifyTokenSecretRef)
	if err != nil || bundle.AccessToken == "" {
		d.Log.Warn().Err(apperr.ErrNoSpotifyCredentials).Str("userId", usr.UserID).Msg("no spotify credentials")
		return motionevent.ActionError, false
	}

	state, err := d.Streaming.GetPlaybackState(ctx, bundle.AccessToken)
	if err != nil {
		d.Log.Warn().Err(err).Str("sensorId", sn.SensorID).Msg("getPlaybackState failed")
		return motionevent.ActionError, false
	}
	if state != nil && state.IsPlaying {
		return motionevent.ActionAlreadyPlaying, false
	}

	if sn.SpotifyConfig.DeviceID == "" {
		d.Log.Warn().Err(apperr.ErrNoDeviceConfigured).Str("sensorId", sn.SensorID).Msg("no device configured")
		return motionevent.ActionError, false
	}

	err = d.Streaming.StartPlayback(ctx, bundle.AccessToken, streaming.StartOptions{
		DeviceID:      sn.SpotifyConfig.DeviceID,
		ContextURI:    sn.SpotifyConfig.PlaylistURI,
		Shuffle:       sn.SpotifyConfig.Shuffle,
		VolumePercent: sn.SpotifyConfig.VolumePercent,
	})
	if err != nil {
		d.Log.Warn().Err(err).Str("sensorId", sn.SensorID).Msg("startPlayback failed")
		return motionevent.ActionError, false
	}

	if state != nil && state.HasContext {
		return motionevent.ActionPlaybackResumed, true
	}
	return motionevent.ActionPlaybackStarted, true
}

func (d *Dispatcher) audit(ctx context.Context, sensorID, userID, sessionID string, eventType motionevent.EventType, ts time.Time, action motionevent.ActionTaken, playbackTriggered bool, telemetry motionevent.Telemetry, metadata map[string]any) (*motionevent.MotionEvent, error) {
	ev := motionevent.New(sensorID, userID, sessionID, eventType, ts, action, playbackTriggered, telemetry, metadata, d.TTLDays)
	if err := d.Events.Put(ctx, ev); err != nil {
		return ev, apperr.WrapStoreError(err, "dispatcher: write motion event")
	}
	return ev, nil
}

// parseTimestamp implements spec §4.3 step 1: use event.timestamp if
// present (seconds epoch or ISO-8601); otherwise the current UTC time.
func parseTimestamp(raw any, fallback time.Time) time.Time {
	switch v := raw.(type) {
	case nil:
		return fallback.UTC()
	case float64:
		return time.Unix(int64(v), 0).UTC()
	case int64:
		return time.Unix(v, 0).UTC()
	case int:
		return time.Unix(int64(v), 0).UTC()
	case string:
		if v == "" {
			return fallback.UTC()
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC()
		}
		return fallback.UTC()
	default:
		return fallback.UTC()
	}
}

// extractTelemetry copies the three known telemetry keys from metadata
// (spec §6); metadata itself is recorded whole, those keys included, for
// audit purposes.
func extractTelemetry(metadata map[string]any) motionevent.Telemetry {
	var t motionevent.Telemetry
	if metadata == nil {
		return t
	}
	if v, ok := metadata["batteryLevel"].(float64); ok {
		t.BatteryLevel = &v
	}
	if v, ok := metadata["signalStrength"].(float64); ok {
		t.SignalStrength = &v
	}
	if v, ok := metadata["firmwareVersion"].(string); ok {
		t.FirmwareVersion = v
	}
	return t
}
