package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spottypottysense/motionengine/internal/app/registry"
	"github.com/spottypottysense/motionengine/internal/domain/secret"
	"github.com/spottypottysense/motionengine/internal/domain/sensor"
	"github.com/spottypottysense/motionengine/internal/domain/user"
	"github.com/spottypottysense/motionengine/internal/infra/clock"
	"github.com/spottypottysense/motionengine/internal/infra/secretstore"
	"github.com/spottypottysense/motionengine/internal/infra/store/memstore"
	"github.com/spottypottysense/motionengine/internal/infra/streaming"
)

type fakeStreaming struct {
	state     *streaming.PlaybackState
	pauseErr  error
	pauseCall int
}

func (f *fakeStreaming) GetPlaybackState(context.Context, string) (*streaming.PlaybackState, error) {
	return f.state, nil
}
func (f *fakeStreaming) StartPlayback(context.Context, string, streaming.StartOptions) error {
	return nil
}
func (f *fakeStreaming) PausePlayback(context.Context, string, string) error {
	f.pauseCall++
	return f.pauseErr
}
func (f *fakeStreaming) ListDevices(context.Context, string) ([]streaming.Device, error) {
	return nil, nil
}
func (f *fakeStreaming) RefreshToken(context.Context, string, string, string) (*streaming.RefreshResult, error) {
	return nil, nil
}

type fixture struct {
	sweeper  *Sweeper
	sensors  *memstore.Sensors
	users    *memstore.Users
	sessions *memstore.Sessions
	secrets  *secretstore.InMemory
	fs       *fakeStreaming
	clk      *clock.Fake
	reg      *registry.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sensors := memstore.NewSensors()
	users := memstore.NewUsers()
	sessions := memstore.NewSessions()
	secrets := secretstore.NewInMemory()
	fs := &fakeStreaming{}
	clk := clock.NewFake(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	reg := registry.New(sessions, clk, 0)
	sw := New(sensors, users, reg, secrets, fs, clk, time.Minute, zerolog.Nop())
	return &fixture{sweeper: sw, sensors: sensors, users: users, sessions: sessions, secrets: secrets, fs: fs, clk: clk, reg: reg}
}

func TestPass_SkipsSessionsUnderTimeout(t *testing.T) {
	fx := newFixture(t)
	sn := sensor.New("sensor-1", "user-1", fx.clk.Now())
	sn.TimeoutMinutes = 5
	require.NoError(t, fx.sensors.Put(context.Background(), sn))
	require.NoError(t, fx.users.Put(context.Background(), &user.User{UserID: "user-1", Active: true}))

	res, err := fx.reg.OpenOrExtend(context.Background(), "sensor-1", "user-1")
	require.NoError(t, err)

	fx.clk.Advance(2 * time.Minute)
	summary := fx.sweeper.Pass(context.Background())
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 0, summary.TimedOut)

	s, err := fx.sessions.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.True(t, s.IsActive())
}

func TestPass_PausesAndCompletesTimedOutSession(t *testing.T) {
	fx := newFixture(t)
	sn := sensor.New("sensor-1", "user-1", fx.clk.Now())
	sn.TimeoutMinutes = 5
	sn.SpotifyConfig.DeviceID = "device-1"
	require.NoError(t, fx.sensors.Put(context.Background(), sn))
	require.NoError(t, fx.users.Put(context.Background(), &user.User{UserID: "user-1", Active: true, SpotifyConnected: true, SpotifyTokenSecretRef: "secret-1"}))
	require.NoError(t, fx.secrets.Put(context.Background(), "secret-1", &secret.Bundle{AccessToken: "tok"}))
	fx.fs.state = &streaming.PlaybackState{IsPlaying: true, Device: &streaming.Device{ID: "device-1"}}

	res, err := fx.reg.OpenOrExtend(context.Background(), "sensor-1", "user-1")
	require.NoError(t, err)

	fx.clk.Advance(10 * time.Minute)
	summary := fx.sweeper.Pass(context.Background())
	assert.Equal(t, 1, summary.TimedOut)
	assert.Equal(t, 1, summary.Paused)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, fx.fs.pauseCall)

	s, err := fx.sessions.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.False(t, s.IsActive())
	require.NotNil(t, s.DurationMinutes)
	assert.InDelta(t, 10.0, *s.DurationMinutes, 0.01)
}

func TestPass_OrphanedSensorCompletesWithoutPause(t *testing.T) {
	fx := newFixture(t)
	// Open the session through the registry, then swap in an empty sensor
	// store to simulate a sensor that was later deleted.
	sn := sensor.New("ghost-sensor", "user-1", fx.clk.Now())
	require.NoError(t, fx.sensors.Put(context.Background(), sn))
	require.NoError(t, fx.users.Put(context.Background(), &user.User{UserID: "user-1", Active: true}))
	res, err := fx.reg.OpenOrExtend(context.Background(), "ghost-sensor", "user-1")
	require.NoError(t, err)

	// Now the sensor disappears.
	require.NoError(t, fx.sensors.Put(context.Background(), sn)) // no-op keep
	fx.sensors = memstore.NewSensors()
	fx.sweeper.Sensors = fx.sensors

	summary := fx.sweeper.Pass(context.Background())
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 0, summary.Paused)

	s, err := fx.sessions.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.False(t, s.IsActive())
}

func TestPass_FallsBackToStartTimeWhenLastMotionZero(t *testing.T) {
	fx := newFixture(t)
	sn := sensor.New("sensor-1", "user-1", fx.clk.Now())
	sn.TimeoutMinutes = 5
	require.NoError(t, fx.sensors.Put(context.Background(), sn))
	require.NoError(t, fx.users.Put(context.Background(), &user.User{UserID: "user-1", Active: true}))

	res, err := fx.reg.OpenOrExtend(context.Background(), "sensor-1", "user-1")
	require.NoError(t, err)

	s, err := fx.sessions.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	s.LastMotionTime = time.Time{}
	require.NoError(t, fx.sessions.Update(context.Background(), s))

	fx.clk.Advance(10 * time.Minute)
	summary := fx.sweeper.Pass(context.Background())
	assert.Equal(t, 1, summary.TimedOut)
}
