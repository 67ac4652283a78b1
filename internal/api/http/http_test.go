package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spottypottysense/motionengine/internal/app/dispatcher"
	"github.com/spottypottysense/motionengine/internal/app/registry"
	"github.com/spottypottysense/motionengine/internal/domain/sensor"
	"github.com/spottypottysense/motionengine/internal/domain/user"
	"github.com/spottypottysense/motionengine/internal/infra/clock"
	"github.com/spottypottysense/motionengine/internal/infra/secretstore"
	"github.com/spottypottysense/motionengine/internal/infra/store/memstore"
	"github.com/spottypottysense/motionengine/internal/infra/streaming"
)

type nopStreaming struct{}

func (nopStreaming) GetPlaybackState(context.Context, string) (*streaming.PlaybackState, error) {
	return nil, nil
}
func (nopStreaming) StartPlayback(context.Context, string, streaming.StartOptions) error { return nil }
func (nopStreaming) PausePlayback(context.Context, string, string) error                 { return nil }
func (nopStreaming) ListDevices(context.Context, string) ([]streaming.Device, error)     { return nil, nil }
func (nopStreaming) RefreshToken(context.Context, string, string, string) (*streaming.RefreshResult, error) {
	return nil, nil
}

func TestHandleMotion_AcceptsValidEnvelope(t *testing.T) {
	sensors := memstore.NewSensors()
	users := memstore.NewUsers()
	sessions := memstore.NewSessions()
	events := memstore.NewMotionEvents()
	clk := clock.NewFake(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	reg := registry.New(sessions, clk, 0)

	require.NoError(t, sensors.Put(context.Background(), sensor.New("sensor-1", "user-1", clk.Now())))
	require.NoError(t, users.Put(context.Background(), &user.User{UserID: "user-1", Active: true}))

	d := dispatcher.New(sensors, users, reg, secretstore.NewInMemory(), nopStreaming{}, events, clk, 0, zerolog.Nop())
	router := NewRouter(d, zerolog.Nop())

	body, _ := json.Marshal(map[string]string{"sensorId": "sensor-1", "event": "motion_detected"})
	req := httptest.NewRequest("POST", "/motion", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 202, rec.Code)
}

func TestHandleMotion_RejectsMissingSensorID(t *testing.T) {
	d := dispatcher.New(memstore.NewSensors(), memstore.NewUsers(), registry.New(memstore.NewSessions(), clock.NewFake(time.Now()), 0), secretstore.NewInMemory(), nopStreaming{}, memstore.NewMotionEvents(), clock.NewFake(time.Now()), 0, zerolog.Nop())
	router := NewRouter(d, zerolog.Nop())

	body, _ := json.Marshal(map[string]string{"event": "motion_detected"})
	req := httptest.NewRequest("POST", "/motion", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestHealthz(t *testing.T) {
	d := dispatcher.New(memstore.NewSensors(), memstore.NewUsers(), registry.New(memstore.NewSessions(), clock.NewFake(time.Now()), 0), secretstore.NewInMemory(), nopStreaming{}, memstore.NewMotionEvents(), clock.NewFake(time.Now()), 0, zerolog.Nop())
	router := NewRouter(d, zerolog.Nop())

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
}
