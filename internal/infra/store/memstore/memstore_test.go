package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spottypottysense/motionengine/internal/domain/motionsession"
	"github.com/spottypottysense/motionengine/internal/domain/user"
	"github.com/spottypottysense/motionengine/internal/infra/store"
)

func TestSensors_GetMissing(t *testing.T) {
	s := NewSensors()
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessions_CreateActive_RejectsSecondActive(t *testing.T) {
	ss := NewSessions()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s1 := motionsession.Open("sensor-1", "user-1", now, 0)
	require.NoError(t, ss.CreateActive(ctx, s1))

	s2 := motionsession.Open("sensor-1", "user-1", now.Add(time.Minute), 0)
	err := ss.CreateActive(ctx, s2)
	assert.ErrorIs(t, err, store.ErrActiveSessionExists)
}

func TestSessions_CreateActive_ConcurrentOnlyOneWins(t *testing.T) {
	ss := NewSessions()
	ctx := context.Background()
	now := time.Now()

	const attempts = 20
	var wg sync.WaitGroup
	successes := make(chan string, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := motionsession.Open("sensor-race", "user-1", now, 0)
			if err := ss.CreateActive(ctx, s); err == nil {
				successes <- s.SessionID
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	assert.Equal(t, 1, count)

	active, err := ss.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestSessions_Analytics_AveragesOverCompletedOnly(t *testing.T) {
	ss := NewSessions()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	active := motionsession.Open("sensor-1", "user-1", now, 0)
	require.NoError(t, ss.CreateActive(ctx, active))

	completed := motionsession.Open("sensor-2", "user-1", now, 0)
	completed.Extend(now.Add(time.Minute))
	completed.Complete(now.Add(10 * time.Minute))
	require.NoError(t, ss.CreateActive(ctx, completed))

	result, err := ss.Analytics(ctx, store.AnalyticsQuery{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalSessions)
	assert.Equal(t, 1, result.ActiveSessions)
	assert.Equal(t, 1, result.CompletedSessions)
	assert.InDelta(t, 10.0, result.AverageDurationMinutes, 0.01)
}

func TestSessions_Analytics_ZeroCompletedGivesZeroAverages(t *testing.T) {
	ss := NewSessions()
	ctx := context.Background()
	now := time.Now()

	active := motionsession.Open("sensor-1", "user-1", now, 0)
	require.NoError(t, ss.CreateActive(ctx, active))

	result, err := ss.Analytics(ctx, store.AnalyticsQuery{SensorID: "sensor-1"})
	require.NoError(t, err)
	assert.Zero(t, result.AverageDurationMinutes)
}

func TestUsers_ListConnected_SkipsInactiveAndDisconnected(t *testing.T) {
	u := NewUsers()
	ctx := context.Background()

	mustPutUser(t, u, "u1", true, true)
	mustPutUser(t, u, "u2", false, true)
	mustPutUser(t, u, "u3", true, false)

	out, next, err := u.ListConnected(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, out, 1)
	assert.Equal(t, "u1", out[0].UserID)
}

func mustPutUser(t *testing.T, u *Users, id string, active, connected bool) {
	t.Helper()
	err := u.Put(context.Background(), &user.User{UserID: id, Active: active, SpotifyConnected: connected})
	require.NoError(t, err)
}
