package refresher

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spottypottysense/motionengine/internal/domain/secret"
	"github.com/spottypottysense/motionengine/internal/domain/user"
	"github.com/spottypottysense/motionengine/internal/infra/secretstore"
	"github.com/spottypottysense/motionengine/internal/infra/store/memstore"
	"github.com/spottypottysense/motionengine/internal/infra/streaming"
)

type fakeStreaming struct {
	refreshResult *streaming.RefreshResult
	refreshErr    error
	calls         int
}

func (f *fakeStreaming) GetPlaybackState(context.Context, string) (*streaming.PlaybackState, error) {
	return nil, nil
}
func (f *fakeStreaming) StartPlayback(context.Context, string, streaming.StartOptions) error {
	return nil
}
func (f *fakeStreaming) PausePlayback(context.Context, string, string) error { return nil }
func (f *fakeStreaming) ListDevices(context.Context, string) ([]streaming.Device, error) {
	return nil, nil
}
func (f *fakeStreaming) RefreshToken(context.Context, string, string, string) (*streaming.RefreshResult, error) {
	f.calls++
	return f.refreshResult, f.refreshErr
}

func newFixture(t *testing.T, now time.Time) (*Refresher, *memstore.Users, *secretstore.InMemory, *fakeStreaming) {
	t.Helper()
	users := memstore.NewUsers()
	secrets := secretstore.NewInMemory()
	fs := &fakeStreaming{refreshResult: &streaming.RefreshResult{AccessToken: "new-tok", ExpiresInSec: 3600, Scope: "streaming"}}
	r := New(users, secrets, fs, "client-id", "client-secret", time.Minute, 5*time.Minute, zerolog.Nop())
	r.nowFn = func() time.Time { return now }
	return r, users, secrets, fs
}

func TestPass_RefreshesTokenNearingExpiry(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	r, users, secrets, fs := newFixture(t, now)

	require.NoError(t, users.Put(context.Background(), &user.User{UserID: "user-1", Active: true, SpotifyConnected: true, SpotifyTokenSecretRef: "secret-1"}))
	require.NoError(t, secrets.Put(context.Background(), "secret-1", &secret.Bundle{
		AccessToken: "old-tok", RefreshToken: "refresh-1", ExpiresAt: now.Add(2 * time.Minute),
	}))

	summary := r.Pass(context.Background())
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Refreshed)
	assert.Equal(t, 1, fs.calls)

	b, err := secrets.Get(context.Background(), "secret-1")
	require.NoError(t, err)
	assert.Equal(t, "new-tok", b.AccessToken)
	assert.Equal(t, "refresh-1", b.RefreshToken)
	assert.True(t, b.ExpiresAt.Sub(now) > 5*time.Minute)
}

func TestPass_SkipsTokenFarFromExpiry(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	r, users, secrets, fs := newFixture(t, now)

	require.NoError(t, users.Put(context.Background(), &user.User{UserID: "user-1", Active: true, SpotifyConnected: true, SpotifyTokenSecretRef: "secret-1"}))
	require.NoError(t, secrets.Put(context.Background(), "secret-1", &secret.Bundle{
		AccessToken: "old-tok", RefreshToken: "refresh-1", ExpiresAt: now.Add(time.Hour),
	}))

	summary := r.Pass(context.Background())
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 0, summary.Refreshed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, fs.calls)
}

func TestPass_SkipsInactiveAndDisconnectedUsers(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	r, users, _, _ := newFixture(t, now)

	require.NoError(t, users.Put(context.Background(), &user.User{UserID: "user-1", Active: false, SpotifyConnected: true, SpotifyTokenSecretRef: "secret-1"}))
	require.NoError(t, users.Put(context.Background(), &user.User{UserID: "user-2", Active: true, SpotifyConnected: false}))

	summary := r.Pass(context.Background())
	assert.Equal(t, 0, summary.Checked)
}

func TestPass_OneUserFailureDoesNotBlockOthers(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	r, users, secrets, fs := newFixture(t, now)
	fs.refreshErr = assertAnError{}

	require.NoError(t, users.Put(context.Background(), &user.User{UserID: "user-1", Active: true, SpotifyConnected: true, SpotifyTokenSecretRef: "secret-1"}))
	require.NoError(t, users.Put(context.Background(), &user.User{UserID: "user-2", Active: true, SpotifyConnected: true, SpotifyTokenSecretRef: "secret-2"}))
	require.NoError(t, secrets.Put(context.Background(), "secret-1", &secret.Bundle{RefreshToken: "r1", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, secrets.Put(context.Background(), "secret-2", &secret.Bundle{RefreshToken: "r2", ExpiresAt: now.Add(time.Minute)}))

	summary := r.Pass(context.Background())
	assert.Equal(t, 2, summary.Checked)
	assert.Len(t, summary.Errors, 2)
}

type assertAnError struct{}

func (assertAnError) Error() string { return "refresh failed" }
