// Package refresher is the Token Refresher (spec §4.5): a ticker-driven
// pass that keeps every connected user's access token ahead of expiry,
// grounded on the same ticker+select shape as the Timeout Sweeper.
package refresher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/spottypottysense/motionengine/internal/domain/secret"
	"github.com/spottypottysense/motionengine/internal/infra/secretstore"
	"github.com/spottypottysense/motionengine/internal/infra/store"
	"github.com/spottypottysense/motionengine/internal/infra/streaming"
)

// DefaultInterval matches spec §4.5's "default every 30 minutes".
const DefaultInterval = 30 * time.Minute

// DefaultBuffer matches spec §4.5 step 2's "default 5 minutes".
const DefaultBuffer = 5 * time.Minute

// CallTimeout bounds each I/O boundary crossed during a pass (spec §5).
const CallTimeout = 10 * time.Second

// pageSize bounds one ListConnected page per pass iteration.
const pageSize = 100

// PassSummary is the per-pass report: how many connected users were
// considered, how many were refreshed, and any per-user failures.
type PassSummary struct {
	Checked   int
	Refreshed int
	Skipped   int
	Errors    []error
}

// Refresher is the Token Refresher component.
type Refresher struct {
	Users        store.UserStore
	Secrets      secretstore.Store
	Streaming    streaming.Adapter
	ClientID     string
	ClientSecret string
	Buffer       time.Duration
	Interval     time.Duration
	nowFn        func() time.Time
	Log          zerolog.Logger
}

// New builds a Refresher. interval<=0/buffer<=0 use their package defaults.
func New(users store.UserStore, secrets secretstore.Store, adapter streaming.Adapter, clientID, clientSecret string, interval, buffer time.Duration, log zerolog.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Refresher{
		Users: users, Secrets: secrets, Streaming: adapter,
		ClientID: clientID, ClientSecret: clientSecret,
		Buffer: buffer, Interval: interval, nowFn: time.Now, Log: log,
	}
}

// Run blocks, running one Pass every Interval until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary := r.Pass(ctx)
			r.Log.Info().
				Int("checked", summary.Checked).
				Int("refreshed", summary.Refreshed).
				Int("skipped", summary.Skipped).
				Int("errors", len(summary.Errors)).
				Msg("refresher pass complete")
		}
	}
}

// Pass runs one sweep over every connected user (spec §4.5 steps 1-5).
func (r *Refresher) Pass(ctx context.Context) PassSummary {
	var summary PassSummary
	now := r.nowFn()

	pageToken := ""
	for {
		if ctx.Err() != nil {
			return summary
		}
		users, next, err := r.Users.ListConnected(ctx, pageToken, pageSize)
		if err != nil {
			summary.Errors = append(summary.Errors, err)
			return summary
		}
		for _, u := range users {
			summary.Checked++
			refreshed, err := r.refreshOne(ctx, u.SpotifyTokenSecretRef, now)
			if err != nil {
				summary.Errors = append(summary.Errors, err)
				continue
			}
			if refreshed {
				summary.Refreshed++
			} else {
				summary.Skipped++
			}
		}
		if next == "" {
			break
		}
		pageToken = next
	}
	return summary
}

// refreshOne implements spec §4.5 steps 2-4 for one user; the bool result
// reports whether a refresh actually happened (false means skipped).
func (r *Refresher) refreshOne(ctx context.Context, secretRef string, now time.Time) (bool, error) {
	if secretRef == "" {
		return false, nil
	}
	callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	bundle, err := r.Secrets.Get(callCtx, secretRef)
	if err != nil {
		return false, err
	}
	if !bundle.ExpiresWithin(now, r.Buffer) {
		return false, nil
	}

	result, err := r.Streaming.RefreshToken(callCtx, bundle.RefreshToken, r.ClientID, r.ClientSecret)
	if err != nil {
		return false, err
	}

	updated := &secret.Bundle{
		AccessToken:   result.AccessToken,
		RefreshToken:  bundle.RefreshToken,
		ExpiresAt:     now.Add(time.Duration(result.ExpiresInSec) * time.Second),
		Scope:         result.Scope,
		LastRefreshed: now,
	}
	if err := r.Secrets.Put(callCtx, secretRef, updated); err != nil {
		return false, err
	}
	r.Secrets.Invalidate(callCtx, secretRef)
	return true, nil
}
