// Package streaming is the typed client over the third-party streaming
// HTTP API (spec §4.1). It wraps github.com/zmb3/spotify/v2 the way the
// teacher's infra/spotify.Client wraps it — a retry loop, a small set of
// typed operations — generalised from "one process-wide cached refresh
// token" to "every call takes an explicit bearer access token; none cache
// tokens" (spec §4.1).
package streaming

import (
	"context"
	"math"
	"net/url"
	"time"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	spotifyoauth "golang.org/x/oauth2/spotify"
	"golang.org/x/time/rate"

	"github.com/spottypottysense/motionengine/internal/apperr"
)

// Device mirrors the subset of the streaming API's device shape the engine
// needs (spec §6: GET /me/player/devices).
type Device struct {
	ID            string
	Name          string
	IsActive      bool
	VolumePercent *int
}

// PlaybackState mirrors spec §4.1's getPlaybackState() result. A nil
// *PlaybackState return (with nil error) means NoActivePlayback.
type PlaybackState struct {
	IsPlaying bool
	Device    *Device
	TrackURI  string
	// HasContext is true when the player reports a context (an
	// album/playlist), whether playing or paused. With IsPlaying false it is
	// the signal the Dispatcher uses to tell playback_resumed from
	// playback_started (spec §4.3 step 9).
	HasContext bool
}

// StartOptions is spec §4.1's startPlayback(deviceId?, contextUri?,
// shuffle?, volumePercent?) argument set.
type StartOptions struct {
	DeviceID      string
	ContextURI    string
	Shuffle       bool
	VolumePercent *int
}

// RefreshResult is spec §4.1's refreshToken() result.
type RefreshResult struct {
	AccessToken  string
	ExpiresInSec int
	Scope        string
}

// Adapter is the Streaming Adapter's operation set — exactly spec §4.1's
// five methods.
type Adapter interface {
	GetPlaybackState(ctx context.Context, accessToken string) (*PlaybackState, error)
	StartPlayback(ctx context.Context, accessToken string, opts StartOptions) error
	PausePlayback(ctx context.Context, accessToken, deviceID string) error
	ListDevices(ctx context.Context, accessToken string) ([]Device, error)
	RefreshToken(ctx context.Context, refreshToken, clientID, clientSecret string) (*RefreshResult, error)
}

// Config configures retry policy and client-side rate limiting for Client.
type Config struct {
	MaxRetries    int           // default 3
	RetryBaseDelay time.Duration // default 500ms
	RetryCapDelay  time.Duration // default 5s
	// RateLimitPerSecond bounds outbound calls so the Dispatcher never
	// floods the upstream faster than it can honour — the client-side
	// complement to the server's 429 hint, not a replacement for it.
	RateLimitPerSecond float64 // default 10
	RateLimitBurst     int     // default 10
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
	if c.RetryCapDelay <= 0 {
		c.RetryCapDelay = 5 * time.Second
	}
	if c.RateLimitPerSecond <= 0 {
		c.RateLimitPerSecond = 10
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 10
	}
	return c
}

// Client is the production Adapter.
type Client struct {
	cfg     Config
	limiter *rate.Limiter
}

// New builds a Client. It holds no refresh token and constructs no
// long-lived authenticated client at startup — every call below takes the
// bearer token it needs.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst),
	}
}

func (c *Client) clientFor(ctx context.Context, accessToken string) *spotify.Client {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	return spotify.New(httpClient)
}

// GetPlaybackState implements spec §4.1's getPlaybackState.
func (c *Client) GetPlaybackState(ctx context.Context, accessToken string) (*PlaybackState, error) {
	sc := c.clientFor(ctx, accessToken)

	var state *spotify.PlayerState
	err := c.retry(ctx, func() error {
		s, err := sc.PlayerState(ctx)
		if err != nil {
			return err
		}
		state = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	if state == nil || (state.Device.ID == "" && !state.Playing) {
		return nil, nil
	}

	var dev *Device
	if state.Device.ID != "" {
		vol := int(state.Device.Volume)
		dev = &Device{
			ID:            string(state.Device.ID),
			Name:          state.Device.Name,
			IsActive:      state.Device.Active,
			VolumePercent: &vol,
		}
	}

	var trackURI string
	if state.Item != nil {
		trackURI = string(state.Item.URI)
	}

	return &PlaybackState{
		IsPlaying:  state.Playing,
		Device:     dev,
		TrackURI:   trackURI,
		HasContext: state.PlaybackContext.URI != "",
	}, nil
}

// StartPlayback implements spec §4.1's startPlayback. Shuffle/volume
// follow-ups are best-effort and never fail the start.
func (c *Client) StartPlayback(ctx context.Context, accessToken string, opts StartOptions) error {
	sc := c.clientFor(ctx, accessToken)

	playOpts := &spotify.PlayOptions{}
	if opts.DeviceID != "" {
		id := spotify.ID(opts.DeviceID)
		playOpts.DeviceID = &id
	}
	if opts.ContextURI != "" {
		uri := spotify.URI(opts.ContextURI)
		playOpts.PlaybackContext = &uri
	}

	if err := c.retry(ctx, func() error {
		return sc.PlayOpt(ctx, playOpts)
	}); err != nil {
		return err
	}

	if opts.Shuffle {
		_ = c.retry(ctx, func() error { return sc.ShuffleOpt(ctx, true, playOpts) })
	}
	if opts.VolumePercent != nil {
		_ = c.retry(ctx, func() error { return sc.VolumeOpt(ctx, *opts.VolumePercent, playOpts) })
	}
	return nil
}

// PausePlayback implements spec §4.1's pausePlayback.
func (c *Client) PausePlayback(ctx context.Context, accessToken, deviceID string) error {
	sc := c.clientFor(ctx, accessToken)
	opts := &spotify.PlayOptions{}
	if deviceID != "" {
		id := spotify.ID(deviceID)
		opts.DeviceID = &id
	}
	return c.retry(ctx, func() error {
		return sc.PauseOpt(ctx, opts)
	})
}

// ListDevices implements spec §4.1's listDevices.
func (c *Client) ListDevices(ctx context.Context, accessToken string) ([]Device, error) {
	sc := c.clientFor(ctx, accessToken)

	var devices []spotify.PlayerDevice
	err := c.retry(ctx, func() error {
		d, err := sc.PlayerDevices(ctx)
		if err != nil {
			return err
		}
		devices = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		vol := int(d.Volume)
		out = append(out, Device{
			ID:            string(d.ID),
			Name:          d.Name,
			IsActive:      d.Active,
			VolumePercent: &vol,
		})
	}
	return out, nil
}

// RefreshToken implements spec §4.1's refreshToken, exchanging a refresh
// token for a new access token via the standard OAuth2 token endpoint — no
// token is cached in the adapter itself.
func (c *Client) RefreshToken(ctx context.Context, refreshToken, clientID, clientSecret string) (*RefreshResult, error) {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     spotifyoauth.Endpoint,
	}
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	var tok *oauth2.Token
	err := c.retry(ctx, func() error {
		t, err := ts.Token()
		if err != nil {
			return err
		}
		tok = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	expiresIn := int(math.Round(time.Until(tok.Expiry).Seconds()))
	scope, _ := tok.Extra("scope").(string)
	return &RefreshResult{
		AccessToken:  tok.AccessToken,
		ExpiresInSec: expiresIn,
		Scope:        scope,
	}, nil
}

// retry applies spec §4.1's retry policy: transport/5xx get up to
// MaxRetries attempts with exponential backoff; 429 gets a single
// Retry-After wait then failure; 401 is never retried.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperr.WrapTimeout(err, "streaming: rate limiter wait")
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		status, retryAfter, isRateLimited := classifyStatus(err)
		switch {
		case status == 401:
			return apperr.WrapAuthError(err, "streaming: unauthorized")
		case isRateLimited:
			if attempt == 0 {
				wait := retryAfter
				if wait <= 0 {
					wait = c.cfg.RetryBaseDelay
				}
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return apperr.WrapTimeout(ctx.Err(), "streaming: rate-limit wait cancelled")
				}
				continue
			}
			return apperr.NewRateLimited(int(retryAfter.Seconds()), "streaming: rate limited")
		case status >= 500 && status < 600, status == 0:
			if attempt < c.cfg.MaxRetries-1 {
				delay := backoff(c.cfg.RetryBaseDelay, c.cfg.RetryCapDelay, attempt)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return apperr.WrapTimeout(ctx.Err(), "streaming: backoff wait cancelled")
				}
				continue
			}
		default:
			return apperr.WrapUpstreamError(status, err, "streaming: upstream error")
		}
	}
	return classify(lastErr)
}

func backoff(base, capDelay time.Duration, attempt int) time.Duration {
	d := base * time.Duration(math.Pow(2, float64(attempt)))
	if d > capDelay {
		d = capDelay
	}
	return d
}

// retryAfterDefault is the wait applied to every 429 response.
const retryAfterDefault = time.Second

// classifyStatus extracts an HTTP status (0 if unknown — a transport
// failure) and, for 429s, the wait before the single retry. That wait is
// always retryAfterDefault; the response's Retry-After header is not read.
func classifyStatus(err error) (status int, retryAfter time.Duration, isRateLimited bool) {
	if se, ok := err.(*spotify.Error); ok {
		if se.Status == 429 {
			return 429, retryAfterDefault, true
		}
		return se.Status, 0, false
	}
	if re, ok := err.(*oauth2.RetrieveError); ok && re.Response != nil {
		if re.Response.StatusCode == 429 {
			return 429, retryAfterDefault, true
		}
		return re.Response.StatusCode, 0, false
	}
	return 0, 0, false
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	status, _, _ := classifyStatus(err)
	if status == 401 {
		return apperr.WrapAuthError(err, "streaming: unauthorized")
	}
	if status != 0 {
		return apperr.WrapUpstreamError(status, err, "streaming: upstream error")
	}
	var urlErr *url.Error
	if isURLError(err, &urlErr) {
		return apperr.WrapTimeout(err, "streaming: transport failure")
	}
	return apperr.WrapStoreError(err, "streaming: request failed after retries")
}

func isURLError(err error, target **url.Error) bool {
	ue, ok := err.(*url.Error)
	if ok {
		*target = ue
	}
	return ok
}
