// Package apperr is the error taxonomy shared by every component: a tagged
// result type over cockroachdb/errors rather than the ad-hoc exception
// hierarchy the orchestration logic would otherwise need to reconstruct from
// string matching.
package apperr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies an error for propagation-policy decisions (retry, audit
// code, HTTP status) without string matching on error text.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindResourceNotFound Kind = "resource_not_found"
	KindAuthorization   Kind = "authorization"
	KindAuthError       Kind = "auth_error"
	KindRateLimited     Kind = "rate_limited"
	KindUpstreamError   Kind = "upstream_error"
	KindStoreError      Kind = "store_error"
	KindConfiguration   Kind = "configuration"
	KindTimeout         Kind = "timeout"
)

// Error is the common shape every apperr constructor returns.
type Error struct {
	kind       Kind
	msg        string
	cause      error
	retryAfter int // seconds; only meaningful for KindRateLimited
	status     int // upstream HTTP status; only meaningful for KindUpstreamError
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// Kind reports this error's taxonomy classification.
func (e *Error) Kind() Kind { return e.kind }

// RetryAfter reports the server-supplied retry hint, valid when Kind() is
// KindRateLimited.
func (e *Error) RetryAfter() int { return e.retryAfter }

// Status reports the upstream HTTP status, valid when Kind() is
// KindUpstreamError.
func (e *Error) Status() int { return e.status }

func newErr(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

// NewValidation reports a caller-input problem (§7: return 400/ignored_*).
func NewValidation(format string, args ...any) *Error {
	return newErr(KindValidation, nil, format, args...)
}

// NewResourceNotFound reports a missing Sensor/User/Session (§7: return 404;
// in the Dispatcher, recorded as an error MotionEvent and the event is ACKed).
func NewResourceNotFound(format string, args ...any) *Error {
	return newErr(KindResourceNotFound, nil, format, args...)
}

// NewAuthorization reports a permission failure (§7: return 403; Sweeper and
// Refresher log and continue).
func NewAuthorization(format string, args ...any) *Error {
	return newErr(KindAuthorization, nil, format, args...)
}

// WrapAuthError reports an upstream 401 (§7: log; Dispatcher records error;
// Refresher marks the user as refresh-failed). Never retried.
func WrapAuthError(cause error, format string, args ...any) *Error {
	return newErr(KindAuthError, cause, format, args...)
}

// NewRateLimited reports an upstream 429 with its Retry-After hint in
// seconds (§7: one respectful retry in the adapter; if still limited,
// surfaced as transient and the current step aborted).
func NewRateLimited(retryAfterSec int, format string, args ...any) *Error {
	e := newErr(KindRateLimited, nil, format, args...)
	e.retryAfter = retryAfterSec
	return e
}

// WrapUpstreamError reports a non-2xx, non-401, non-429 upstream response
// (§7: 5xx retried per §4.1; otherwise the step fails).
func WrapUpstreamError(status int, cause error, format string, args ...any) *Error {
	e := newErr(KindUpstreamError, cause, format, args...)
	e.status = status
	return e
}

// WrapStoreError reports a persistence-layer failure, including throttling.
// No caller in this module retries a store error: the pass or event step
// that hit it fails at once.
func WrapStoreError(cause error, format string, args ...any) *Error {
	return newErr(KindStoreError, cause, format, args...)
}

// NewConfiguration reports a misconfiguration (§7: fatal at startup, 5xx at
// request time).
func NewConfiguration(format string, args ...any) *Error {
	return newErr(KindConfiguration, nil, format, args...)
}

// WrapTimeout reports a deadline expiry (§7: treated as Transport/UpstreamError).
func WrapTimeout(cause error, format string, args ...any) *Error {
	return newErr(KindTimeout, cause, format, args...)
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return "", false
}

// Is reports whether err classifies as kind, looking through wrapping.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Sentinel causes used across components for specific failure reasons that
// don't need their own Kind. They are plain errors, not *Error values, so
// KindOf reports ok=false for them; callers tell them apart with errors.Is.
var (
	// ErrNoSpotifyCredentials is the §4.3 step 8 cause: the user's access
	// token could not be read from the secret store.
	ErrNoSpotifyCredentials = errors.New("apperr: no spotify credentials")
	// ErrNoDeviceConfigured is the §4.3 step 9 cause: spotifyConfig.deviceId
	// is missing, so startPlayback is never attempted.
	ErrNoDeviceConfigured = errors.New("apperr: no device configured")
	// ErrBusy is returned by the Session Registry when a create conflict
	// could not be resolved after retrying (§4.2).
	ErrBusy = errors.New("apperr: session registry busy")
)
