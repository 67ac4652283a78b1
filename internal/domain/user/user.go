// Package user provides the User domain entity.
package user

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrConnectedWithoutSecretRef is returned by Validate when SpotifyConnected
// is true but no secret reference is set.
var ErrConnectedWithoutSecretRef = errors.New("user: spotifyConnected without spotifyTokenSecretRef")

// User owns zero or more Sensors and, once connected, a SecretBundle.
type User struct {
	UserID                string `validate:"required"`
	Email                 string `validate:"omitempty,email"`
	Active                bool
	SpotifyConnected      bool
	SpotifyTokenSecretRef string
	// Timezone is an IANA location name (e.g. "America/New_York") used to
	// interpret a sensor's quiet-hours window in this user's local time.
	// Empty means UTC.
	Timezone string
}

// DefaultTimezone is used whenever Timezone is empty or fails to resolve.
const DefaultTimezone = "UTC"

// Location resolves Timezone to a *time.Location, falling back to UTC.
func (u *User) Location() *time.Location {
	if u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks structural invariants, including that a connected user
// carries a resolvable secret reference (spec invariant: if spotifyConnected
// then spotifyTokenSecretRef is set).
func (u *User) Validate() error {
	if err := validate.Struct(u); err != nil {
		return err
	}
	if u.SpotifyConnected && u.SpotifyTokenSecretRef == "" {
		return ErrConnectedWithoutSecretRef
	}
	return nil
}
