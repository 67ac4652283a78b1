// Package secret provides the SecretBundle value object held per user in
// the secret store — never in the primary key-value store.
package secret

import "time"

// Bundle is a user's streaming OAuth credentials.
type Bundle struct {
	AccessToken    string
	RefreshToken   string
	ExpiresAt      time.Time
	Scope          string
	LastRefreshed  time.Time
}

// ExpiresWithin reports whether ExpiresAt is at most buffer away from now
// — the Token Refresher's per-user skip check (spec §4.5 step 2).
func (b *Bundle) ExpiresWithin(now time.Time, buffer time.Duration) bool {
	return b.ExpiresAt.Sub(now) <= buffer
}
