// Package session persists authentication sessions in Redis: opaque-token
// records with lazy expiry, atomic renew-on-use, and bulk invalidation by
// subject. It is consumed by the root authem package and has no knowledge of
// roles beyond their names.
package session

import "time"

// Session is the persisted record of an active authentication: the role it
// belongs to, a polymorphic subject reference, the opaque token(s), and the
// expiry bookkeeping.
//
// A session is created on sign-in, renewed on every successful lookup
// (expiry recomputed as now + TTL), and deleted on sign-out or bulk
// invalidation. Expired rows are treated as absent by every lookup; physical
// purging rides on the Redis key TTL.
type Session struct {
	Role        string
	SubjectType string
	SubjectID   string

	// Token uniquely identifies the session server-side and to the client.
	Token string
	// ClientToken is generated independently of Token and only compared
	// when the owning role requires client-token verification. Empty when
	// the role does not use it.
	ClientToken string

	// TTL is the duration, in seconds, added to "now" on each renewal.
	TTL int64

	CreatedAt int64
	UpdatedAt int64
	ExpiresAt int64
}

// Expires returns the absolute expiry as a time.Time.
func (s *Session) Expires() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}
