package authem

import "time"

// Role binds a name to a subject type with per-role options. Roles are
// registered through [Builder.WithRole] or [Registry.Register] and are
// immutable after registration. Role names are unique within a registry
// scope; multiple roles may share the same subject type.
type Role struct {
	// Name identifies the role, e.g. "user", "admin", "customer".
	Name string
	// SubjectType is the type tag of records this role authenticates.
	SubjectType string
	// TTL is the default session lifetime for this role. Zero falls back to
	// SessionConfig.DefaultTTL.
	TTL time.Duration
	// VerifyClientAuthToken is the per-role half of the client-token
	// opt-in; it only takes effect when Config.VerifyClientAuthToken is
	// also enabled.
	VerifyClientAuthToken bool
}

// StorageKey returns the key under which this role's token is held in both
// the server-side and client-side stores.
func (r Role) StorageKey() string {
	return "_authem_current_" + r.Name
}

// RoleOption customizes a role at registration time.
type RoleOption func(*Role)

// WithRoleTTL sets the role's default session lifetime.
func WithRoleTTL(ttl time.Duration) RoleOption {
	return func(r *Role) { r.TTL = ttl }
}

// WithClientTokenVerification opts the role into second-factor client-token
// checks. The check is only enforced when the global
// Config.VerifyClientAuthToken switch is also on.
func WithClientTokenVerification() RoleOption {
	return func(r *Role) { r.VerifyClientAuthToken = true }
}
