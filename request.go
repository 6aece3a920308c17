package authem

import (
	"context"
	"errors"
	"time"

	"github.com/authemhq/authem/session"
)

// ErrNoRedirector is returned by RedirectBackOrTo when the request was
// constructed without a [Redirector].
var ErrNoRedirector = errors.New("no redirector supplied for this request")

// SignInOptions customize one sign-in call.
type SignInOptions struct {
	// TTL overrides the role's session lifetime for this session only.
	TTL time.Duration
	// Remember persists the token into the client-side store so the
	// session survives server-side storage loss.
	Remember bool
	// Role disambiguates the subject-level entry points when the subject's
	// type matches more than one role. Ignored by the role-keyed methods.
	Role string
}

// Auth is the per-request authentication handle: one session context per
// configured role, each memoizing its resolution for the duration of the
// request. Operations are keyed by role name; the *Subject variants resolve
// the role from the subject's type first.
//
// Auth is bound to a single request and is not safe for concurrent use.
type Auth struct {
	manager *Manager
	server  ServerStore
	client  ClientStore
	info    RequestInfo
	roles   map[string]*roleSession
}

func (a *Auth) roleSession(role string) (*roleSession, error) {
	rs, ok := a.roles[role]
	if !ok {
		return nil, &UnknownRoleError{Role: role}
	}
	return rs, nil
}

// Current resolves the signed-in subject for role, or nil when absent.
// The first call queries storage; subsequent calls return the memoized
// result.
func (a *Auth) Current(ctx context.Context, role string) (Subject, error) {
	rs, err := a.roleSession(role)
	if err != nil {
		return nil, err
	}
	return rs.current(ctx)
}

// SignedIn reports whether a subject is signed in under role.
func (a *Auth) SignedIn(ctx context.Context, role string) (bool, error) {
	subject, err := a.Current(ctx, role)
	if err != nil {
		return false, err
	}
	return subject != nil, nil
}

// SignIn authenticates subject under the named role and returns the created
// session. The session token is persisted server-side; with opts.Remember it
// is additionally persisted client-side with matching expiry.
func (a *Auth) SignIn(ctx context.Context, role string, subject Subject, opts SignInOptions) (*session.Session, error) {
	rs, err := a.roleSession(role)
	if err != nil {
		return nil, err
	}
	return rs.signIn(ctx, subject, opts)
}

// SignInSubject authenticates subject under whichever role its type
// resolves to, using opts.Role as the hint when several roles match.
func (a *Auth) SignInSubject(ctx context.Context, subject Subject, opts SignInOptions) (*session.Session, error) {
	role, err := a.manager.registry.ResolveRole(subject, opts.Role)
	if err != nil {
		return nil, err
	}
	return a.SignIn(ctx, role.Name, subject, opts)
}

// SignOut ends the current session for role. Signing out while signed out
// is a no-op.
func (a *Auth) SignOut(ctx context.Context, role string) error {
	rs, err := a.roleSession(role)
	if err != nil {
		return err
	}
	return rs.signOut(ctx)
}

// SignOutSubject resolves the role for subject and signs it out. All
// resolution failure modes of [Registry.ResolveRole] apply.
func (a *Auth) SignOutSubject(ctx context.Context, subject Subject) error {
	role, err := a.manager.registry.ResolveRole(subject, "")
	if err != nil {
		return err
	}
	return a.SignOut(ctx, role.Name)
}

// ClearFor signs out the current request and invalidates every session for
// subject under role — every device, not just the current one.
func (a *Auth) ClearFor(ctx context.Context, role string, subject Subject) error {
	rs, err := a.roleSession(role)
	if err != nil {
		return err
	}
	return rs.clearFor(ctx, subject)
}

// ClearForSubject resolves the role for subject and clears all its
// sessions under that role.
func (a *Auth) ClearForSubject(ctx context.Context, subject Subject) error {
	if subject == nil {
		return ErrNilSubject
	}
	role, err := a.manager.registry.ResolveRole(subject, "")
	if err != nil {
		return err
	}
	return a.ClearFor(ctx, role.Name, subject)
}

// RequireAuth enforces a signed-in subject for role, invoking the role's
// deny handler when absent.
func (a *Auth) RequireAuth(ctx context.Context, role string) error {
	rs, err := a.roleSession(role)
	if err != nil {
		return err
	}
	return rs.requireAuth(ctx)
}

// RedirectTo performs a plain redirect to target. Unlike RedirectBackOrTo
// it never consumes the stored return-to target, so deny handlers can send
// the visitor to a sign-in page while the captured URL stays put for after
// authentication.
func (a *Auth) RedirectTo(target string) error {
	if a.info.Redirector == nil {
		return ErrNoRedirector
	}
	a.info.Redirector.Redirect(target)
	return nil
}

// RedirectBackOrTo redirects to the stored return-to target when one was
// captured by RequireAuth, consuming it, and to fallback otherwise.
func (a *Auth) RedirectBackOrTo(fallback string) error {
	if a.info.Redirector == nil {
		return ErrNoRedirector
	}

	target := fallback
	if stored, ok := a.server.Get(returnToKey); ok && stored != "" {
		target = stored
	}
	a.server.Delete(returnToKey)

	a.info.Redirector.Redirect(target)
	return nil
}
