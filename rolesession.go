package authem

import (
	"context"
	"errors"
	"time"

	"github.com/authemhq/authem/session"
)

// roleSession is the per-role runtime handle used once per request: a
// memoized state machine UNRESOLVED → RESOLVED(subject) | RESOLVED(absent).
// The transition happens at most once per request; re-entrant calls return
// the cached result without re-querying storage. SignIn always supersedes
// prior memoized state within the same request.
type roleSession struct {
	auth *Auth
	role Role

	resolved bool
	subject  Subject
}

func (rs *roleSession) memoize(subject Subject) {
	rs.resolved = true
	rs.subject = subject
}

// verifyClientToken is the two-level opt-in: global switch AND role option.
func (rs *roleSession) verifyClientToken() bool {
	return rs.auth.manager.config.VerifyClientAuthToken && rs.role.VerifyClientAuthToken
}

func (rs *roleSession) ttl(opts SignInOptions) time.Duration {
	if opts.TTL > 0 {
		return opts.TTL
	}
	if rs.role.TTL > 0 {
		return rs.role.TTL
	}
	return rs.auth.manager.config.Session.DefaultTTL
}

// current resolves the signed-in subject for this role, memoizing the
// outcome. Resolution order: server-side token first, then the client-side
// persistent token; a hit via either channel renews the session, and a hit
// while a remember cookie is present re-writes the cookie with the renewed
// expiry (sliding expiration).
func (rs *roleSession) current(ctx context.Context) (Subject, error) {
	if rs.resolved {
		return rs.subject, nil
	}

	m := rs.auth.manager
	verify := rs.verifyClientToken()
	if verify && rs.auth.info.ClientAuthToken == "" {
		// The role demands the second factor and the request did not carry
		// it; skip the lookup entirely so no renewal occurs.
		rs.memoize(nil)
		m.metricInc(MetricSessionMiss)
		return nil, nil
	}

	key := rs.role.StorageKey()
	serverToken, _ := rs.auth.server.Get(key)
	cookieToken, cookiePresent := rs.auth.client.Get(key)

	sess, err := rs.lookup(ctx, serverToken, verify)
	if err != nil {
		return nil, err
	}
	if sess == nil && cookiePresent && cookieToken != serverToken {
		sess, err = rs.lookup(ctx, cookieToken, verify)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			// Repopulate the server-side channel for the rest of the
			// request and any follow-up requests in this session.
			rs.auth.server.Set(key, sess.Token)
		}
	}

	if sess == nil {
		rs.memoize(nil)
		m.metricInc(MetricSessionMiss)
		return nil, nil
	}

	subject, err := m.provider.Load(ctx, Ref{Type: sess.SubjectType, ID: sess.SubjectID})
	if err != nil {
		return nil, err
	}
	if subject == nil {
		// The record behind the session is gone; treat as absent.
		rs.memoize(nil)
		m.metricInc(MetricSessionMiss)
		return nil, nil
	}

	if cookiePresent {
		rs.saveCookie(sess)
	}

	rs.memoize(subject)
	m.metricInc(MetricSessionRenewed)
	return subject, nil
}

func (rs *roleSession) lookup(ctx context.Context, token string, verify bool) (*session.Session, error) {
	if token == "" {
		return nil, nil
	}
	return rs.auth.manager.store.FindActive(
		ctx, rs.role.Name, token, rs.auth.info.ClientAuthToken, verify,
	)
}

// signIn creates a session for subject under this role. The new subject is
// memoized before any storage round-trip so it is observable for the
// remainder of the request even if a later write fails.
func (rs *roleSession) signIn(ctx context.Context, subject Subject, opts SignInOptions) (*session.Session, error) {
	m := rs.auth.manager

	if subject == nil {
		m.metricInc(MetricSignInFailure)
		return nil, ErrNilSubject
	}

	// Invalidate any anti-forgery token tied to the prior anonymous
	// session; prevents fixation across privilege escalation.
	rs.auth.server.Delete(csrfTokenKey)

	rs.memoize(subject)

	sess, err := rs.createSession(ctx, subject, opts)
	if err != nil {
		m.metricInc(MetricSignInFailure)
		m.emitAudit(ctx, AuditEvent{
			Timestamp:   time.Now(),
			EventType:   AuditSignIn,
			Role:        rs.role.Name,
			SubjectType: subject.SubjectType(),
			SubjectID:   subject.SubjectID(),
			Success:     false,
			Error:       err.Error(),
		})
		return nil, err
	}

	rs.auth.server.Set(rs.role.StorageKey(), sess.Token)
	if opts.Remember {
		rs.saveCookie(sess)
	}

	m.metricInc(MetricSignInSuccess)
	m.emitAudit(ctx, AuditEvent{
		Timestamp:   time.Now(),
		EventType:   AuditSignIn,
		Role:        rs.role.Name,
		SubjectType: subject.SubjectType(),
		SubjectID:   subject.SubjectID(),
		Success:     true,
	})

	return sess, nil
}

// createSession retries exactly once on a token collision before surfacing
// ErrTokenCollision.
func (rs *roleSession) createSession(ctx context.Context, subject Subject, opts SignInOptions) (*session.Session, error) {
	m := rs.auth.manager
	ttl := rs.ttl(opts)

	for attempt := 0; ; attempt++ {
		sess, err := m.store.Create(
			ctx, rs.role.Name, subject.SubjectType(), subject.SubjectID(),
			ttl, rs.role.VerifyClientAuthToken,
		)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, session.ErrTokenExists) {
			return nil, err
		}
		m.metricInc(MetricTokenCollision)
		if attempt > 0 {
			return nil, ErrTokenCollision
		}
	}
}

func (rs *roleSession) saveCookie(sess *session.Session) {
	rs.auth.client.Set(rs.role.StorageKey(), ClientCookie{
		Value:    sess.Token,
		Expires:  sess.Expires(),
		Domain:   rs.auth.manager.config.Cookie.Domain,
		HTTPOnly: true,
	})
}

// signOut memoizes absent, deletes the active session matching the current
// token(s), and clears both storage channels. Idempotent.
func (rs *roleSession) signOut(ctx context.Context) error {
	m := rs.auth.manager
	key := rs.role.StorageKey()

	token, _ := rs.auth.server.Get(key)
	if token == "" {
		token, _ = rs.auth.client.Get(key)
	}

	rs.memoize(nil)

	if err := m.store.DeleteByToken(
		ctx, rs.role.Name, token, rs.auth.info.ClientAuthToken, rs.verifyClientToken(),
	); err != nil {
		return err
	}

	rs.auth.server.Delete(key)
	rs.auth.client.Delete(key)

	m.metricInc(MetricSignOut)
	m.emitAudit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: AuditSignOut,
		Role:      rs.role.Name,
		Success:   true,
	})

	return nil
}

// clearFor signs out the current request AND invalidates every session for
// subject under this role, across all devices.
func (rs *roleSession) clearFor(ctx context.Context, subject Subject) error {
	m := rs.auth.manager

	if subject == nil {
		return ErrNilSubject
	}

	if err := rs.signOut(ctx); err != nil {
		return err
	}

	if err := m.store.DeleteAllForSubject(
		ctx, subject.SubjectType(), subject.SubjectID(), rs.role.Name,
	); err != nil {
		return err
	}

	m.metricInc(MetricClearAll)
	m.emitAudit(ctx, AuditEvent{
		Timestamp:   time.Now(),
		EventType:   AuditClearAll,
		Role:        rs.role.Name,
		SubjectType: subject.SubjectType(),
		SubjectID:   subject.SubjectID(),
		Success:     true,
	})

	return nil
}

// requireAuth enforces a signed-in subject for this role. When absent it
// records the request URL as the return-to target (skipped for XHR) and
// invokes the role's deny handler; a missing handler is a configuration
// error surfaced as [MissingDenyHandlerError].
func (rs *roleSession) requireAuth(ctx context.Context) error {
	subject, err := rs.current(ctx)
	if err != nil {
		return err
	}
	if subject != nil {
		return nil
	}

	m := rs.auth.manager

	if !rs.auth.info.XHR && rs.auth.info.URL != "" {
		rs.auth.server.Set(returnToKey, rs.auth.info.URL)
	}

	m.metricInc(MetricAccessDenied)
	m.emitAudit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: AuditAccessDenied,
		Role:      rs.role.Name,
		Success:   false,
	})

	handler, ok := m.deny[rs.role.Name]
	if !ok {
		return &MissingDenyHandlerError{Role: rs.role.Name}
	}
	return handler(ctx, rs.auth, rs.role.Name)
}
