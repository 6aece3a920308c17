package authem

import "time"

// ServerStore is the host's request-scoped key→value string store, assumed
// tamper-evident against the client (server-held or signed). One instance
// serves one request/response round trip.
type ServerStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// ClientCookie is the payload written to the client-side persistent store
// when a sign-in asks to be remembered. Implementations must deliver it
// domain-wide, unreadable by client-side scripts, and signed so the raw
// token cannot be forged.
type ClientCookie struct {
	Value    string
	Expires  time.Time
	Domain   string
	HTTPOnly bool
}

// ClientStore is the host's long-lived client-side store (cookies).
// Get must only return values whose signature verified.
type ClientStore interface {
	Get(key string) (string, bool)
	Set(key string, cookie ClientCookie)
	Delete(key string)
}

// Redirector is the single abstract "perform redirect" operation the host
// exposes; authem never renders output itself.
type Redirector interface {
	Redirect(target string)
}

// RequestInfo carries the read-only facts about the inbound request that
// the authentication flow consults.
type RequestInfo struct {
	// URL is recorded as the return-to target by RequireAuth.
	URL string
	// XHR marks non-interactive requests; RequireAuth skips return-to
	// capture for them.
	XHR bool
	// ClientAuthToken is the inbound second-factor header value. Only
	// consulted when both halves of the client-token opt-in are enabled.
	ClientAuthToken string
	// Redirector performs redirects for RedirectBackOrTo. May be nil when
	// the host never redirects (API-only integrations).
	Redirector Redirector
}

const (
	// csrfTokenKey is the well-known anti-forgery key cleared from the
	// server store on sign-in, preventing token fixation across privilege
	// escalation.
	csrfTokenKey = "_csrf_token"
	// returnToKey holds the URL captured by RequireAuth until
	// RedirectBackOrTo consumes it.
	returnToKey = "_authem_return_to"
)
