package httpstore

import (
	"net/http"
)

// DefaultSessionCookie is the cookie name backing [ServerSession].
const DefaultSessionCookie = "_authem_session"

// ServerSession implements [authem.ServerStore] as a signed session cookie:
// the request's cookie is verified and decoded into an in-memory map, reads
// and writes hit the map, and Save flushes the map back to the response as
// one signed cookie. A cookie with a bad signature loads as empty.
//
// The signature makes the channel tamper-evident against the client, which
// is the contract authem's server-side storage requires.
type ServerSession struct {
	name   string
	signer *signer
	values map[string]string
	dirty  bool
}

// NewServerSession loads the server session from the request, or an empty
// one when the cookie is missing or fails verification.
func NewServerSession(r *http.Request, secret []byte, name string) (*ServerSession, error) {
	s, err := newSigner(secret)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = DefaultSessionCookie
	}

	sess := &ServerSession{
		name:   name,
		signer: s,
		values: make(map[string]string),
	}

	if cookie, err := r.Cookie(name); err == nil {
		if values, ok := s.openMap(cookie.Value); ok {
			sess.values = values
		}
	}

	return sess, nil
}

func (s *ServerSession) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *ServerSession) Set(key, value string) {
	s.values[key] = value
	s.dirty = true
}

func (s *ServerSession) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Clear empties the session, the reset-session analog for sign-out flows
// that want a fresh anonymous session.
func (s *ServerSession) Clear() {
	if len(s.values) == 0 {
		return
	}
	s.values = make(map[string]string)
	s.dirty = true
}

// Save writes the session back to the response when it changed. Must be
// called before the response body is written; the middleware handles this.
func (s *ServerSession) Save(w http.ResponseWriter) error {
	if !s.dirty {
		return nil
	}

	sealed, err := s.signer.sealMap(s.values)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    sealed,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
