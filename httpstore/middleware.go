package httpstore

import (
	"context"
	"net/http"

	"github.com/authemhq/authem"
)

type authContextKey struct{}

// FromContext returns the [authem.Auth] handle bound by [Middleware].
func FromContext(ctx context.Context) (*authem.Auth, bool) {
	a, ok := ctx.Value(authContextKey{}).(*authem.Auth)
	return a, ok
}

// Options configure [Middleware].
type Options struct {
	// Secret signs both cookie channels. Required, at least 32 bytes.
	Secret []byte
	// SessionCookie overrides the server session cookie name.
	SessionCookie string
	// ClientTokenHeader overrides the header read for the second-factor
	// client token. Defaults to authem's configured header name.
	ClientTokenHeader string
}

// Middleware binds one [authem.Auth] per request: it loads the signed
// server session and client cookies, extracts request info, and makes the
// handle available via [FromContext]. The server session is flushed to the
// response before the first body byte.
func Middleware(m *authem.Manager, opts Options) func(http.Handler) http.Handler {
	header := opts.ClientTokenHeader
	if header == "" {
		header = "client-auth-token"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := NewServerSession(r, opts.Secret, opts.SessionCookie)
			if err != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			cookies, err := NewClientCookies(w, r, opts.Secret)
			if err != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			fw := &flushWriter{ResponseWriter: w, session: sess}

			info := authem.RequestInfo{
				URL:             r.URL.String(),
				XHR:             r.Header.Get("X-Requested-With") == "XMLHttpRequest",
				ClientAuthToken: r.Header.Get(header),
				Redirector:      &redirector{w: fw, r: r},
			}

			a := m.Request(sess, cookies, info)
			ctx := context.WithValue(r.Context(), authContextKey{}, a)

			next.ServeHTTP(fw, r.WithContext(ctx))
			fw.flush()
		})
	}
}

// flushWriter writes the pending server session cookie before headers go
// out, so handlers never have to call Save themselves.
type flushWriter struct {
	http.ResponseWriter
	session *ServerSession
	flushed bool
}

func (f *flushWriter) flush() {
	if f.flushed {
		return
	}
	f.flushed = true
	_ = f.session.Save(f.ResponseWriter)
}

func (f *flushWriter) WriteHeader(status int) {
	f.flush()
	f.ResponseWriter.WriteHeader(status)
}

func (f *flushWriter) Write(p []byte) (int, error) {
	f.flush()
	return f.ResponseWriter.Write(p)
}

type redirector struct {
	w http.ResponseWriter
	r *http.Request
}

func (rd *redirector) Redirect(target string) {
	http.Redirect(rd.w, rd.r, target, http.StatusFound)
}
