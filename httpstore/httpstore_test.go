package httpstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/authemhq/authem"
)

type webUser struct {
	id string
}

func (u webUser) SubjectType() string { return "User" }
func (u webUser) SubjectID() string   { return u.id }

type webProvider struct{}

func (webProvider) Load(_ context.Context, ref authem.Ref) (authem.Subject, error) {
	if ref.Type != "User" {
		return nil, nil
	}
	return webUser{id: ref.ID}, nil
}

func TestServerSessionRoundTrip(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := NewServerSession(req, testSecret, "")
	if err != nil {
		t.Fatalf("NewServerSession: %v", err)
	}

	if _, ok := sess.Get("missing"); ok {
		t.Fatal("empty session returned a value")
	}

	rec := httptest.NewRecorder()
	if err := sess.Save(rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("untouched session wrote a cookie")
	}

	sess.Set("_authem_current_user", "tok-1")
	rec = httptest.NewRecorder()
	if err := sess.Save(rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != DefaultSessionCookie {
		t.Fatalf("expected one %s cookie, got %v", DefaultSessionCookie, cookies)
	}

	// Next request carries the cookie back.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	loaded, err := NewServerSession(req, testSecret, "")
	if err != nil {
		t.Fatalf("NewServerSession: %v", err)
	}
	if v, ok := loaded.Get("_authem_current_user"); !ok || v != "tok-1" {
		t.Fatalf("expected tok-1, got (%q, %v)", v, ok)
	}

	loaded.Clear()
	if _, ok := loaded.Get("_authem_current_user"); ok {
		t.Fatal("value survived Clear")
	}
}

func TestServerSessionIgnoresForgedCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: "forged.payload.signature"})

	sess, err := NewServerSession(req, testSecret, "")
	if err != nil {
		t.Fatalf("NewServerSession: %v", err)
	}
	if _, ok := sess.Get("_authem_current_user"); ok {
		t.Fatal("forged cookie produced a session value")
	}
}

func TestClientCookiesSignedChannel(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	cookies, err := NewClientCookies(rec, req, testSecret)
	if err != nil {
		t.Fatalf("NewClientCookies: %v", err)
	}

	cookies.Set("_authem_current_user", authem.ClientCookie{
		Value:    "tok-1",
		Expires:  time.Now().Add(time.Hour),
		HTTPOnly: true,
	})

	// Same-request read sees the pending write.
	if v, ok := cookies.Get("_authem_current_user"); !ok || v != "tok-1" {
		t.Fatalf("overlay read failed: (%q, %v)", v, ok)
	}

	written := rec.Result().Cookies()
	if len(written) != 1 {
		t.Fatalf("expected one Set-Cookie, got %d", len(written))
	}
	if written[0].Value == "tok-1" {
		t.Fatal("cookie value written unsigned")
	}

	// Next request: the signed value verifies, a raw one does not.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(written[0])
	cookies, err = NewClientCookies(httptest.NewRecorder(), req, testSecret)
	if err != nil {
		t.Fatalf("NewClientCookies: %v", err)
	}
	if v, ok := cookies.Get("_authem_current_user"); !ok || v != "tok-1" {
		t.Fatalf("signed read failed: (%q, %v)", v, ok)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "_authem_current_user", Value: "tok-1"})
	cookies, err = NewClientCookies(httptest.NewRecorder(), req, testSecret)
	if err != nil {
		t.Fatalf("NewClientCookies: %v", err)
	}
	if _, ok := cookies.Get("_authem_current_user"); ok {
		t.Fatal("unsigned cookie value verified")
	}
}

func TestClientCookiesDelete(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	cookies, err := NewClientCookies(rec, req, testSecret)
	if err != nil {
		t.Fatalf("NewClientCookies: %v", err)
	}

	cookies.Set("key", authem.ClientCookie{Value: "v"})
	cookies.Delete("key")
	if _, ok := cookies.Get("key"); ok {
		t.Fatal("deleted key still readable")
	}

	written := rec.Result().Cookies()
	last := written[len(written)-1]
	if last.Name != "key" || last.MaxAge >= 0 {
		t.Fatalf("expected expiring cookie, got %+v", last)
	}
}

// cookieJar plays the browser between handler invocations.
type cookieJar map[string]*http.Cookie

func (j cookieJar) update(res *http.Response) {
	for _, c := range res.Cookies() {
		if c.MaxAge < 0 {
			delete(j, c.Name)
			continue
		}
		j[c.Name] = c
	}
}

func (j cookieJar) apply(r *http.Request) {
	for _, c := range j {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
}

func newWebManager(t *testing.T) (*authem.Manager, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	m, err := authem.New().
		WithRedis(rdb).
		WithRole("user", "User").
		WithSubjectProvider(webProvider{}).
		Build()
	if err != nil {
		rdb.Close()
		mr.Close()
		t.Fatalf("build manager: %v", err)
	}

	return m, func() {
		m.Close()
		rdb.Close()
		mr.Close()
	}
}

func newWebApp(m *authem.Manager) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		a, _ := FromContext(r.Context())
		if _, err := a.SignIn(r.Context(), "user", webUser{id: "1"}, authem.SignInOptions{Remember: true}); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		fmt.Fprint(w, "signed in")
	})

	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		a, _ := FromContext(r.Context())
		subject, err := a.Current(r.Context(), "user")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if subject == nil {
			fmt.Fprint(w, "anonymous")
			return
		}
		fmt.Fprintf(w, "%s#%s", subject.SubjectType(), subject.SubjectID())
	})

	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		a, _ := FromContext(r.Context())
		if err := a.SignOut(r.Context(), "user"); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "signed out")
	})

	return Middleware(m, Options{Secret: testSecret})(mux)
}

func TestMiddlewareSignInFlow(t *testing.T) {
	m, cleanup := newWebManager(t)
	defer cleanup()

	app := newWebApp(m)
	jar := cookieJar{}

	do := func(method, path string) *http.Response {
		req := httptest.NewRequest(method, path, nil)
		jar.apply(req)
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, req)
		res := rec.Result()
		jar.update(res)
		return res
	}

	body := func(res *http.Response) string {
		buf := make([]byte, 256)
		n, _ := res.Body.Read(buf)
		return string(buf[:n])
	}

	if got := body(do(http.MethodGet, "/me")); got != "anonymous" {
		t.Fatalf("expected anonymous before sign-in, got %q", got)
	}

	res := do(http.MethodPost, "/login")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", res.StatusCode)
	}
	if jar[DefaultSessionCookie] == nil {
		t.Fatal("login did not set the session cookie")
	}
	if jar["_authem_current_user"] == nil {
		t.Fatal("remembered login did not set the persistent cookie")
	}

	if got := body(do(http.MethodGet, "/me")); got != "User#1" {
		t.Fatalf("expected User#1, got %q", got)
	}
}

func TestMiddlewareRememberSurvivesSessionLoss(t *testing.T) {
	m, cleanup := newWebManager(t)
	defer cleanup()

	app := newWebApp(m)
	jar := cookieJar{}

	do := func(method, path string) *http.Response {
		req := httptest.NewRequest(method, path, nil)
		jar.apply(req)
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, req)
		res := rec.Result()
		jar.update(res)
		return res
	}

	body := func(res *http.Response) string {
		buf := make([]byte, 256)
		n, _ := res.Body.Read(buf)
		return string(buf[:n])
	}

	do(http.MethodPost, "/login")

	// The browser lost its session cookie but kept the persistent one.
	delete(jar, DefaultSessionCookie)

	if got := body(do(http.MethodGet, "/me")); got != "User#1" {
		t.Fatalf("expected cookie fallback to restore the session, got %q", got)
	}
	if jar[DefaultSessionCookie] == nil {
		t.Fatal("fallback did not repopulate the session cookie")
	}

	// Sign out clears both channels.
	do(http.MethodPost, "/logout")
	if got := body(do(http.MethodGet, "/me")); got != "anonymous" {
		t.Fatalf("expected anonymous after sign-out, got %q", got)
	}
	if jar["_authem_current_user"] != nil {
		t.Fatal("persistent cookie survived sign-out")
	}
}
