package authem

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testSubject struct {
	typ string
	id  string
}

func (s testSubject) SubjectType() string { return s.typ }
func (s testSubject) SubjectID() string   { return s.id }

// memServer is an in-memory request-scoped store, the test double for the
// host's server-side session.
type memServer struct {
	values map[string]string
}

func newMemServer() *memServer {
	return &memServer{values: map[string]string{}}
}

func (s *memServer) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *memServer) Set(key, value string) { s.values[key] = value }
func (s *memServer) Delete(key string)     { delete(s.values, key) }

// memClient is an in-memory cookie jar; signing is the HTTP adapter's
// concern, so the double stores raw values plus the metadata authem set.
type memClient struct {
	cookies map[string]ClientCookie
}

func newMemClient() *memClient {
	return &memClient{cookies: map[string]ClientCookie{}}
}

func (c *memClient) Get(key string) (string, bool) {
	cookie, ok := c.cookies[key]
	if !ok {
		return "", false
	}
	return cookie.Value, true
}

func (c *memClient) Set(key string, cookie ClientCookie) { c.cookies[key] = cookie }
func (c *memClient) Delete(key string)                   { delete(c.cookies, key) }

type stubProvider struct {
	subjects map[Ref]Subject
}

func newStubProvider(subjects ...Subject) *stubProvider {
	p := &stubProvider{subjects: map[Ref]Subject{}}
	for _, s := range subjects {
		p.subjects[RefOf(s)] = s
	}
	return p
}

func (p *stubProvider) Load(_ context.Context, ref Ref) (Subject, error) {
	return p.subjects[ref], nil
}

type testRedirector struct {
	target string
	called bool
}

func (r *testRedirector) Redirect(target string) {
	r.called = true
	r.target = target
}

// newTestManager builds a Manager over miniredis. configure customizes the
// Builder (roles, handlers, config) before Build.
func newTestManager(t *testing.T, configure func(*Builder)) (*Manager, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	b := New().WithRedis(rdb)
	configure(b)

	m, err := b.Build()
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

// device bundles the two storage channels of one client, so tests can run
// several requests from the same "browser".
type device struct {
	server *memServer
	client *memClient
}

func newDevice() *device {
	return &device{server: newMemServer(), client: newMemClient()}
}

func (d *device) request(m *Manager, info RequestInfo) *Auth {
	return m.Request(d.server, d.client, info)
}
