package authem

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBuildRequiresRedisAndProvider(t *testing.T) {
	if _, err := New().WithRole("user", "User").Build(); err == nil {
		t.Fatal("expected error without redis client")
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	if _, err := New().WithRedis(rdb).WithRole("user", "User").Build(); err == nil {
		t.Fatal("expected error without subject provider")
	}
	if _, err := New().WithRedis(rdb).WithSubjectProvider(newStubProvider()).Build(); err == nil {
		t.Fatal("expected error without roles")
	}
}

func TestBuildSurfacesRoleErrors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	var dup *DuplicateRoleError
	_, err = New().
		WithRedis(rdb).
		WithRole("user", "User").
		WithRole("user", "Admin").
		WithSubjectProvider(newStubProvider()).
		Build()
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateRoleError, got %v", err)
	}

	var unknown *UnknownRoleError
	_, err = New().
		WithRedis(rdb).
		WithRole("user", "User").
		WithSubjectProvider(newStubProvider()).
		WithDenyHandler("ghost", func(_ context.Context, _ *Auth, _ string) error { return nil }).
		Build()
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownRoleError for deny handler role, got %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	b := New().WithRedis(rdb).WithRole("user", "User").WithSubjectProvider(newStubProvider())
	m, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer m.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty prefix", func(c *Config) { c.Session.RedisPrefix = "" }},
		{"zero ttl", func(c *Config) { c.Session.DefaultTTL = 0 }},
		{"empty header", func(c *Config) { c.Cookie.ClientTokenHeader = "" }},
		{"bad audit buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}
