package httpstore

import (
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestSignerRejectsShortSecret(t *testing.T) {
	if _, err := newSigner([]byte("too short")); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	s, err := newSigner(testSecret)
	if err != nil {
		t.Fatalf("newSigner: %v", err)
	}

	sealed, err := s.seal("session-token", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	value, ok := s.open(sealed)
	if !ok || value != "session-token" {
		t.Fatalf("open: got (%q, %v)", value, ok)
	}

	// Two seals of the same value must not collide (unique jti).
	again, err := s.seal("session-token", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if again == sealed {
		t.Fatal("identical payloads produced identical tokens")
	}
}

func TestOpenRejectsTamperedAndForeign(t *testing.T) {
	s, err := newSigner(testSecret)
	if err != nil {
		t.Fatalf("newSigner: %v", err)
	}
	sealed, err := s.seal("value", time.Time{})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	// Flip part of the signature segment.
	parts := strings.Split(sealed, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, ok := s.open(tampered); ok {
		t.Fatal("tampered token verified")
	}

	other, err := newSigner([]byte("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("newSigner: %v", err)
	}
	if _, ok := other.open(sealed); ok {
		t.Fatal("token verified under a different secret")
	}

	if _, ok := s.open("not-a-jwt"); ok {
		t.Fatal("garbage verified")
	}
}

func TestOpenRejectsExpired(t *testing.T) {
	s, err := newSigner(testSecret)
	if err != nil {
		t.Fatalf("newSigner: %v", err)
	}

	sealed, err := s.seal("value", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, ok := s.open(sealed); ok {
		t.Fatal("expired token verified")
	}
}

func TestSealMapRoundTrip(t *testing.T) {
	s, err := newSigner(testSecret)
	if err != nil {
		t.Fatalf("newSigner: %v", err)
	}

	sealed, err := s.sealMap(map[string]string{
		"_authem_current_user": "tok-1",
		"_csrf_token":          "csrf-1",
	})
	if err != nil {
		t.Fatalf("sealMap: %v", err)
	}

	values, ok := s.openMap(sealed)
	if !ok {
		t.Fatal("openMap failed")
	}
	if values["_authem_current_user"] != "tok-1" || values["_csrf_token"] != "csrf-1" {
		t.Fatalf("unexpected values %v", values)
	}

	// A single-value token is not a valid session map.
	single, err := s.seal("value", time.Time{})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, ok := s.openMap(single); ok {
		t.Fatal("openMap accepted a non-map payload")
	}
}
