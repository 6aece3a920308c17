package internal

import (
	"crypto/rand"
	"encoding/base64"
)

const (
	tokenRawSize       = 32
	clientTokenRawSize = 24
)

// NewToken returns an opaque, unguessable session token: 256 bits from
// crypto/rand, base64url without padding. The random space is large enough
// that collisions are not expected; the store still rejects inserts on
// collision and the caller retries with a fresh token.
func NewToken() (string, error) {
	var raw [tokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewClientToken returns the independently generated second-factor token
// transmitted to the client over a channel distinct from the session token.
func NewClientToken() (string, error) {
	var raw [clientTokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
