package httpstore

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// signer seals and opens cookie values as HS256 compact JWTs. Each sealed
// value carries a unique jti so identical payloads never produce identical
// cookies.
type signer struct {
	secret []byte
}

func newSigner(secret []byte) (*signer, error) {
	if len(secret) < 32 {
		return nil, errors.New("cookie signing secret must be at least 32 bytes")
	}
	return &signer{secret: secret}, nil
}

func (s *signer) seal(value string, expires time.Time) (string, error) {
	claims := jwt.MapClaims{
		"v":   value,
		"jti": uuid.NewString(),
	}
	if !expires.IsZero() {
		claims["exp"] = jwt.NewNumericDate(expires)
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// open verifies the signature (and expiry, when present) and returns the
// embedded value. Any failure reads as absent.
func (s *signer) open(token string) (string, bool) {
	parsed, err := jwt.Parse(
		token,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return "", false
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	value, ok := claims["v"].(string)
	if !ok {
		return "", false
	}
	return value, true
}

func (s *signer) sealMap(values map[string]string) (string, error) {
	claims := jwt.MapClaims{
		"jti": uuid.NewString(),
	}
	payload := make(map[string]interface{}, len(values))
	for k, v := range values {
		payload[k] = v
	}
	claims["s"] = payload

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *signer) openMap(token string) (map[string]string, bool) {
	parsed, err := jwt.Parse(
		token,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return nil, false
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	payload, ok := claims["s"].(map[string]interface{})
	if !ok {
		return nil, false
	}

	values := make(map[string]string, len(payload))
	for k, v := range payload {
		str, ok := v.(string)
		if !ok {
			return nil, false
		}
		values[k] = str
	}
	return values, true
}
