// Package httpstore adapts authem's host-boundary interfaces to net/http:
// a signed-cookie server session, signed remember cookies, request-info
// extraction, and a middleware that binds one [authem.Auth] handle per
// request.
//
// Both cookie channels are tamper-evident: values are HS256-signed compact
// JWTs, so the raw session token never reaches the client unsigned and a
// forged or modified cookie fails verification and reads as absent.
package httpstore
