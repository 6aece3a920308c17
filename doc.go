// Package authem provides multi-role, token-based session authentication for
// server applications: any identifiable subject record can be authenticated
// under one of several independently configured roles (for example "user",
// "admin", "customer"), each role carrying its own session lifetime, storage
// key, and optional second-factor client-token check.
//
// The package owns the session/token lifecycle: creating, locating, renewing,
// and invalidating authentication sessions across two cooperating storage
// channels — a short-lived server-side store and a long-lived client-side
// store — plus the resolution logic that disambiguates which role a subject
// belongs to when several roles share the same subject type.
//
// # Architecture boundaries
//
// authem is the public surface. It exposes [Manager], [Builder], [Config],
// [Auth] (the per-request handle), and the host-boundary interfaces
// ([ServerStore], [ClientStore], [SubjectProvider], [Redirector]). The
// persisted session machinery lives in the session subpackage; request and
// response plumbing for net/http lives in httpstore.
//
// # What this package must NOT do
//
//   - Render output or perform redirects itself; it only invokes the
//     host-supplied [Redirector].
//   - Store or verify passwords. Credential checking happens before SignIn.
//   - Expose Redis clients or the session wire encoding in its public API.
//
// # Concurrency contract
//
// A [Manager] is immutable after [Builder.Build] and safe to call from
// multiple goroutines. An [Auth] handle is bound to one inbound request and
// must not be shared across requests; the Redis-backed session store is the
// only shared mutable resource, and its read-then-renew step is atomic per
// session row.
package authem
