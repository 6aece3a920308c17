package authem

import "context"

// Subject is the principal being authenticated: a user account, an admin
// account, or any other identifiable record. The association between a
// subject and its roles is by SubjectType identity, not by open-ended
// pattern matching.
type Subject interface {
	// SubjectType is the stable type tag recorded in sessions, e.g. "User".
	SubjectType() string
	// SubjectID is the stable identifier recorded in sessions.
	SubjectID() string
}

// Ref is a polymorphic reference to a subject record: type tag plus id.
type Ref struct {
	Type string
	ID   string
}

// RefOf returns the [Ref] for a subject.
func RefOf(s Subject) Ref {
	return Ref{Type: s.SubjectType(), ID: s.SubjectID()}
}

// SubjectProvider loads subject records referenced by stored sessions.
// Implementations return (nil, nil) when the record no longer exists; the
// session then resolves to absent rather than an error.
//
// The generic CRUD persistence of subject records is a caller concern;
// authem only ever reads them through this boundary.
type SubjectProvider interface {
	Load(ctx context.Context, ref Ref) (Subject, error)
}
