package authem

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNilSubject is returned when a nil subject is passed to SignIn,
	// SignOut, or ClearFor. It fails fast; no storage mutation occurs.
	ErrNilSubject = errors.New("subject is nil")
	// ErrTokenCollision is returned when session creation hits an already
	// used token. The Manager retries once with a fresh token before
	// surfacing this error.
	ErrTokenCollision = errors.New("session token collision")
	// ErrManagerClosed is returned by operations on a closed Manager.
	ErrManagerClosed = errors.New("manager closed")
)

// UnknownRoleError reports a role name that is not registered, or a subject
// whose type matches no registered role.
type UnknownRoleError struct {
	Role    string
	Subject Subject
}

func (e *UnknownRoleError) Error() string {
	if e.Subject != nil {
		return fmt.Sprintf("unknown role for subject %s#%s", e.Subject.SubjectType(), e.Subject.SubjectID())
	}
	return fmt.Sprintf("unknown role %q", e.Role)
}

// AmbiguousRoleError reports a subject whose type matches two or more
// registered roles and no explicit role hint was supplied. Candidates are
// listed in registration order.
type AmbiguousRoleError struct {
	Subject    Subject
	Candidates []string
}

func (e *AmbiguousRoleError) Error() string {
	return fmt.Sprintf(
		"ambiguous role for subject %s#%s: candidates are %s",
		e.Subject.SubjectType(), e.Subject.SubjectID(),
		strings.Join(e.Candidates, ", "),
	)
}

// DuplicateRoleError reports a role name registered twice within one scope.
type DuplicateRoleError struct {
	Role string
}

func (e *DuplicateRoleError) Error() string {
	return fmt.Sprintf("role %q already registered", e.Role)
}

// MissingDenyHandlerError reports a RequireAuth call for a role whose deny
// handler was never supplied. This is a configuration error on the
// integrating application's side and is surfaced loudly, never swallowed.
type MissingDenyHandlerError struct {
	Role string
}

func (e *MissingDenyHandlerError) Error() string {
	return fmt.Sprintf(
		"no deny handler for role %q: supply one via Builder.WithDenyHandler before calling RequireAuth",
		e.Role,
	)
}
