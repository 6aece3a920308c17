package authem

// ResolveRole determines which configured role a subject record belongs to.
//
// With an explicit hint the hinted role is returned (failing
// [UnknownRoleError] if unregistered — the hint is authoritative, the
// subject type is not re-checked). Without a hint the visible roles whose
// subject type matches are the candidates:
//
//   - zero candidates fail with [UnknownRoleError] naming the subject,
//   - exactly one candidate is returned,
//   - two or more fail with [AmbiguousRoleError] enumerating the candidate
//     names in registration order.
//
// The nil-subject check precedes resolution: a nil subject fails with
// [ErrNilSubject] before any role lookup. The same algorithm serves both
// the sign-in and sign-out entry points that take a bare subject.
func (g *Registry) ResolveRole(subject Subject, hint string) (Role, error) {
	if subject == nil {
		return Role{}, ErrNilSubject
	}
	if hint != "" {
		return g.Resolve(hint)
	}

	candidates := g.RolesForSubjectType(subject.SubjectType())
	switch len(candidates) {
	case 0:
		return Role{}, &UnknownRoleError{Subject: subject}
	case 1:
		return candidates[0], nil
	default:
		names := make([]string, len(candidates))
		for i, role := range candidates {
			names[i] = role.Name
		}
		return Role{}, &AmbiguousRoleError{Subject: subject, Candidates: names}
	}
}
