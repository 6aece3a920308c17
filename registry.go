package authem

// Registry holds the configured roles for a consuming application.
//
// A Registry forms a scope: [Registry.Derive] creates a child scope that
// sees every ancestor role but whose own registrations are invisible to the
// ancestor. This mirrors configuration inheritance in layered applications
// (a base scope registers "user", a derived admin scope adds "admin").
//
// Registries are populated during initialization and treated as read-only
// afterwards; they are not safe for concurrent registration.
type Registry struct {
	parent *Registry
	roles  []Role
	byName map[string]int
}

// NewRegistry returns an empty root scope.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Derive returns a child scope. Roles registered on the child are visible
// to the child and its descendants, never to the parent.
func (g *Registry) Derive() *Registry {
	return &Registry{parent: g, byName: make(map[string]int)}
}

// Register adds a role to this scope. Registering a name twice within the
// same scope fails with [DuplicateRoleError]; a child scope may register a
// name that exists in an ancestor, shadowing it for resolution within the
// child.
func (g *Registry) Register(name, subjectType string, opts ...RoleOption) (Role, error) {
	if _, ok := g.byName[name]; ok {
		return Role{}, &DuplicateRoleError{Role: name}
	}

	role := Role{Name: name, SubjectType: subjectType}
	for _, opt := range opts {
		opt(&role)
	}

	g.byName[name] = len(g.roles)
	g.roles = append(g.roles, role)
	return role, nil
}

// Resolve returns the role registered under name, consulting ancestor
// scopes when this scope has no entry. Unregistered names fail with
// [UnknownRoleError].
func (g *Registry) Resolve(name string) (Role, error) {
	for scope := g; scope != nil; scope = scope.parent {
		if i, ok := scope.byName[name]; ok {
			return scope.roles[i], nil
		}
	}
	return Role{}, &UnknownRoleError{Role: name}
}

// Roles returns every role visible to this scope in registration order,
// ancestors first. A shadowed ancestor role keeps its original position but
// carries the shadowing scope's definition.
func (g *Registry) Roles() []Role {
	chain := g.scopeChain()

	var out []Role
	index := make(map[string]int)
	for _, scope := range chain {
		for _, role := range scope.roles {
			if i, ok := index[role.Name]; ok {
				out[i] = role
				continue
			}
			index[role.Name] = len(out)
			out = append(out, role)
		}
	}
	return out
}

// RolesForSubjectType returns the visible roles whose subject type matches,
// in registration order. Used by role resolution for subjects.
func (g *Registry) RolesForSubjectType(subjectType string) []Role {
	var out []Role
	for _, role := range g.Roles() {
		if role.SubjectType == subjectType {
			out = append(out, role)
		}
	}
	return out
}

// scopeChain lists scopes root-first so ancestor registrations order ahead
// of descendants.
func (g *Registry) scopeChain() []*Registry {
	var chain []*Registry
	for scope := g; scope != nil; scope = scope.parent {
		chain = append(chain, scope)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
