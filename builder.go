package authem

import (
	"context"
	"errors"

	"github.com/authemhq/authem/session"
	"github.com/redis/go-redis/v9"
)

// DenyHandler is the per-role "access denied" hook invoked by RequireAuth
// when no subject is signed in. The integrating application must supply one
// for every role it guards; a missing handler fails with
// [MissingDenyHandlerError] the moment RequireAuth needs it.
type DenyHandler func(ctx context.Context, a *Auth, role string) error

// Builder assembles a [Manager]. A Builder is single-use: Build refuses to
// run twice.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	registry *Registry
	roleErr  error

	provider SubjectProvider
	sink     AuditSink
	deny     map[string]DenyHandler

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config:   DefaultConfig(),
		registry: NewRegistry(),
		deny:     make(map[string]DenyHandler),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the session store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRole registers a role. Registration errors (duplicate names) are
// deferred and surfaced by Build.
func (b *Builder) WithRole(name, subjectType string, opts ...RoleOption) *Builder {
	if _, err := b.registry.Register(name, subjectType, opts...); err != nil && b.roleErr == nil {
		b.roleErr = err
	}
	return b
}

// WithRegistry replaces the role registry wholesale, for applications that
// assemble roles (or derived scopes) separately.
func (b *Builder) WithRegistry(registry *Registry) *Builder {
	if registry != nil {
		b.registry = registry
	}
	return b
}

// WithSubjectProvider sets the loader for subject records referenced by
// stored sessions.
func (b *Builder) WithSubjectProvider(provider SubjectProvider) *Builder {
	b.provider = provider
	return b
}

// WithDenyHandler supplies the access-denied hook for a role.
func (b *Builder) WithDenyHandler(role string, handler DenyHandler) *Builder {
	if handler != nil {
		b.deny[role] = handler
	}
	return b
}

// WithAuditSink sets the sink receiving audit events. Only consulted when
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration and assembles an immutable [Manager].
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.roleErr != nil {
		return nil, b.roleErr
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.provider == nil {
		return nil, errors.New("subject provider required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(b.registry.Roles()) == 0 {
		return nil, errors.New("at least one role must be registered")
	}

	for role := range b.deny {
		if _, err := b.registry.Resolve(role); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		config:   cfg,
		registry: b.registry,
		store:    session.NewStore(b.redis, cfg.Session.RedisPrefix),
		provider: b.provider,
		deny:     b.deny,
		audit:    newAuditDispatcher(cfg.Audit, b.sink),
		metrics:  NewMetrics(cfg.Metrics),
	}

	b.built = true

	return m, nil
}
