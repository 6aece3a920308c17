package authem

import (
	"context"

	"github.com/authemhq/authem/session"
)

// Manager is the process-wide authentication engine: configuration, role
// registry, session store, and observability. It is immutable after
// [Builder.Build] and safe for concurrent use; per-request state lives on
// the [Auth] handles it hands out.
type Manager struct {
	config   Config
	registry *Registry
	store    *session.Store
	provider SubjectProvider
	deny     map[string]DenyHandler
	audit    *auditDispatcher
	metrics  *Metrics
}

// Request binds the Manager to one inbound request/response cycle. The
// returned [Auth] memoizes resolution per role and must not be shared
// across requests.
func (m *Manager) Request(server ServerStore, client ClientStore, info RequestInfo) *Auth {
	a := &Auth{
		manager: m,
		server:  server,
		client:  client,
		info:    info,
		roles:   make(map[string]*roleSession),
	}
	for _, role := range m.registry.Roles() {
		a.roles[role.Name] = &roleSession{auth: a, role: role}
	}
	return a
}

// Registry exposes the configured role registry (read-only).
func (m *Manager) Registry() *Registry {
	return m.registry
}

// SessionCount returns the number of tracked sessions for a role.
func (m *Manager) SessionCount(ctx context.Context, role string) (int, error) {
	if _, err := m.registry.Resolve(role); err != nil {
		return 0, err
	}
	return m.store.Count(ctx, role)
}

// ActiveSessionCount returns the number of tracked sessions for a subject
// across all roles.
func (m *Manager) ActiveSessionCount(ctx context.Context, subject Subject) (int, error) {
	if subject == nil {
		return 0, ErrNilSubject
	}
	return m.store.ActiveSessionCount(ctx, subject.SubjectType(), subject.SubjectID())
}

// MetricsSnapshot returns a point-in-time copy of the Manager's counters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return m.metrics.Snapshot()
}

// AuditDropped reports how many audit events were dropped by a full buffer.
func (m *Manager) AuditDropped() uint64 {
	if m == nil || m.audit == nil {
		return 0
	}
	return m.audit.Dropped()
}

// Close drains and stops the audit dispatcher. The Manager must not be used
// afterwards.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	if m.audit != nil {
		m.audit.Close()
	}
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

func (m *Manager) emitAudit(ctx context.Context, event AuditEvent) {
	if m == nil || m.audit == nil {
		return
	}
	m.audit.Emit(ctx, event)
}
