package authem

import "sync/atomic"

// MetricID identifies one counter tracked by the [Metrics] facility.
type MetricID uint16

const (
	// MetricSignInSuccess counts successful sign-ins across all roles.
	MetricSignInSuccess MetricID = iota
	// MetricSignInFailure counts sign-ins rejected before session creation.
	MetricSignInFailure
	// MetricSessionRenewed counts renew-on-use expiry extensions.
	MetricSessionRenewed
	// MetricSessionMiss counts lookups that resolved to absent.
	MetricSessionMiss
	// MetricTokenCollision counts token collisions during session creation.
	MetricTokenCollision
	// MetricSignOut counts explicit sign-outs.
	MetricSignOut
	// MetricClearAll counts bulk subject invalidations.
	MetricClearAll
	// MetricAccessDenied counts RequireAuth rejections.
	MetricAccessDenied
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed-size, allocation-free counter facility. Counters are
// padded to avoid false sharing under concurrent requests.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a [Metrics] facility. When disabled, Inc is a no-op
// and Snapshot returns zeroes.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Snapshot copies every counter into a map keyed by [MetricID].
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}
