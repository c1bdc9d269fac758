package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects and aggregates counters for routing operations.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64

	cacheHardHits atomic.Int64
	cacheSoftHits atomic.Int64
	cacheMisses   atomic.Int64
	invalidations atomic.Int64

	probeTimeouts atomic.Int64
	probeFailures atomic.Int64

	graphRebuilds atomic.Int64

	// Decisions per method.
	methodCounts map[string]*atomic.Int64

	durations    []time.Duration
	maxDurations int
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		methodCounts: make(map[string]*atomic.Int64),
		maxDurations: 1024,
	}
}

// RecordRequest records a completed routing request.
func (m *Metrics) RecordRequest(method string, duration time.Duration, failed bool) {
	m.requestTotal.Add(1)
	if failed {
		m.requestFailed.Add(1)
	}

	m.mu.Lock()
	counter, ok := m.methodCounts[method]
	if !ok {
		counter = &atomic.Int64{}
		m.methodCounts[method] = counter
	}
	if len(m.durations) < m.maxDurations {
		m.durations = append(m.durations, duration)
	}
	m.mu.Unlock()

	counter.Add(1)
}

// RecordCacheHardHit increments the hard cache hit counter.
func (m *Metrics) RecordCacheHardHit() { m.cacheHardHits.Add(1) }

// RecordCacheSoftHit increments the soft cache hit counter.
func (m *Metrics) RecordCacheSoftHit() { m.cacheSoftHits.Add(1) }

// RecordCacheMiss increments the cache miss counter.
func (m *Metrics) RecordCacheMiss() { m.cacheMisses.Add(1) }

// RecordInvalidation increments the cache invalidation counter.
func (m *Metrics) RecordInvalidation() { m.invalidations.Add(1) }

// RecordProbeTimeout increments the probe timeout counter.
func (m *Metrics) RecordProbeTimeout() { m.probeTimeouts.Add(1) }

// RecordProbeFailure increments the probe failure counter.
func (m *Metrics) RecordProbeFailure() { m.probeFailures.Add(1) }

// RecordGraphRebuild increments the graph rebuild counter.
func (m *Metrics) RecordGraphRebuild() { m.graphRebuilds.Add(1) }

// Snapshot is a point-in-time view of all counters.
type Snapshot struct {
	RequestTotal  int64            `json:"requestTotal"`
	RequestFailed int64            `json:"requestFailed"`
	CacheHardHits int64            `json:"cacheHardHits"`
	CacheSoftHits int64            `json:"cacheSoftHits"`
	CacheMisses   int64            `json:"cacheMisses"`
	Invalidations int64            `json:"invalidations"`
	ProbeTimeouts int64            `json:"probeTimeouts"`
	ProbeFailures int64            `json:"probeFailures"`
	GraphRebuilds int64            `json:"graphRebuilds"`
	MethodCounts  map[string]int64 `json:"methodCounts"`
	AvgDurationMs int64            `json:"avgDurationMs"`
}

// Collect returns a snapshot of all counters.
func (m *Metrics) Collect() Snapshot {
	snap := Snapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		CacheHardHits: m.cacheHardHits.Load(),
		CacheSoftHits: m.cacheSoftHits.Load(),
		CacheMisses:   m.cacheMisses.Load(),
		Invalidations: m.invalidations.Load(),
		ProbeTimeouts: m.probeTimeouts.Load(),
		ProbeFailures: m.probeFailures.Load(),
		GraphRebuilds: m.graphRebuilds.Load(),
		MethodCounts:  make(map[string]int64),
	}

	m.mu.Lock()
	for method, counter := range m.methodCounts {
		snap.MethodCounts[method] = counter.Load()
	}
	if len(m.durations) > 0 {
		var total time.Duration
		for _, d := range m.durations {
			total += d
		}
		snap.AvgDurationMs = (total / time.Duration(len(m.durations))).Milliseconds()
	}
	m.mu.Unlock()

	return snap
}
