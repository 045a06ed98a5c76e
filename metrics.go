package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginLocked
	MetricOAuthLoginSuccess
	MetricOAuthLoginFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricValidateSuccess
	MetricValidateFailure
	MetricLogout
	MetricLogoutAll
	MetricSessionCreated
	MetricSessionInvalidated
	MetricServiceTokenIssued
	MetricServiceTokenValidated
	MetricBreakerOpened
	MetricBreakerRejected
	// MetricValidateLatency is a histogram, not a counter.
	MetricValidateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps each hot counter on its own cache line so
// concurrent increments of different metrics do not false-share.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus one latency
// histogram for Validate, the only operation on every request path.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy for exporters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to a counter. No-op when metrics are disabled.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a validate latency sample into the histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricValidateLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricValidateLatency].buckets[i])
		}
		s.Histograms[MetricValidateLatency] = buckets
	}

	return s
}

// Name returns the exporter-facing metric name.
func (id MetricID) Name() string {
	switch id {
	case MetricLoginSuccess:
		return "login_success"
	case MetricLoginFailure:
		return "login_failure"
	case MetricLoginLocked:
		return "login_locked"
	case MetricOAuthLoginSuccess:
		return "oauth_login_success"
	case MetricOAuthLoginFailure:
		return "oauth_login_failure"
	case MetricRefreshSuccess:
		return "refresh_success"
	case MetricRefreshFailure:
		return "refresh_failure"
	case MetricRefreshReuseDetected:
		return "refresh_reuse_detected"
	case MetricValidateSuccess:
		return "validate_success"
	case MetricValidateFailure:
		return "validate_failure"
	case MetricLogout:
		return "logout"
	case MetricLogoutAll:
		return "logout_all"
	case MetricSessionCreated:
		return "session_created"
	case MetricSessionInvalidated:
		return "session_invalidated"
	case MetricServiceTokenIssued:
		return "service_token_issued"
	case MetricServiceTokenValidated:
		return "service_token_validated"
	case MetricBreakerOpened:
		return "breaker_opened"
	case MetricBreakerRejected:
		return "breaker_rejected"
	case MetricValidateLatency:
		return "validate_latency"
	default:
		return "unknown"
	}
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
