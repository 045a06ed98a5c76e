package authcore

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIncAndValue(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricRefreshReuseDetected)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("login success: want 2, got %d", got)
	}
	if got := m.Value(MetricRefreshReuseDetected); got != 1 {
		t.Fatalf("reuse detected: want 1, got %d", got)
	}
	if got := m.Value(MetricLogout); got != 0 {
		t.Fatalf("untouched counter: want 0, got %d", got)
	}
}

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, 3*time.Millisecond)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled metrics recorded a count: %d", got)
	}

	s := m.Snapshot()
	if len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatal("disabled snapshot must be empty")
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics returned a value")
	}
	if m.Enabled() {
		t.Fatal("nil metrics reports enabled")
	}
}

func TestMetricsLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := map[time.Duration]int{
		time.Millisecond:        0,
		8 * time.Millisecond:    1,
		20 * time.Millisecond:   2,
		40 * time.Millisecond:   3,
		90 * time.Millisecond:   4,
		200 * time.Millisecond:  5,
		400 * time.Millisecond:  6,
		1200 * time.Millisecond: 7,
	}
	for d, want := range samples {
		if got := bucketIndex(d); got != want {
			t.Errorf("bucketIndex(%v): want %d, got %d", d, want, got)
		}
	}

	m.Observe(MetricValidateLatency, 2*time.Millisecond)
	m.Observe(MetricValidateLatency, 4*time.Millisecond)
	m.Observe(MetricValidateLatency, 300*time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricValidateLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("want %d buckets, got %d", histBucketCount, len(buckets))
	}
	if buckets[0] != 2 || buckets[5] != 1 {
		t.Fatalf("unexpected bucket counts: %v", buckets)
	}
}

func TestMetricsLatencyDisabledWithoutHistogramFlag(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Observe(MetricValidateLatency, time.Millisecond)

	if _, ok := m.Snapshot().Histograms[MetricValidateLatency]; ok {
		t.Fatal("histogram recorded without EnableLatencyHistograms")
	}
}

func TestMetricsSnapshotIsIsolated(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLogout)

	s := m.Snapshot()
	s.Counters[MetricLogout] = 99

	if got := m.Value(MetricLogout); got != 1 {
		t.Fatalf("snapshot mutation leaked into live counters: %d", got)
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricValidateSuccess)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := m.Value(MetricValidateSuccess); got != workers*perWorker {
		t.Fatalf("want %d, got %d", workers*perWorker, got)
	}
}

func TestMetricIDNamesAreDistinct(t *testing.T) {
	seen := make(map[string]MetricID, int(metricIDCount))
	for id := MetricID(0); id < metricIDCount; id++ {
		name := id.Name()
		if name == "unknown" || name == "" {
			t.Fatalf("metric %d has no name", id)
		}
		if prev, dup := seen[name]; dup {
			t.Fatalf("metrics %d and %d share name %q", prev, id, name)
		}
		seen[name] = id
	}
}
