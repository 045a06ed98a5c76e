// Package otel bridges the engine's in-process counters to
// OpenTelemetry as observable instruments. The engine keeps its
// lock-free counters on the hot path; the bridge reads a snapshot only
// when the meter's reader collects.
package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	authcore "github.com/MrEthical07/authcore"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

var counterIDs = []authcore.MetricID{
	authcore.MetricLoginSuccess,
	authcore.MetricLoginFailure,
	authcore.MetricLoginLocked,
	authcore.MetricOAuthLoginSuccess,
	authcore.MetricOAuthLoginFailure,
	authcore.MetricRefreshSuccess,
	authcore.MetricRefreshFailure,
	authcore.MetricRefreshReuseDetected,
	authcore.MetricValidateSuccess,
	authcore.MetricValidateFailure,
	authcore.MetricLogout,
	authcore.MetricLogoutAll,
	authcore.MetricSessionCreated,
	authcore.MetricSessionInvalidated,
	authcore.MetricServiceTokenIssued,
	authcore.MetricServiceTokenValidated,
	authcore.MetricBreakerOpened,
	authcore.MetricBreakerRejected,
}

// Bucket upper bounds of the validate-latency histogram, in emission
// order. Must match the engine's bucketing.
var latencyBoundSuffix = [8]string{"5ms", "10ms", "25ms", "50ms", "100ms", "250ms", "500ms", "inf"}

// Source is what the exporter reads. *authcore.Engine satisfies it.
type Source interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter registers observable instruments on a meter and feeds them
// from engine snapshots during collection.
type Exporter struct {
	source       Source
	registration metric.Registration
	counters     map[authcore.MetricID]metric.Int64ObservableCounter
	latency      [8]metric.Int64ObservableGauge
	latencyCount metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

// NewExporter wires every engine counter, the validate-latency
// histogram, and the audit drop counter onto meter.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[authcore.MetricID]metric.Int64ObservableCounter, len(counterIDs)),
	}

	observables := make([]metric.Observable, 0, len(counterIDs)+len(e.latency)+2)

	for _, id := range counterIDs {
		name := "authcore_" + id.Name() + "_total"
		ins, err := meter.Int64ObservableCounter(name)
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", name, err)
		}
		e.counters[id] = ins
		observables = append(observables, ins)
	}

	for i, suffix := range latencyBoundSuffix {
		name := "authcore_validate_latency_bucket_le_" + suffix
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative latency bucket count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram gauge %s: %w", name, err)
		}
		e.latency[i] = ins
		observables = append(observables, ins)
	}

	latencyCount, err := meter.Int64ObservableGauge("authcore_validate_latency_count",
		metric.WithDescription("Total validate latency samples."))
	if err != nil {
		return nil, fmt.Errorf("create histogram count gauge: %w", err)
	}
	e.latencyCount = latencyCount
	observables = append(observables, latencyCount)

	auditDropped, err := meter.Int64ObservableCounter("authcore_audit_dropped_total",
		metric.WithDescription("Audit events dropped under dispatcher backpressure."))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := e.source.MetricsSnapshot()
		for id, ins := range e.counters {
			observer.ObserveInt64(ins, int64(snapshot.Counters[id]))
		}

		raw := snapshot.Histograms[authcore.MetricValidateLatency]
		var cumulative uint64
		for i := range e.latency {
			if i < len(raw) {
				cumulative += raw[i]
			}
			observer.ObserveInt64(e.latency[i], int64(cumulative))
		}
		observer.ObserveInt64(e.latencyCount, int64(cumulative))

		observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration

	return e, nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
