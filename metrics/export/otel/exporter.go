package otel

import (
	"context"
	"errors"
	"fmt"

	authcore "github.com/premisave/authcore"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// metricsSource is satisfied by *authcore.Engine.
type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

type observedCounter struct {
	id         authcore.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter mirrors the engine counters into OpenTelemetry observable
// instruments. Close unregisters the collection callback.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	auditDropped metric.Int64ObservableCounter
}

func NewExporter(meter metric.Meter, engine *authcore.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(authcore.MetricNames)),
	}

	observables := make([]metric.Observable, 0, len(authcore.MetricNames)+1)

	for id, name := range authcore.MetricNames {
		ins, err := meter.Int64ObservableCounter(name)
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{
			id:         authcore.MetricID(id),
			instrument: ins,
		})
		observables = append(observables, ins)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		"authcore_audit_dropped_total",
		metric.WithDescription("Audit events dropped by dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		observer.ObserveInt64(exporter.auditDropped, int64(exporter.source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
