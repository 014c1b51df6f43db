// Package otel provides OpenTelemetry metric bindings for the engine
// counters.
//
// [NewExporter] registers one Int64ObservableCounter per engine metric plus
// the audit-drop counter. A single callback reads the engine snapshot on each
// collection cycle. Callers own the MeterProvider; this package only borrows
// a Meter.
package otel
