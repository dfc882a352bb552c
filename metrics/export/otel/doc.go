// Package otel bridges a [metrics.Registry] into an OpenTelemetry Meter.
//
// [NewOTelExporter] registers one observable instrument per metric present in
// the registry at construction time: Int64ObservableCounter for counters and
// Float64ObservableGauge for gauges. A single callback collects the registry
// on each collection cycle; labels become attributes.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider; callers supply the Meter.
//   - Mutate registry state.
package otel
