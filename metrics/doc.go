// Package metrics provides an explicitly constructed metric registry with
// atomic counters, labeled counter vectors and gauges, rendered in the
// Prometheus text exposition format.
//
// # Design
//
// Unlabeled counters are single atomic uint64 slots. A [CounterVec] keeps one
// atomic slot per label tuple; creating a new tuple takes a write lock, every
// later increment of that tuple is lock-free. Gauges store float64 bits in an
// atomic uint64.
//
// [Registry.Render] walks metrics in registration order and series in
// first-insertion order, so two renders with no mutation in between produce
// byte-identical output.
//
// # Architecture boundaries
//
// This package owns metric storage and text rendering. HTTP exposition lives in
// metrics/export/prometheus, OpenTelemetry bridging in metrics/export/otel.
//
// # What this package must NOT do
//
//   - Perform I/O beyond writing to a caller supplied io.Writer.
//   - Expose a package-level default registry.
package metrics
