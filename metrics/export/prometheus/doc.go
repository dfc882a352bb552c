// Package prometheus serves a [metrics.Registry] over HTTP in the Prometheus
// text exposition format.
//
// [NewExporter] accepts the registry and, optionally, client_golang gatherers
// (for example the Go runtime and process collectors). Registry metrics are
// rendered first in registration order, gathered families follow.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate registry state.
//   - Authenticate scrapers; exposure control belongs to the gateway in front.
package prometheus
