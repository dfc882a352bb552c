// Package middleware provides the HTTP middleware of the auth front end.
//
// # Middleware
//
//   - [Observe]: records one sample per completed request into the HTTP
//     request counters.
//   - [RequestID]: propagates or assigns an X-Request-ID header.
//   - [CountLogins]: counts requests to the login endpoint.
//   - [Recover]: turns handler panics into a JSON 500 response.
//
// # Architecture boundaries
//
// This package translates HTTP events into metric updates. It does NOT render
// metrics, authenticate callers, or route requests.
//
// # Route label cardinality
//
// By default [Observe] labels requests with the raw request URI, query string
// included. Cardinality is therefore bounded only by the distinct URIs clients
// send. Use [WithRouteLabel] to normalize paths when that is a concern.
package middleware
