// Package authfront is the HTTP front end of the authentication service. It
// wires CORS, request metrics, the metrics exposition endpoint and a periodic
// user-count gauge around externally supplied auth and users routers.
//
// A [Server] is assembled with [Builder]:
//
//	srv, err := authfront.New().
//		WithConfig(cfg).
//		WithLogger(logger).
//		WithCountSource(counter).
//		WithAuthRoutes(authHandler).
//		WithUsersRoutes(usersHandler).
//		Build()
//
// # Architecture boundaries
//
// authfront owns composition and lifecycle only. Metric storage lives in
// metrics, exposition in metrics/export/prometheus, sampling in sampler and
// request recording in middleware.
//
// # What this package must NOT do
//
//   - Authenticate users or handle credentials; auth routes are opaque handlers.
//   - Keep process-wide state; every Server owns its own registry.
package authfront
