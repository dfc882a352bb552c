package authfront

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/MrEthical07/authfront/metrics"
	promexport "github.com/MrEthical07/authfront/metrics/export/prometheus"
	"github.com/MrEthical07/authfront/middleware"
	"github.com/MrEthical07/authfront/sampler"
)

// Server is the assembled front end. Its methods are safe for concurrent use
// after Build.
type Server struct {
	config   Config
	logger   log.Logger
	registry *metrics.Registry
	handler  http.Handler
	exporter *promexport.Exporter
	sampler  *sampler.Sampler

	users       *metrics.Gauge
	failures    *metrics.Counter
	logins      *metrics.Counter
	httpMetrics *middleware.HTTPMetrics

	mu      sync.Mutex
	started bool
}

// Handler returns the complete HTTP handler chain.
func (s *Server) Handler() http.Handler { return s.handler }

// Registry returns the registry holding the server metrics.
func (s *Server) Registry() *metrics.Registry { return s.registry }

// Exporter returns the metrics exporter mounted at Routes.MetricsPath.
func (s *Server) Exporter() *promexport.Exporter { return s.exporter }

// UsersGauge returns the gauge fed by the count source.
func (s *Server) UsersGauge() *metrics.Gauge { return s.users }

// LoginCounter returns the auth_logins_total counter.
func (s *Server) LoginCounter() *metrics.Counter { return s.logins }

// HTTPMetrics returns the request counters.
func (s *Server) HTTPMetrics() *middleware.HTTPMetrics { return s.httpMetrics }

// Start runs the first users sample and starts periodic sampling.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrServerStarted
	}
	s.started = true
	if s.sampler == nil {
		return nil
	}
	return s.sampler.Start(ctx)
}

// Close stops periodic sampling.
func (s *Server) Close() {
	if s.sampler != nil {
		s.sampler.Stop()
	}
}

// ListenAndServe listens on HTTP.Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.HTTP.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve starts the server on ln and blocks until ctx is cancelled or the
// listener fails. On cancellation in-flight requests get HTTP.ShutdownTimeout
// to finish, then sampling is stopped.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.Start(ctx); err != nil {
		_ = ln.Close()
		return err
	}
	defer s.Close()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.HTTP.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		level.Info(s.logger).Log("msg", "listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.HTTP.ShutdownTimeout)
	defer cancel()
	level.Info(s.logger).Log("msg", "shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
