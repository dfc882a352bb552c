package authfront

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/MrEthical07/authfront/metrics"
	promexport "github.com/MrEthical07/authfront/metrics/export/prometheus"
	"github.com/MrEthical07/authfront/middleware"
	"github.com/MrEthical07/authfront/sampler"
)

const (
	UsersGaugeName       = "users_total"
	UsersCountErrorsName = "users_count_errors_total"
)

type mount struct {
	prefix  string
	handler http.Handler
}

// Builder assembles a Server. A Builder is single use.
type Builder struct {
	config      Config
	logger      log.Logger
	registry    *metrics.Registry
	countSource sampler.CountSource
	gatherers   []promclient.Gatherer

	authRoutes  http.Handler
	usersRoutes http.Handler
	mounts      []mount

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: log.NewNopLogger(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithLogger sets the logger shared by every component.
func (b *Builder) WithLogger(l log.Logger) *Builder {
	if l != nil {
		b.logger = l
	}
	return b
}

// WithRegistry makes the Server register its metrics into reg instead of a
// fresh registry, so callers can add their own metrics.
func (b *Builder) WithRegistry(reg *metrics.Registry) *Builder {
	b.registry = reg
	return b
}

// WithCountSource sets the source polled into the users gauge. Without one the
// gauge stays at zero.
func (b *Builder) WithCountSource(src sampler.CountSource) *Builder {
	b.countSource = src
	return b
}

// WithGatherer merges a client_golang gatherer into the metrics endpoint.
func (b *Builder) WithGatherer(g promclient.Gatherer) *Builder {
	if g != nil {
		b.gatherers = append(b.gatherers, g)
	}
	return b
}

// WithAuthRoutes mounts h under Routes.AuthPrefix.
func (b *Builder) WithAuthRoutes(h http.Handler) *Builder {
	b.authRoutes = h
	return b
}

// WithUsersRoutes mounts h under Routes.UsersPrefix.
func (b *Builder) WithUsersRoutes(h http.Handler) *Builder {
	b.usersRoutes = h
	return b
}

// WithRoute mounts h under an additional path prefix. Requests reach h with
// their path unchanged.
func (b *Builder) WithRoute(prefix string, h http.Handler) *Builder {
	b.mounts = append(b.mounts, mount{prefix: prefix, handler: h})
	return b
}

// Build validates the configuration, registers every metric and returns the
// Server. Metric name collisions are reported as *metrics.DuplicateNameError.
func (b *Builder) Build() (*Server, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	b.built = true

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := b.registry
	if reg == nil {
		reg = metrics.NewRegistry()
	}

	s := &Server{
		config:   cfg,
		logger:   b.logger,
		registry: reg,
		users:    metrics.NewGauge(UsersGaugeName, "Total number of users"),
		failures: metrics.NewCounter(UsersCountErrorsName, "Failed user count samples"),
	}
	if err := reg.Register(s.users); err != nil {
		return nil, err
	}
	if err := reg.Register(s.failures); err != nil {
		return nil, err
	}

	httpMetrics, err := middleware.NewHTTPMetrics(reg)
	if err != nil {
		return nil, err
	}
	s.httpMetrics = httpMetrics

	s.logins, err = middleware.NewLoginCounter(reg)
	if err != nil {
		return nil, err
	}

	if b.countSource != nil {
		s.sampler, err = sampler.New(s.users, b.countSource, sampler.Config{
			Interval: cfg.Metrics.UpdateInterval,
			Timeout:  cfg.Metrics.SampleTimeout,
		},
			sampler.WithLogger(log.With(b.logger, "component", "sampler")),
			sampler.WithFailureCounter(s.failures),
		)
		if err != nil {
			return nil, err
		}
	} else {
		level.Warn(b.logger).Log("msg", "no user count source configured; users gauge stays at zero")
	}

	exporterOpts := []promexport.Option{promexport.WithLogger(log.With(b.logger, "component", "exporter"))}
	for _, g := range b.gatherers {
		exporterOpts = append(exporterOpts, promexport.WithGatherer(g))
	}
	s.exporter = promexport.NewExporter(reg, exporterOpts...)

	mounts := make([]mount, 0, len(b.mounts)+2)
	if b.authRoutes != nil {
		mounts = append(mounts, mount{prefix: cfg.Routes.AuthPrefix, handler: b.authRoutes})
	}
	if b.usersRoutes != nil {
		mounts = append(mounts, mount{prefix: cfg.Routes.UsersPrefix, handler: b.usersRoutes})
	}
	mounts = append(mounts, b.mounts...)
	seen := make(map[string]struct{}, len(mounts))
	for _, m := range mounts {
		prefix := strings.TrimSuffix(m.prefix, "/")
		if !strings.HasPrefix(prefix, "/") || m.handler == nil {
			return nil, invalid(fmt.Sprintf("route %q needs an absolute prefix and a handler", m.prefix))
		}
		if !isLiteralPath(prefix) {
			return nil, invalid(fmt.Sprintf("route %q must be a literal path", m.prefix))
		}
		if _, dup := seen[prefix]; dup {
			return nil, invalid(fmt.Sprintf("route %q mounted twice", m.prefix))
		}
		seen[prefix] = struct{}{}
	}

	s.handler = s.buildHandler(mounts)
	return s, nil
}

func (s *Server) buildHandler(mounts []mount) http.Handler {
	routes := s.config.Routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+routes.HealthPath, healthHandler)
	mux.Handle("GET "+routes.MetricsPath, s.exporter.Handler())
	for _, m := range mounts {
		prefix := strings.TrimSuffix(m.prefix, "/")
		mux.Handle(prefix, m.handler)
		mux.Handle(prefix+"/", m.handler)
	}
	mux.HandleFunc("/", notFoundHandler)

	observeOpts := []middleware.ObserveOption{
		middleware.WithObserveLogger(log.With(s.logger, "component", "observer")),
	}
	if s.config.Metrics.RouteLabel == RouteLabelPath {
		observeOpts = append(observeOpts, middleware.WithRouteLabel(func(r *http.Request) string {
			return r.URL.Path
		}))
	}

	var h http.Handler = mux
	h = middleware.CountLogins(s.logins, routes.AuthPrefix+routes.LoginPath)(h)
	h = middleware.Recover(log.With(s.logger, "component", "http"))(h)
	h = middleware.Observe(s.httpMetrics, observeOpts...)(h)
	h = middleware.RequestID(h)

	if s.config.CORS.Enabled {
		h = cors.New(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   s.config.CORS.AllowedMethods,
			AllowedHeaders:   s.config.CORS.AllowedHeaders,
			ExposedHeaders:   []string{middleware.RequestIDHeader},
			AllowCredentials: s.config.CORS.AllowCredentials,
		}).Handler(h)
	}
	return h
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, "Auth Server UP!")
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusNotFound, map[string]string{
		"message": "This route does not exist",
	})
}
