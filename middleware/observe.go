package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/MrEthical07/authfront/metrics"
)

const (
	OverallRequestsName = "http_requests_overall_total"
	RequestsName        = "http_requests_total"
)

// HTTPMetrics holds the counters updated by [Observe].
type HTTPMetrics struct {
	Overall  *metrics.Counter
	Requests *metrics.CounterVec
}

// NewHTTPMetrics creates the request counters and registers them with reg.
func NewHTTPMetrics(reg *metrics.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		Overall: metrics.NewCounter(OverallRequestsName, "Overall total number of HTTP requests"),
		Requests: metrics.NewCounterVec(RequestsName, "Total number of HTTP requests with labels",
			"method", "route", "statusCode"),
	}
	if err := reg.Register(m.Overall); err != nil {
		return nil, err
	}
	if err := reg.Register(m.Requests); err != nil {
		return nil, err
	}
	return m, nil
}

type observeConfig struct {
	routeLabel func(*http.Request) string
	logger     log.Logger
}

// ObserveOption customizes [Observe].
type ObserveOption func(*observeConfig)

// WithRouteLabel replaces the default raw-URI route label.
func WithRouteLabel(fn func(*http.Request) string) ObserveOption {
	return func(c *observeConfig) {
		if fn != nil {
			c.routeLabel = fn
		}
	}
}

// WithObserveLogger sets the logger for recording failures.
func WithObserveLogger(l log.Logger) ObserveOption {
	return func(c *observeConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// RawURI labels a request with its original request URI, falling back to the
// URL path when RequestURI is empty (client-side constructed requests).
func RawURI(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}

// Observe returns middleware that records every completed request: it
// increments the overall counter and the (method, route, statusCode) series.
// Recording happens once, after the wrapped handler returns, so the final
// status is known. A panicking handler is recorded as 500 and the panic is
// propagated.
func Observe(m *HTTPMetrics, opts ...ObserveOption) func(http.Handler) http.Handler {
	cfg := observeConfig{routeLabel: RawURI, logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Captured before next runs; handlers may rewrite r.URL.
			route := cfg.routeLabel(r)
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			completed := false
			defer func() {
				if !completed {
					rw.status = http.StatusInternalServerError
				}
				m.record(cfg.logger, r.Method, route, rw.status)
			}()

			next.ServeHTTP(rw, r)
			completed = true
		})
	}
}

func (m *HTTPMetrics) record(logger log.Logger, method, route string, status int) {
	defer func() {
		if p := recover(); p != nil {
			level.Error(logger).Log("msg", "recording request metrics panicked", "panic", fmt.Sprint(p))
		}
	}()

	m.Overall.Inc()
	if err := m.Requests.Inc(method, route, strconv.Itoa(status)); err != nil {
		level.Error(logger).Log("msg", "recording request metrics failed", "route", route, "err", err)
	}
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

// WriteHeader records the first final status. Informational 1xx headers
// other than 101 Switching Protocols are passed through without being
// recorded, since a final header still follows them.
func (rw *statusRecorder) WriteHeader(code int) {
	if code >= 100 && code <= 199 && code != http.StatusSwitchingProtocols {
		rw.ResponseWriter.WriteHeader(code)
		return
	}
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
