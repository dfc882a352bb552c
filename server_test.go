package authfront

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"

	"github.com/MrEthical07/authfront/metrics"
	"github.com/MrEthical07/authfront/middleware"
	"github.com/MrEthical07/authfront/sampler"
)

func newTestServer(t *testing.T, b *Builder) *Server {
	t.Helper()
	srv, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	return rec.Body.String()
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, New())
	rec := do(srv.Handler(), http.MethodGet, "/api/auth")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var msg string
	if err := json.NewDecoder(rec.Body).Decode(&msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg != "Auth Server UP!" {
		t.Fatalf("unexpected health body %q", msg)
	}
}

func TestRequestIsRecordedAfterCompletion(t *testing.T) {
	srv := newTestServer(t, New().WithRoute("/x", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	if rec := do(srv.Handler(), http.MethodGet, "/x"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	m := srv.HTTPMetrics()
	if got := m.Requests.Value("GET", "/x", "200"); got != 1 {
		t.Fatalf("expected labeled count 1, got %d", got)
	}
	if got := m.Overall.Value(); got != 1 {
		t.Fatalf("expected overall count 1, got %d", got)
	}

	body := scrape(t, srv.Handler())
	if !strings.Contains(body, `http_requests_total{method="GET",route="/x",statusCode="200"} 1`) {
		t.Fatalf("expected series in exposition:\n%s", body)
	}
}

func TestMetricsEndpointContentTypeAndTypes(t *testing.T) {
	srv := newTestServer(t, New())
	rec := do(srv.Handler(), http.MethodGet, "/metrics")

	if got := rec.Header().Get("Content-Type"); got != metrics.ContentType {
		t.Fatalf("expected %q, got %q", metrics.ContentType, got)
	}
	body := rec.Body.String()
	for _, name := range []string{UsersGaugeName, UsersCountErrorsName, middleware.OverallRequestsName, middleware.RequestsName, middleware.LoginsName} {
		if n := strings.Count(body, "# TYPE "+name+" "); n != 1 {
			t.Fatalf("expected one TYPE line for %s, got %d", name, n)
		}
	}
}

func TestLoginRequestsAreCounted(t *testing.T) {
	var reached atomic.Int32
	auth := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := newTestServer(t, New().WithAuthRoutes(auth))

	do(srv.Handler(), http.MethodPost, "/api/auth/login")
	do(srv.Handler(), http.MethodPost, "/api/auth/signup")

	if got := srv.LoginCounter().Value(); got != 1 {
		t.Fatalf("expected 1 login, got %d", got)
	}
	if got := reached.Load(); got != 2 {
		t.Fatalf("expected auth routes to receive both requests, got %d", got)
	}
	if got := srv.HTTPMetrics().Requests.Value("POST", "/api/auth/login", "401"); got != 1 {
		t.Fatalf("expected login request recorded with 401, got %d", got)
	}
}

func TestUsersRoutesTakePrecedenceOverAuthPrefix(t *testing.T) {
	srv := newTestServer(t, New().
		WithAuthRoutes(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})).
		WithUsersRoutes(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})))

	if rec := do(srv.Handler(), http.MethodGet, "/api/auth/users/42"); rec.Code != http.StatusAccepted {
		t.Fatalf("expected users router, got %d", rec.Code)
	}
	if rec := do(srv.Handler(), http.MethodGet, "/api/auth/verify"); rec.Code != http.StatusTeapot {
		t.Fatalf("expected auth router, got %d", rec.Code)
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	srv := newTestServer(t, New())
	rec := do(srv.Handler(), http.MethodGet, "/nope?q=1")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "This route does not exist") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if got := srv.HTTPMetrics().Requests.Value("GET", "/nope?q=1", "404"); got != 1 {
		t.Fatalf("expected 404 recorded with raw uri, got %d", got)
	}
}

func TestPathRouteLabelMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metrics.RouteLabel = RouteLabelPath
	srv := newTestServer(t, New().WithConfig(cfg))

	do(srv.Handler(), http.MethodGet, "/nope?q=1")
	if got := srv.HTTPMetrics().Requests.Value("GET", "/nope", "404"); got != 1 {
		t.Fatalf("expected path-only label, series=%v", srv.HTTPMetrics().Requests.Collect().Series)
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	srv := newTestServer(t, New())
	req := httptest.NewRequest(http.MethodGet, "/api/auth", nil)
	req.Header.Set("Origin", "https://frontend.example")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard CORS origin, got %q", got)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestStartPopulatesUsersGauge(t *testing.T) {
	srv := newTestServer(t, New().WithCountSource(sampler.CountFunc(func(context.Context) (int64, error) {
		return 12, nil
	})))

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := srv.Start(context.Background()); !errors.Is(err, ErrServerStarted) {
		t.Fatalf("expected ErrServerStarted, got %v", err)
	}
	if got := srv.UsersGauge().Value(); got != 12 {
		t.Fatalf("expected gauge 12 right after start, got %v", got)
	}
	if !strings.Contains(scrape(t, srv.Handler()), "users_total 12\n") {
		t.Fatalf("expected users_total in exposition")
	}
}

func TestFailingCountSourceIsCounted(t *testing.T) {
	srv := newTestServer(t, New().WithCountSource(sampler.CountFunc(func(context.Context) (int64, error) {
		return 0, errors.New("user store offline")
	})))

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start must not surface sampling errors: %v", err)
	}
	body := scrape(t, srv.Handler())
	if !strings.Contains(body, "users_count_errors_total 1\n") {
		t.Fatalf("expected failure counted:\n%s", body)
	}
	if !strings.Contains(body, "users_total 0\n") {
		t.Fatalf("expected gauge to keep default:\n%s", body)
	}
}

func TestGathererIsMerged(t *testing.T) {
	runtime := promclient.NewRegistry()
	runtime.MustRegister(collectors.NewGoCollector())
	srv := newTestServer(t, New().WithGatherer(runtime))

	if !strings.Contains(scrape(t, srv.Handler()), "go_goroutines") {
		t.Fatalf("expected runtime metrics merged")
	}
}

func TestBuildReportsDuplicateMetric(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.MustRegister(metrics.NewCounter(middleware.LoginsName, "Taken."))

	_, err := New().WithRegistry(reg).Build()
	var dup *metrics.DuplicateNameError
	if !errors.As(err, &dup) || dup.Name != middleware.LoginsName {
		t.Fatalf("expected duplicate %s, got %v", middleware.LoginsName, err)
	}
}

func TestBuildRejectsInvalidConfigAndReuse(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metrics.UpdateInterval = 0
	if _, err := New().WithConfig(cfg).Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	b := New()
	if _, err := b.Build(); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	srv := newTestServer(t, New())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/api/auth"
	var resp *http.Response
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became ready: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
}

func TestBuildRejectsBadMounts(t *testing.T) {
	h := http.NotFoundHandler()
	cases := map[string]*Builder{
		"root prefix":     New().WithRoute("/", h),
		"relative prefix": New().WithRoute("x", h),
		"nil handler":     New().WithRoute("/x", nil),
		"duplicate":       New().WithRoute("/x", h).WithRoute("/x/", h),
		"shadow auth":     New().WithAuthRoutes(h).WithRoute("/api/auth", h),
		"wildcard":        New().WithRoute("/v1/{id", h),
		"closed wildcard": New().WithRoute("/v1/{id}", h),
		"space":           New().WithRoute("/v1 x", h),
	}
	for name, b := range cases {
		if _, err := b.Build(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestInvalidUTF8RouteKeepsScrapeParseable(t *testing.T) {
	srv := newTestServer(t, New())
	h := srv.Handler()

	if rec := do(h, http.MethodGet, "/a\xff"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(strings.NewReader(scrape(t, h)))
	if err != nil {
		t.Fatalf("parse scrape: %v", err)
	}
	mf, ok := families[middleware.RequestsName]
	if !ok {
		t.Fatalf("missing %s family", middleware.RequestsName)
	}
	found := false
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "route" && l.GetValue() == "/a\uFFFD" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected sanitized route label in %v", mf)
	}
}
