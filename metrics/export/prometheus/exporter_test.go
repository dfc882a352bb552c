package prometheus

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"

	"github.com/MrEthical07/authfront/metrics"
)

func newRegistry() (*metrics.Registry, *metrics.Gauge, *metrics.CounterVec) {
	reg := metrics.NewRegistry()
	users := metrics.NewGauge("users_total", "Total number of users")
	requests := metrics.NewCounterVec("http_requests_total", "Total number of HTTP requests with labels", "method", "route", "statusCode")
	reg.MustRegister(users, requests)
	return reg, users, requests
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	reg, users, requests := newRegistry()
	users.Set(4)
	_ = requests.Inc("GET", "/x", "200")

	rec := httptest.NewRecorder()
	NewExporter(reg).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != metrics.ContentType {
		t.Fatalf("expected %q, got %q", metrics.ContentType, got)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "users_total 4\n") {
		t.Fatalf("expected gauge in body:\n%s", body)
	}
	if !strings.Contains(body, `http_requests_total{method="GET",route="/x",statusCode="200"} 1`) {
		t.Fatalf("expected labeled counter in body:\n%s", body)
	}
}

func TestRenderMergesGatherer(t *testing.T) {
	reg, _, _ := newRegistry()
	runtime := promclient.NewRegistry()
	runtime.MustRegister(collectors.NewGoCollector())

	out, err := NewExporter(reg, WithGatherer(runtime)).Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	body := string(out)
	if !strings.Contains(body, "# TYPE go_goroutines gauge") {
		t.Fatalf("expected go runtime families:\n%s", body)
	}
	if strings.Index(body, "users_total") > strings.Index(body, "go_goroutines") {
		t.Fatalf("expected registry metrics before gathered families")
	}
}

func TestRenderFailsOnNameCollision(t *testing.T) {
	reg, _, _ := newRegistry()
	other := promclient.NewRegistry()
	other.MustRegister(promclient.NewGauge(promclient.GaugeOpts{Name: "users_total", Help: "Shadow."}))

	_, err := NewExporter(reg, WithGatherer(other)).Render()
	var dup *metrics.DuplicateNameError
	if !errors.As(err, &dup) || dup.Name != "users_total" {
		t.Fatalf("expected duplicate users_total, got %v", err)
	}
}

func TestHandlerReturns500WithErrorDetail(t *testing.T) {
	reg, _, _ := newRegistry()
	failing := promclient.GathererFunc(func() ([]*dto.MetricFamily, error) {
		return nil, errors.New("collector exploded")
	})

	rec := httptest.NewRecorder()
	NewExporter(reg, WithGatherer(failing)).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "collector exploded") {
		t.Fatalf("expected error detail in body, got %q", rec.Body.String())
	}
}

func TestRenderIsStable(t *testing.T) {
	reg, users, requests := newRegistry()
	users.Set(9)
	_ = requests.Inc("POST", "/api/auth/login", "401")
	exp := NewExporter(reg)

	first, err := exp.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, err := exp.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("expected byte-identical renders")
	}
}

func BenchmarkRender(b *testing.B) {
	reg, users, requests := newRegistry()
	users.Set(1000)
	for _, route := range []string{"/api/auth", "/api/auth/login", "/api/auth/users", "/metrics"} {
		_ = requests.Add(100, "GET", route, "200")
	}
	exp := NewExporter(reg)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = exp.Render()
	}
}
