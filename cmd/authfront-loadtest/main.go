// Command authfront-loadtest drives an in-process authfront server with
// concurrent requests and checks the scraped counters against what was sent.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kit/log"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authfront"
	"github.com/MrEthical07/authfront/middleware"
	"github.com/MrEthical07/authfront/userstore"
)

type target struct {
	method string
	path   string
	login  bool
}

var targets = []target{
	{method: http.MethodGet, path: "/api/auth"},
	{method: http.MethodPost, path: "/api/auth/login", login: true},
	{method: http.MethodGet, path: "/api/auth/users/%d"},
	{method: http.MethodGet, path: "/missing/%d"},
}

func main() {
	var (
		users       = flag.Int("users", 10000, "number of users to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "requests to send")
		routes      = flag.Int("routes", 50, "distinct user routes to spread requests over")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *routes <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, ops, and routes must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	const key = "loadtest:users"
	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	if err := seedUsers(ctx, client, key, *users); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	source, err := userstore.NewRedisSetCounter(client, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "count source: %v\n", err)
		os.Exit(1)
	}

	upstream := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	srv, err := authfront.New().
		WithLogger(log.NewNopLogger()).
		WithCountSource(source).
		WithAuthRoutes(upstream).
		WithUsersRoutes(upstream).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build: %v\n", err)
		os.Exit(1)
	}
	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "start: %v\n", err)
		os.Exit(1)
	}
	defer srv.Close()

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	httpClient := &http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: *concurrency}}
	res := runRequests(ctx, httpClient, ts.URL, *ops, *concurrency, *routes)

	families, err := scrape(httpClient, ts.URL+"/metrics")
	if err != nil {
		fmt.Fprintf(os.Stderr, "scrape failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("---- results ----")
	fmt.Println(res.summary())

	// Requests that never produced a response may not have reached the server,
	// so the counters are checked against delivered responses only.
	checks := []scrapeCheck{
		{name: "http_requests_overall_total", scraped: counterValue(families, "http_requests_overall_total"), want: res.delivered},
		{name: "http_requests_total (sum)", scraped: counterValue(families, "http_requests_total"), want: res.delivered},
		{name: "auth_logins_total", scraped: counterValue(families, "auth_logins_total"), want: res.logins},
		{name: authfront.UsersGaugeName, scraped: gaugeValue(families, authfront.UsersGaugeName), want: int64(*users)},
	}
	failed := 0
	for _, c := range checks {
		fmt.Println(c)
		if !c.ok() {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d metric checks failed\n", failed, len(checks))
		os.Exit(1)
	}
}

func seedUsers(ctx context.Context, client redis.UniversalClient, key string, n int) error {
	const batch = 1000
	members := make([]any, 0, batch)
	for i := 0; i < n; i++ {
		members = append(members, fmt.Sprintf("user-%d", i))
		if len(members) == batch || i == n-1 {
			if err := client.SAdd(ctx, key, members...).Err(); err != nil {
				return err
			}
			members = members[:0]
		}
	}
	return nil
}

// runResult describes one request run as seen by the client.
type runResult struct {
	elapsed         time.Duration
	sent            int64
	delivered       int64
	transportErrors int64
	serverErrors    int64
	logins          int64
	latencies       []time.Duration
}

func runRequests(ctx context.Context, client *http.Client, baseURL string, ops, concurrency, routes int) runResult {
	var (
		wg     sync.WaitGroup
		cursor atomic.Int64
		res    = runResult{latencies: make([]time.Duration, 0, ops)}
		mu     sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := runResult{}
			for cursor.Add(1) <= int64(ops) {
				tg := targets[r.Intn(len(targets))]
				path := tg.path
				if strings.Contains(path, "%d") {
					path = fmt.Sprintf(path, r.Intn(routes))
				}

				t0 := time.Now()
				status, err := send(ctx, client, tg.method, baseURL+path)
				local.latencies = append(local.latencies, time.Since(t0))
				local.sent++
				if err != nil {
					local.transportErrors++
					continue
				}
				local.delivered++
				if status >= http.StatusInternalServerError {
					local.serverErrors++
				}
				if tg.login {
					local.logins++
				}
			}

			mu.Lock()
			res.merge(local)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	res.elapsed = time.Since(start)
	slices.Sort(res.latencies)
	return res
}

func (r *runResult) merge(o runResult) {
	r.sent += o.sent
	r.delivered += o.delivered
	r.transportErrors += o.transportErrors
	r.serverErrors += o.serverErrors
	r.logins += o.logins
	r.latencies = append(r.latencies, o.latencies...)
}

// latencyAt returns the latency below which a fraction q of the sorted
// samples fall.
func (r runResult) latencyAt(q float64) time.Duration {
	if len(r.latencies) == 0 {
		return 0
	}
	idx := int(q * float64(len(r.latencies)-1))
	return r.latencies[min(max(idx, 0), len(r.latencies)-1)]
}

func (r runResult) summary() string {
	var rate float64
	if r.elapsed > 0 {
		rate = float64(r.sent) / r.elapsed.Seconds()
	}
	return fmt.Sprintf("sent=%d delivered=%d transport_errors=%d 5xx=%d elapsed=%s req/s=%.0f p50=%s p95=%s p99=%s",
		r.sent, r.delivered, r.transportErrors, r.serverErrors,
		r.elapsed.Round(time.Millisecond), rate,
		r.latencyAt(0.50).Round(time.Microsecond),
		r.latencyAt(0.95).Round(time.Microsecond),
		r.latencyAt(0.99).Round(time.Microsecond),
	)
}

// send returns the response status, or an error when no response arrived.
func send(ctx context.Context, client *http.Client, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func scrape(client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape status %d", resp.StatusCode)
	}
	var parser expfmt.TextParser
	return parser.TextToMetricFamilies(resp.Body)
}

func counterValue(families map[string]*dto.MetricFamily, name string) float64 {
	mf, ok := families[name]
	if !ok {
		return -1
	}
	var sum float64
	for _, m := range mf.GetMetric() {
		sum += m.GetCounter().GetValue()
	}
	return sum
}

func gaugeValue(families map[string]*dto.MetricFamily, name string) float64 {
	mf, ok := families[name]
	if !ok || len(mf.GetMetric()) == 0 {
		return -1
	}
	return mf.GetMetric()[0].GetGauge().GetValue()
}


type scrapeCheck struct {
	name    string
	scraped float64
	want    int64
}

func (c scrapeCheck) ok() bool { return c.scraped == float64(c.want) }

func (c scrapeCheck) String() string {
	if c.ok() {
		return fmt.Sprintf("ok %s=%.0f", c.name, c.scraped)
	}
	return fmt.Sprintf("MISMATCH %s: scraped=%.0f expected=%d", c.name, c.scraped, c.want)
}
