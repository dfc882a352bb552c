package middleware

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/authfront/metrics"
)

// LoginsName is the counter incremented by [CountLogins].
const LoginsName = "auth_logins_total"

// NewLoginCounter creates the login counter and registers it with reg.
func NewLoginCounter(reg *metrics.Registry) (*metrics.Counter, error) {
	c := metrics.NewCounter(LoginsName, "Number of login requests")
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// CountLogins increments c for every POST to path before handing the request
// on. The count is taken on arrival, independent of the login outcome.
func CountLogins(c *metrics.Counter, path string) func(http.Handler) http.Handler {
	path = strings.TrimSuffix(path, "/")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && strings.TrimSuffix(r.URL.Path, "/") == path {
				c.Inc()
			}
			next.ServeHTTP(w, r)
		})
	}
}
