package authfront

import (
	"fmt"
	"strings"
	"time"
)

// Config defines the front end settings.
//
// Config instances are intended to be configured during initialization and then
// treated as immutable.
type Config struct {
	HTTP    HTTPConfig
	Routes  RoutesConfig
	CORS    CORSConfig
	Metrics MetricsConfig
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig controls the listener.
type HTTPConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

/*
====================================
ROUTES CONFIG
====================================
*/

// RoutesConfig names the fixed paths of the front end. Prefixes are mounted as
// subtrees; HealthPath and MetricsPath are exact GET routes.
type RoutesConfig struct {
	HealthPath  string
	MetricsPath string
	AuthPrefix  string
	UsersPrefix string
	// LoginPath is relative to AuthPrefix.
	LoginPath string
}

/*
====================================
CORS CONFIG
====================================
*/

// CORSConfig maps onto rs/cors options.
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// RouteLabelMode selects how the route label of request metrics is derived.
type RouteLabelMode string

const (
	// RouteLabelRaw labels with the original request URI, query included.
	RouteLabelRaw RouteLabelMode = "raw"
	// RouteLabelPath labels with the URL path only.
	RouteLabelPath RouteLabelMode = "path"
)

// MetricsConfig controls sampling and request labelling.
type MetricsConfig struct {
	// UpdateInterval is the users gauge refresh period (UPDATE_INTERVAL_MS).
	UpdateInterval time.Duration
	SampleTimeout  time.Duration
	RouteLabel     RouteLabelMode
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the settings of the original deployment: port 5005,
// CORS open to every origin, users gauge refreshed every 60000 ms.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:              ":5005",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Routes: RoutesConfig{
			HealthPath:  "/api/auth",
			MetricsPath: "/metrics",
			AuthPrefix:  "/api/auth",
			UsersPrefix: "/api/auth/users",
			LoginPath:   "/login",
		},
		CORS: CORSConfig{
			Enabled:        true,
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
			AllowedHeaders: []string{"*"},
		},
		Metrics: MetricsConfig{
			UpdateInterval: 60000 * time.Millisecond,
			SampleTimeout:  10 * time.Second,
			RouteLabel:     RouteLabelRaw,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.CORS.AllowedOrigins = cloneStrings(cfg.CORS.AllowedOrigins)
	out.CORS.AllowedMethods = cloneStrings(cfg.CORS.AllowedMethods)
	out.CORS.AllowedHeaders = cloneStrings(cfg.CORS.AllowedHeaders)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	// HTTP
	if c.HTTP.Addr == "" {
		return invalid("HTTP Addr must be set")
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		return invalid("HTTP ReadHeaderTimeout must be > 0")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return invalid("HTTP ShutdownTimeout must be > 0")
	}

	// Routes
	paths := map[string]string{
		"HealthPath":  c.Routes.HealthPath,
		"MetricsPath": c.Routes.MetricsPath,
		"AuthPrefix":  c.Routes.AuthPrefix,
		"UsersPrefix": c.Routes.UsersPrefix,
	}
	for name, p := range paths {
		if !strings.HasPrefix(p, "/") || p == "/" || strings.HasSuffix(p, "/") {
			return invalid(fmt.Sprintf("Routes %s must start with '/' and must not end with '/'", name))
		}
		if !isLiteralPath(p) {
			return invalid(fmt.Sprintf("Routes %s must be a literal path", name))
		}
	}
	if c.Routes.AuthPrefix == c.Routes.UsersPrefix {
		return invalid("Routes AuthPrefix and UsersPrefix must differ")
	}
	if c.Routes.MetricsPath == c.Routes.HealthPath {
		return invalid("Routes MetricsPath and HealthPath must differ")
	}
	if !strings.HasPrefix(c.Routes.LoginPath, "/") {
		return invalid("Routes LoginPath must start with '/'")
	}

	// CORS
	if c.CORS.Enabled && len(c.CORS.AllowedOrigins) == 0 {
		return invalid("CORS AllowedOrigins must not be empty when CORS is enabled")
	}
	if c.CORS.AllowCredentials {
		for _, o := range c.CORS.AllowedOrigins {
			if o == "*" {
				return invalid("CORS AllowCredentials cannot be combined with origin '*'")
			}
		}
	}

	// Metrics
	if c.Metrics.UpdateInterval <= 0 {
		return invalid("Metrics UpdateInterval must be > 0")
	}
	if c.Metrics.SampleTimeout <= 0 || c.Metrics.SampleTimeout > c.Metrics.UpdateInterval {
		return invalid("Metrics SampleTimeout must be > 0 and <= UpdateInterval")
	}
	switch c.Metrics.RouteLabel {
	case RouteLabelRaw, RouteLabelPath:
		// valid
	default:
		return invalid("Metrics RouteLabel must be 'raw' or 'path'")
	}

	return nil
}

// isLiteralPath reports whether p carries no ServeMux pattern syntax.
func isLiteralPath(p string) bool {
	return !strings.ContainsAny(p, "{} \t")
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
