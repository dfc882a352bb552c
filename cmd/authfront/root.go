package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrEthical07/authfront"
)

const envPrefix = "AUTHFRONT"

type runFunc func(ctx context.Context, opts options, logger log.Logger) error

func newRootCmd() *cobra.Command {
	return newCommand(viper.New(), run)
}

func newCommand(v *viper.Viper, runFn runFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authfront",
		Short:         "HTTP front end for the auth service with Prometheus metrics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), v.GetString("log-format"), v.GetString("log-level"))
			if err != nil {
				return err
			}
			opts, err := loadOptions(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runFn(ctx, opts, logger)
		},
	}

	defaults := authfront.DefaultConfig()
	f := cmd.Flags()
	f.String("addr", defaults.HTTP.Addr, "listen address")
	f.Int("port", 0, "listen port; overrides the port of --addr when set")
	f.Int64("update-interval-ms", defaults.Metrics.UpdateInterval.Milliseconds(), "users gauge refresh interval in milliseconds")
	f.Duration("sample-timeout", defaults.Metrics.SampleTimeout, "timeout of a single user count query")
	f.String("route-label", string(defaults.Metrics.RouteLabel), "route label of request metrics: raw or path")
	f.StringSlice("cors-origins", defaults.CORS.AllowedOrigins, "allowed CORS origins")
	f.Bool("cors-credentials", false, "allow credentialed CORS requests")
	f.String("auth-upstream", "", "base URL of the upstream auth service")
	f.String("redis-addr", "", "redis address of the user store")
	f.String("redis-users-key", "users", "redis set holding one member per user")
	f.String("redis-users-pattern", "", "count redis keys matching this pattern instead of a set")
	f.String("postgres-dsn", "", "postgres DSN of the user store")
	f.String("postgres-table", "users", "postgres table holding users")
	f.Bool("dev", false, "use an in-process redis seeded with demo users")
	f.Bool("runtime-metrics", true, "expose Go runtime and process metrics")
	f.String("log-format", "logfmt", "log format: logfmt or json")
	f.String("log-level", "info", "log level: debug, info, warn or error")

	_ = v.BindPFlags(f)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("update-interval-ms", envPrefix+"_UPDATE_INTERVAL_MS", "UPDATE_INTERVAL_MS")
	_ = v.BindEnv("port", envPrefix+"_PORT", "PORT")

	return cmd
}

type options struct {
	config         authfront.Config
	authUpstream   string
	redisAddr      string
	redisKey       string
	redisPattern   string
	postgresDSN    string
	postgresTable  string
	dev            bool
	runtimeMetrics bool
}

func loadOptions(v *viper.Viper) (options, error) {
	cfg := authfront.DefaultConfig()

	cfg.HTTP.Addr = v.GetString("addr")
	if port := v.GetInt("port"); port > 0 {
		host := cfg.HTTP.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		cfg.HTTP.Addr = fmt.Sprintf("%s:%d", host, port)
	}

	interval := time.Duration(v.GetInt64("update-interval-ms")) * time.Millisecond
	cfg.Metrics.UpdateInterval = interval
	cfg.Metrics.SampleTimeout = v.GetDuration("sample-timeout")
	if !v.IsSet("sample-timeout") && interval > 0 {
		cfg.Metrics.SampleTimeout = min(cfg.Metrics.SampleTimeout, interval)
	}
	cfg.Metrics.RouteLabel = authfront.RouteLabelMode(v.GetString("route-label"))

	cfg.CORS.AllowedOrigins = v.GetStringSlice("cors-origins")
	cfg.CORS.AllowCredentials = v.GetBool("cors-credentials")

	if err := cfg.Validate(); err != nil {
		return options{}, err
	}

	opts := options{
		config:         cfg,
		authUpstream:   v.GetString("auth-upstream"),
		redisAddr:      v.GetString("redis-addr"),
		redisKey:       v.GetString("redis-users-key"),
		redisPattern:   v.GetString("redis-users-pattern"),
		postgresDSN:    v.GetString("postgres-dsn"),
		postgresTable:  v.GetString("postgres-table"),
		dev:            v.GetBool("dev"),
		runtimeMetrics: v.GetBool("runtime-metrics"),
	}

	sources := 0
	for _, set := range []bool{opts.dev, opts.redisAddr != "", opts.postgresDSN != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return options{}, errors.New("choose at most one of --dev, --redis-addr and --postgres-dsn")
	}
	return opts, nil
}

func run(ctx context.Context, opts options, logger log.Logger) error {
	source, closeSource, err := openCountSource(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	b := authfront.New().
		WithConfig(opts.config).
		WithLogger(logger)
	if source != nil {
		b = b.WithCountSource(source)
	}

	if opts.runtimeMetrics {
		runtime := promclient.NewRegistry()
		runtime.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		b = b.WithGatherer(runtime)
	}

	if opts.authUpstream != "" {
		proxy, err := newUpstreamProxy(opts.authUpstream, logger)
		if err != nil {
			return err
		}
		b = b.WithAuthRoutes(proxy).WithUsersRoutes(proxy)
	} else {
		level.Warn(logger).Log("msg", "no auth upstream configured; auth routes answer 404")
	}

	srv, err := b.Build()
	if err != nil {
		return err
	}
	level.Info(logger).Log(
		"msg", "starting authfront",
		"addr", opts.config.HTTP.Addr,
		"update_interval", opts.config.Metrics.UpdateInterval,
	)
	return srv.ListenAndServe(ctx)
}

func newLogger(w io.Writer, format, lvl string) (log.Logger, error) {
	var logger log.Logger
	switch format {
	case "logfmt":
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	case "json":
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	var opt level.Option
	switch lvl {
	case "debug":
		opt = level.AllowDebug()
	case "info":
		opt = level.AllowInfo()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		return nil, fmt.Errorf("unknown log level %q", lvl)
	}

	logger = level.NewFilter(logger, opt)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller), nil
}
