package main

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/MrEthical07/authfront/middleware"
)

// newUpstreamProxy forwards requests to the auth service, keeping their path.
func newUpstreamProxy(rawURL string, logger log.Logger) (http.Handler, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse auth upstream: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("auth upstream %q must be an absolute URL", rawURL)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if id, ok := middleware.RequestIDFromContext(pr.In.Context()); ok {
				pr.Out.Header.Set(middleware.RequestIDHeader, id)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			level.Error(logger).Log("msg", "auth upstream failed", "uri", r.RequestURI, "err", err)
			middleware.WriteJSON(w, http.StatusBadGateway, map[string]string{
				"message": "Auth service unavailable",
			})
		},
	}
	return proxy, nil
}
