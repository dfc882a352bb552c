package prometheus

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	promclient "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/MrEthical07/authfront/metrics"
)

// Exporter renders a registry, plus any merged gatherers, as exposition text.
type Exporter struct {
	registry  *metrics.Registry
	gatherers []promclient.Gatherer
	logger    log.Logger
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithGatherer appends families from g after the registry output. A family
// whose name is already taken makes rendering fail.
func WithGatherer(g promclient.Gatherer) Option {
	return func(e *Exporter) {
		if g != nil {
			e.gatherers = append(e.gatherers, g)
		}
	}
}

// WithLogger sets the logger used to report render failures.
func WithLogger(l log.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExporter creates an exporter reading from reg.
func NewExporter(reg *metrics.Registry, opts ...Option) *Exporter {
	e := &Exporter{registry: reg, logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handler returns an http.Handler that serves the current metrics. Render
// failures produce a 500 response carrying the error text.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body, err := e.Render()
		if err != nil {
			level.Error(e.logger).Log("msg", "metrics render failed", "err", err)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, err.Error())
			return
		}
		w.Header().Set("Content-Type", metrics.ContentType)
		_, _ = w.Write(body)
	})
}

// Render returns the full exposition body.
func (e *Exporter) Render() ([]byte, error) {
	if e == nil || e.registry == nil {
		return nil, nil
	}

	var b bytes.Buffer
	b.Grow(4096)
	if _, err := e.registry.WriteTo(&b); err != nil {
		return nil, fmt.Errorf("render registry: %w", err)
	}
	if len(e.gatherers) == 0 {
		return b.Bytes(), nil
	}

	owned := make(map[string]struct{})
	for _, name := range e.registry.Names() {
		owned[name] = struct{}{}
	}
	for _, g := range e.gatherers {
		families, err := g.Gather()
		if err != nil {
			return nil, fmt.Errorf("gather: %w", err)
		}
		if err := writeFamilies(&b, families, owned); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

func writeFamilies(w io.Writer, families []*dto.MetricFamily, owned map[string]struct{}) error {
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		name := mf.GetName()
		if _, dup := owned[name]; dup {
			return &metrics.DuplicateNameError{Name: name}
		}
		owned[name] = struct{}{}
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
	}
	return nil
}
