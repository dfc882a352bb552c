package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/authfront/metrics"
)

var (
	ErrNilMeter    = errors.New("nil meter")
	ErrNilRegistry = errors.New("nil metrics registry")
)

type observedCounter struct {
	source     metrics.Metric
	instrument metric.Int64ObservableCounter
}

type observedGauge struct {
	source     metrics.Metric
	instrument metric.Float64ObservableGauge
}

// OTelExporter keeps the callback registration alive until Close.
type OTelExporter struct {
	registration metric.Registration
	counters     []observedCounter
	gauges       []observedGauge
}

// NewOTelExporter creates observable instruments for every metric currently in
// reg. Metrics registered afterwards are not exported.
func NewOTelExporter(meter metric.Meter, reg *metrics.Registry) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if reg == nil {
		return nil, ErrNilRegistry
	}

	exporter := &OTelExporter{}
	names := reg.Names()
	observables := make([]metric.Observable, 0, len(names))

	for _, name := range names {
		m, ok := reg.Lookup(name)
		if !ok {
			continue
		}
		switch m.Type() {
		case metrics.TypeCounter:
			ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(m.Help()))
			if err != nil {
				return nil, fmt.Errorf("create observable counter %s: %w", name, err)
			}
			exporter.counters = append(exporter.counters, observedCounter{source: m, instrument: ins})
			observables = append(observables, ins)
		case metrics.TypeGauge:
			ins, err := meter.Float64ObservableGauge(name, metric.WithDescription(m.Help()))
			if err != nil {
				return nil, fmt.Errorf("create observable gauge %s: %w", name, err)
			}
			exporter.gauges = append(exporter.gauges, observedGauge{source: m, instrument: ins})
			observables = append(observables, ins)
		}
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		for _, c := range exporter.counters {
			for _, s := range c.source.Collect().Series {
				observer.ObserveInt64(c.instrument, int64(s.Value), metric.WithAttributes(attributes(s.Labels)...))
			}
		}
		for _, g := range exporter.gauges {
			for _, s := range g.source.Collect().Series {
				observer.ObserveFloat64(g.instrument, s.Value, metric.WithAttributes(attributes(s.Labels)...))
			}
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func attributes(labels []metrics.Label) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, len(labels))
	for i, l := range labels {
		out[i] = attribute.String(l.Name, l.Value)
	}
	return out
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
