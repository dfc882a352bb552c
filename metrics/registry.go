package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// ContentType is the media type of the text exposition format produced by
// [Registry.Render].
const ContentType = string(expfmt.FmtText)

// Registry owns every metric of a process. It is constructed explicitly and
// shared by reference; there is no default instance.
//
// Registry methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	metrics []Metric
	byName  map[string]Metric
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Metric)}
}

// Register adds m under its name. It returns a *DuplicateNameError if the name
// is already taken and ErrInvalidName or ErrInvalidLabel if m does not carry
// valid exposition names.
func (r *Registry) Register(m Metric) error {
	if m == nil {
		return ErrNilMetric
	}
	name := m.Name()
	if !model.IsValidMetricName(model.LabelValue(name)) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := validateLabelNames(m.LabelNames()); err != nil {
		return fmt.Errorf("metric %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return &DuplicateNameError{Name: name}
	}
	r.byName[name] = m
	r.metrics = append(r.metrics, m)
	return nil
}

// MustRegister registers every metric and panics on the first failure.
// Intended for process initialization, where a duplicate is a programming error.
func (r *Registry) MustRegister(ms ...Metric) {
	for _, m := range ms {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the metric registered under name.
func (r *Registry) Lookup(name string) (Metric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// Names returns registered metric names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.metrics))
	for i, m := range r.metrics {
		out[i] = m.Name()
	}
	return out
}

// Gather returns a snapshot of every registered metric in registration order.
func (r *Registry) Gather() []Family {
	ms := r.snapshot()
	out := make([]Family, len(ms))
	for i, m := range ms {
		out[i] = m.Collect()
	}
	return out
}

func (r *Registry) snapshot() []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metric, len(r.metrics))
	copy(out, r.metrics)
	return out
}

func validateLabelNames(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if !model.LabelName(n).IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidLabel, n)
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("%w: %q repeated", ErrInvalidLabel, n)
		}
		seen[n] = struct{}{}
	}
	return nil
}
