package metrics

import (
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"
)

const cacheLineSize = 64

type paddedCounter struct {
	value atomic.Uint64
	_     [cacheLineSize - 8]byte
}

// Counter is a monotonically non-decreasing unlabeled metric.
//
// Counter methods are safe for concurrent use.
type Counter struct {
	name string
	help string
	slot paddedCounter
}

// NewCounter creates an unregistered counter.
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Name() string         { return c.name }
func (c *Counter) Help() string         { return c.help }
func (c *Counter) Type() Type           { return TypeCounter }
func (c *Counter) LabelNames() []string { return nil }

// Inc adds one to the counter.
func (c *Counter) Inc() {
	if c == nil {
		return
	}
	c.slot.value.Add(1)
}

// Add adds n to the counter.
func (c *Counter) Add(n uint64) {
	if c == nil {
		return
	}
	c.slot.value.Add(n)
}

// Value returns the current count.
func (c *Counter) Value() uint64 {
	if c == nil {
		return 0
	}
	return c.slot.value.Load()
}

func (c *Counter) Collect() Family {
	return Family{
		Name:   c.name,
		Help:   c.help,
		Type:   TypeCounter,
		Series: []Series{{Value: float64(c.Value())}},
	}
}

// labelSep cannot occur in valid UTF-8, and label values are made valid
// before they are joined into a series key.
const labelSep = "\xff"

// seriesKey replaces invalid UTF-8 in values and returns the sanitized
// values with their joined key. The returned slice aliases values when no
// replacement was needed.
func seriesKey(values []string) ([]string, string) {
	clean := values
	copied := false
	for i, v := range values {
		if utf8.ValidString(v) {
			continue
		}
		if !copied {
			clean = make([]string, len(values))
			copy(clean, values)
			copied = true
		}
		clean[i] = strings.ToValidUTF8(v, "\uFFFD")
	}
	return clean, strings.Join(clean, labelSep)
}

// CounterVec is a counter partitioned by an ordered label schema. Each distinct
// label tuple is a separate series whose value never decreases.
type CounterVec struct {
	name       string
	help       string
	labelNames []string

	mu     sync.RWMutex
	series map[string]*counterSeries
	order  []*counterSeries
}

type counterSeries struct {
	values  []string
	counter Counter
}

// NewCounterVec creates an unregistered labeled counter.
func NewCounterVec(name, help string, labelNames ...string) *CounterVec {
	names := make([]string, len(labelNames))
	copy(names, labelNames)
	return &CounterVec{
		name:       name,
		help:       help,
		labelNames: names,
		series:     make(map[string]*counterSeries),
	}
}

func (v *CounterVec) Name() string { return v.name }
func (v *CounterVec) Help() string { return v.help }
func (v *CounterVec) Type() Type   { return TypeCounter }

func (v *CounterVec) LabelNames() []string {
	out := make([]string, len(v.labelNames))
	copy(out, v.labelNames)
	return out
}

// WithLabelValues returns the counter of the series identified by values,
// creating the series on first use. The returned counter is owned by v and is
// not registered on its own.
func (v *CounterVec) WithLabelValues(values ...string) (*Counter, error) {
	s, err := v.get(values)
	if err != nil {
		return nil, err
	}
	return &s.counter, nil
}

// Inc increments the series identified by values.
func (v *CounterVec) Inc(values ...string) error {
	s, err := v.get(values)
	if err != nil {
		return err
	}
	s.counter.slot.value.Add(1)
	return nil
}

// Add adds n to the series identified by values.
func (v *CounterVec) Add(n uint64, values ...string) error {
	s, err := v.get(values)
	if err != nil {
		return err
	}
	s.counter.slot.value.Add(n)
	return nil
}

// Value returns the count of the series identified by values, zero when the
// series has never been incremented.
func (v *CounterVec) Value(values ...string) uint64 {
	if len(values) != len(v.labelNames) {
		return 0
	}
	_, key := seriesKey(values)
	v.mu.RLock()
	s, ok := v.series[key]
	v.mu.RUnlock()
	if !ok {
		return 0
	}
	return s.counter.slot.value.Load()
}

// Len returns the number of distinct label tuples seen so far.
func (v *CounterVec) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.order)
}

func (v *CounterVec) get(values []string) (*counterSeries, error) {
	if len(values) != len(v.labelNames) {
		return nil, ErrLabelCardinality
	}
	clean, key := seriesKey(values)

	v.mu.RLock()
	s, ok := v.series[key]
	v.mu.RUnlock()
	if ok {
		return s, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok = v.series[key]; ok {
		return s, nil
	}
	vals := make([]string, len(clean))
	copy(vals, clean)
	s = &counterSeries{values: vals, counter: Counter{name: v.name, help: v.help}}
	v.series[key] = s
	v.order = append(v.order, s)
	return s, nil
}

func (v *CounterVec) Collect() Family {
	v.mu.RLock()
	order := make([]*counterSeries, len(v.order))
	copy(order, v.order)
	v.mu.RUnlock()

	f := Family{
		Name:   v.name,
		Help:   v.help,
		Type:   TypeCounter,
		Series: make([]Series, 0, len(order)),
	}
	for _, s := range order {
		labels := make([]Label, len(v.labelNames))
		for i, name := range v.labelNames {
			labels[i] = Label{Name: name, Value: s.values[i]}
		}
		f.Series = append(f.Series, Series{
			Labels: labels,
			Value:  float64(s.counter.slot.value.Load()),
		})
	}
	return f
}
