package metrics

import (
	"math"
	"sync/atomic"
)

// Gauge is an unlabeled metric holding a point-in-time value.
type Gauge struct {
	name string
	help string
	bits atomic.Uint64
}

// NewGauge creates an unregistered gauge with value 0.
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Name() string         { return g.name }
func (g *Gauge) Help() string         { return g.help }
func (g *Gauge) Type() Type           { return TypeGauge }
func (g *Gauge) LabelNames() []string { return nil }

// Set replaces the gauge value.
func (g *Gauge) Set(v float64) {
	if g == nil {
		return
	}
	g.bits.Store(math.Float64bits(v))
}

// Value returns the last value set.
func (g *Gauge) Value() float64 {
	if g == nil {
		return 0
	}
	return math.Float64frombits(g.bits.Load())
}

func (g *Gauge) Collect() Family {
	return Family{
		Name:   g.name,
		Help:   g.help,
		Type:   TypeGauge,
		Series: []Series{{Value: g.Value()}},
	}
}
