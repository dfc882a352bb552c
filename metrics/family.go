package metrics

// Type is the exposition type of a metric family.
type Type string

const (
	TypeCounter Type = "counter"
	TypeGauge   Type = "gauge"
)

// Label is one name/value pair of a series.
type Label struct {
	Name  string
	Value string
}

// Series is a single sample of a family.
type Series struct {
	Labels []Label
	Value  float64
}

// Family is a point-in-time copy of one registered metric.
//
// Family values are detached from the registry and safe to retain.
type Family struct {
	Name   string
	Help   string
	Type   Type
	Series []Series
}

// Metric is implemented by every type the registry can hold.
type Metric interface {
	Name() string
	Help() string
	Type() Type
	// LabelNames returns the ordered label schema, nil for unlabeled metrics.
	LabelNames() []string
	// Collect returns the current family snapshot.
	Collect() Family
}
