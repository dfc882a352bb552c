package metrics

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidName is returned when a metric name is not a valid exposition name.
	ErrInvalidName = errors.New("invalid metric name")
	// ErrInvalidLabel is returned when a label name is invalid or repeated.
	ErrInvalidLabel = errors.New("invalid label name")
	// ErrLabelCardinality is returned when the number of label values does not
	// match the label names of a CounterVec.
	ErrLabelCardinality = errors.New("label value count mismatch")
	// ErrNilMetric is returned when registering a nil metric.
	ErrNilMetric = errors.New("nil metric")
)

// DuplicateNameError reports an attempt to register a second metric under a
// name that already exists.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("metric %q already registered", e.Name)
}
