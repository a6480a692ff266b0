package masterdata

import "errors"

// MetricDefinition describes a telemetry metric carried by readings.
type MetricDefinition struct {
	ID          int64
	Key         string
	Unit        string
	DisplayUnit string
	// Min/Max bound plausible values when set. Nil means unconstrained.
	Min *float64
	Max *float64
}

// Validate checks metric invariants.
func (m MetricDefinition) Validate() error {
	if m.ID <= 0 {
		return errors.New("metric: invalid id")
	}
	if m.Key == "" {
		return errors.New("metric: empty key")
	}
	if m.Unit == "" {
		return errors.New("metric: empty unit")
	}
	if m.Min != nil && m.Max != nil && *m.Min > *m.Max {
		return errors.New("metric: min exceeds max")
	}
	return nil
}

// InRange reports whether v satisfies the metric's value constraints.
func (m MetricDefinition) InRange(v float64) bool {
	if m.Min != nil && v < *m.Min {
		return false
	}
	if m.Max != nil && v > *m.Max {
		return false
	}
	return true
}
