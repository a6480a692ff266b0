package backpressure

import (
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// Default relative accuracy for the latency sketch.
const defaultSketchAccuracy = 0.01

// CycleStats summarizes one cycle's observed signals.
type CycleStats struct {
	P95Ms       float64
	FailureRate float64
	Samples     int
	Windows     int
	Failures    int
}

// Observer accumulates upsert latencies and window outcomes for one cycle.
// Latency quantiles come from a DDSketch rather than a sorted sample set,
// so memory stays bounded regardless of sub-batch count.
type Observer struct {
	accuracy float64
	sketch   *ddsketch.DDSketch
	samples  int
	windows  int
	failures int
}

// NewObserver builds an observer with the default sketch accuracy.
func NewObserver() *Observer {
	o := &Observer{accuracy: defaultSketchAccuracy}
	o.reset()
	return o
}

func (o *Observer) reset() {
	sketch, err := ddsketch.NewDefaultDDSketch(o.accuracy)
	if err == nil {
		o.sketch = sketch
	}
	o.samples = 0
	o.windows = 0
	o.failures = 0
}

// RecordLatency adds one upsert sub-batch latency sample.
func (o *Observer) RecordLatency(d time.Duration) {
	if o.sketch == nil {
		return
	}
	if err := o.sketch.Add(float64(d) / float64(time.Millisecond)); err == nil {
		o.samples++
	}
}

// RecordWindow adds one window outcome to the failure-rate signal.
func (o *Observer) RecordWindow(failed bool) {
	o.windows++
	if failed {
		o.failures++
	}
}

// Snapshot returns the cycle's stats and resets the observer for the next
// cycle.
func (o *Observer) Snapshot() CycleStats {
	stats := CycleStats{
		Samples:  o.samples,
		Windows:  o.windows,
		Failures: o.failures,
	}
	if o.sketch != nil && o.samples > 0 {
		if p95, err := o.sketch.GetValueAtQuantile(0.95); err == nil {
			stats.P95Ms = p95
		}
	}
	if o.windows > 0 {
		stats.FailureRate = float64(o.failures) / float64(o.windows)
	}
	o.reset()
	return stats
}
