// Package backpressure adapts ingestion batch size and worker concurrency
// from per-cycle latency and failure-rate signals.
package backpressure

import "errors"

// Action is the controller's decision for the next cycle.
type Action string

const (
	ActionNone          Action = "none"
	ActionShrinkBatch   Action = "shrink_batch"
	ActionShrinkWorkers Action = "shrink_workers"
	ActionRecover       Action = "recover"
)

// Adjustment records a decision with its before/after values.
type Adjustment struct {
	Action      Action
	BatchFrom   int
	BatchTo     int
	WorkersFrom int
	WorkersTo   int
}

// Config bounds the controller. Initial values double as the recovery
// ceiling.
type Config struct {
	InitialBatch   int
	InitialWorkers int
	MinBatch       int
	MinWorkers     int

	P95ThresholdMs    float64
	FailRateThreshold float64
}

// Validate checks controller bounds.
func (c Config) Validate() error {
	if c.MinBatch <= 0 || c.MinWorkers <= 0 {
		return errors.New("backpressure: floors must be positive")
	}
	if c.InitialBatch < c.MinBatch {
		return errors.New("backpressure: initial batch below floor")
	}
	if c.InitialWorkers < c.MinWorkers {
		return errors.New("backpressure: initial workers below floor")
	}
	if c.P95ThresholdMs <= 0 {
		return errors.New("backpressure: p95 threshold must be positive")
	}
	if c.FailRateThreshold < 0 || c.FailRateThreshold > 1 {
		return errors.New("backpressure: fail rate threshold out of range")
	}
	return nil
}

// Controller owns the batch/worker state read by the window runner. It is
// mutated only between cycles, never concurrently with in-flight work.
type Controller struct {
	cfg     Config
	batch   int
	workers int
}

// NewController builds a controller starting at the configured initial
// values.
func NewController(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{cfg: cfg, batch: cfg.InitialBatch, workers: cfg.InitialWorkers}, nil
}

// BatchSize returns the batch size for the next cycle.
func (c *Controller) BatchSize() int { return c.batch }

// WorkerCount returns the worker bound for the next cycle.
func (c *Controller) WorkerCount() int { return c.workers }

// Decide maps observed signals to an adjustment without applying it. Under
// stress the batch shrinks before workers: halving a batch is a cheaper
// mitigation than losing concurrency. Neither axis drops below its floor,
// and only one axis moves per decision.
func (c *Controller) Decide(p95Ms, failRate float64) Adjustment {
	adj := Adjustment{
		Action:      ActionNone,
		BatchFrom:   c.batch,
		BatchTo:     c.batch,
		WorkersFrom: c.workers,
		WorkersTo:   c.workers,
	}

	stressed := p95Ms > c.cfg.P95ThresholdMs || failRate > c.cfg.FailRateThreshold
	if !stressed {
		adj.Action = ActionRecover
		return adj
	}

	if c.batch > c.cfg.MinBatch {
		adj.Action = ActionShrinkBatch
		adj.BatchTo = c.batch / 2
		if adj.BatchTo < c.cfg.MinBatch {
			adj.BatchTo = c.cfg.MinBatch
		}
		return adj
	}
	if c.workers > c.cfg.MinWorkers {
		adj.Action = ActionShrinkWorkers
		adj.WorkersTo = c.workers - 1
		return adj
	}
	return adj
}

// Apply commits a shrink decision to the controller state. Recover is a
// signal only; the caller chooses the ramp via Recover.
func (c *Controller) Apply(adj Adjustment) {
	switch adj.Action {
	case ActionShrinkBatch:
		c.batch = adj.BatchTo
	case ActionShrinkWorkers:
		c.workers = adj.WorkersTo
	}
}

// Recover ramps capacity back up: the batch doubles toward its initial
// value first, then workers return one per cycle. Returns the applied
// adjustment for logging.
func (c *Controller) Recover() Adjustment {
	adj := Adjustment{
		Action:      ActionRecover,
		BatchFrom:   c.batch,
		BatchTo:     c.batch,
		WorkersFrom: c.workers,
		WorkersTo:   c.workers,
	}
	if c.batch < c.cfg.InitialBatch {
		adj.BatchTo = c.batch * 2
		if adj.BatchTo > c.cfg.InitialBatch {
			adj.BatchTo = c.cfg.InitialBatch
		}
		c.batch = adj.BatchTo
		return adj
	}
	if c.workers < c.cfg.InitialWorkers {
		adj.WorkersTo = c.workers + 1
		c.workers = adj.WorkersTo
	}
	return adj
}
