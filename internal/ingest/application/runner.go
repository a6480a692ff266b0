package application

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pumpline-historian/internal/backpressure"
	ingest "pumpline-historian/internal/ingest/domain"
	"pumpline-historian/internal/observability/metrics"
	"pumpline-historian/internal/window"
)

// RunResult is the outcome of one ingestion pass.
type RunResult struct {
	Reports       []ingest.WindowReport
	Adjustments   []backpressure.Adjustment
	FailedWindows int
}

// Runner drives the engine window by window, feeding window outcomes to the
// backpressure controller and applying its decisions between windows.
type Runner struct {
	engine     *Engine
	controller *backpressure.Controller
	observer   *backpressure.Observer
	logger     zerolog.Logger
}

// NewRunner constructs a runner.
func NewRunner(engine *Engine, controller *backpressure.Controller, logger zerolog.Logger) (*Runner, error) {
	if engine == nil {
		return nil, errors.New("runner: nil engine")
	}
	if controller == nil {
		return nil, errors.New("runner: nil controller")
	}
	return &Runner{
		engine:     engine,
		controller: controller,
		observer:   backpressure.NewObserver(),
		logger:     logger,
	}, nil
}

// Run processes [start, end) in span-sized windows. A failed window is
// reported and skipped, never stopping the pass; idempotent writes keep it
// eligible for an external retry. Only context cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, start, end time.Time, span time.Duration) (RunResult, error) {
	it, err := window.NewIterator(start, end, span)
	if err != nil {
		return RunResult{}, err
	}

	var result RunResult
	for {
		w, ok := it.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batchSize := r.controller.BatchSize()
		workers := r.controller.WorkerCount()

		report, procErr := r.engine.ProcessWindow(ctx, w, batchSize, workers)
		result.Reports = append(result.Reports, report)
		r.recordWindow(report, procErr)
		if procErr != nil {
			result.FailedWindows++
			if errors.Is(procErr, context.Canceled) || errors.Is(procErr, context.DeadlineExceeded) {
				return result, procErr
			}
		}

		adj := r.adjust()
		result.Adjustments = append(result.Adjustments, adj)
	}
	return result, nil
}

func (r *Runner) recordWindow(report ingest.WindowReport, procErr error) {
	for _, latency := range report.UpsertLatencies {
		r.observer.RecordLatency(latency)
		metrics.ObserveUpsert(latency)
	}
	r.observer.RecordWindow(procErr != nil)

	result := metrics.ResultSuccess
	if procErr != nil {
		result = metrics.ResultError
	}
	metrics.ObserveWindow(result, report.Elapsed)
	metrics.AddRowsWritten(report.Written)
	metrics.AddRowsDropped(metrics.DropReasonMissingValue, report.MissingValue)
	metrics.AddRowsDropped(metrics.DropReasonUnresolved, report.Unresolved)
	metrics.AddRowsDropped(metrics.DropReasonUnparseable, report.Unparseable)
	metrics.AddRowsDropped(metrics.DropReasonOutOfWindow, report.OutOfWindow)
	metrics.AddRowsDropped(metrics.DropReasonDuplicate, report.Deduplicated)

	event := r.logger.Info()
	if procErr != nil {
		event = r.logger.Error().Err(procErr)
	}
	event.
		Time("window_start", report.Window.Start).
		Time("window_end", report.Window.End).
		Int("considered", report.Considered).
		Int("written", report.Written).
		Int("missing_value", report.MissingValue).
		Int("unresolved", report.Unresolved).
		Int("unparseable", report.Unparseable).
		Int("out_of_window", report.OutOfWindow).
		Int("deduplicated", report.Deduplicated).
		Dur("elapsed", report.Elapsed).
		Msg("window processed")
}

// adjust snapshots the cycle's signals and applies one controller decision.
// BackpressureState only ever moves here, between windows, never while a
// window is in flight.
func (r *Runner) adjust() backpressure.Adjustment {
	stats := r.observer.Snapshot()
	adj := r.controller.Decide(stats.P95Ms, stats.FailureRate)
	if adj.Action == backpressure.ActionRecover {
		adj = r.controller.Recover()
	} else {
		r.controller.Apply(adj)
	}

	metrics.ObserveAdjustment(string(adj.Action), r.controller.BatchSize(), r.controller.WorkerCount())
	r.logger.Info().
		Str("action", string(adj.Action)).
		Float64("p95_ms", stats.P95Ms).
		Float64("fail_rate", stats.FailureRate).
		Int("batch_from", adj.BatchFrom).
		Int("batch_to", adj.BatchTo).
		Int("workers_from", adj.WorkersFrom).
		Int("workers_to", adj.WorkersTo).
		Msg("backpressure adjustment")
	return adj
}
