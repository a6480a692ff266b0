package application

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	ingest "pumpline-historian/internal/ingest/domain"
	masterdata "pumpline-historian/internal/masterdata/domain"
	"pumpline-historian/internal/window"
)

// Engine turns one window's raw readings into idempotent fact store writes.
type Engine struct {
	resolver masterdata.Resolver
	source   ingest.Source
	repo     ingest.FactRepository
}

// NewEngine constructs an engine.
func NewEngine(resolver masterdata.Resolver, source ingest.Source, repo ingest.FactRepository) (*Engine, error) {
	if resolver == nil {
		return nil, errors.New("engine: nil resolver")
	}
	if source == nil {
		return nil, errors.New("engine: nil source")
	}
	if repo == nil {
		return nil, errors.New("engine: nil repository")
	}
	return &Engine{resolver: resolver, source: source, repo: repo}, nil
}

type parseOutcome struct {
	reading     ingest.ParsedReading
	ok          bool
	unresolved  bool
	unparseable bool
}

// ProcessWindow runs the merge pipeline for one window: page raw readings,
// resolve and normalize in parallel, reduce single-threaded, filter to the
// window, upsert in sub-batches. Per-record failures are counted and never
// abort the window; a storage failure fails the whole window, which stays
// retryable because the upserts are idempotent.
func (e *Engine) ProcessWindow(ctx context.Context, w window.Window, batchSize, workers int) (report ingest.WindowReport, err error) {
	report = ingest.WindowReport{Window: w}
	started := time.Now()
	defer func() {
		report.Elapsed = time.Since(started)
	}()

	if batchSize <= 0 {
		batchSize = 1
	}
	if workers <= 0 {
		workers = 1
	}

	var parsed []ingest.ParsedReading
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			report.Failed = true
			return report, err
		}
		page, scanned, err := e.source.Fetch(ctx, batchSize, offset)
		if err != nil {
			report.Failed = true
			return report, &ingest.WindowWriteError{Window: w, Err: err}
		}
		if scanned == 0 {
			break
		}
		report.Considered += scanned
		report.MissingValue += scanned - len(page)

		outcomes := e.parsePage(ctx, page, workers)
		for _, outcome := range outcomes {
			switch {
			case outcome.ok:
				parsed = append(parsed, outcome.reading)
			case outcome.unresolved:
				report.Unresolved++
			case outcome.unparseable:
				report.Unparseable++
			}
		}

		// Offset and termination track rows scanned, not rows returned,
		// so a page thinned by unusable rows never ends the pass early.
		offset += scanned
		if scanned < batchSize {
			break
		}
	}

	// The reduce needs full visibility of every reading destined for the
	// same bucket within this window's batch, so it stays single-threaded.
	deduped := ingest.Dedup(parsed)
	report.Deduplicated = len(parsed) - len(deduped)

	inWindow := ingest.FilterWindow(deduped, w)
	report.OutOfWindow = len(deduped) - len(inWindow)

	for start := 0; start < len(inWindow); start += batchSize {
		if err := ctx.Err(); err != nil {
			report.Failed = true
			return report, err
		}
		end := start + batchSize
		if end > len(inWindow) {
			end = len(inWindow)
		}
		chunk := inWindow[start:end]
		measurements := make([]ingest.Measurement, 0, len(chunk))
		for _, reading := range chunk {
			measurements = append(measurements, reading.Measurement())
		}

		began := time.Now()
		err := e.repo.UpsertMeasurements(ctx, measurements)
		report.UpsertLatencies = append(report.UpsertLatencies, time.Since(began))
		if err != nil {
			report.Failed = true
			return report, &ingest.WindowWriteError{Window: w, Err: err}
		}
		report.Written += len(chunk)
	}

	return report, nil
}

// parsePage resolves dimensions and normalizes timestamps for one page.
// Records are independent, so the work fans out across the worker bound;
// outcomes land at their input index to keep ordering deterministic.
func (e *Engine) parsePage(ctx context.Context, page []ingest.RawReading, workers int) []parseOutcome {
	outcomes := make([]parseOutcome, len(page))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range page {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return nil
			}
			outcomes[i] = e.parseOne(page[i])
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (e *Engine) parseOne(raw ingest.RawReading) parseOutcome {
	resolution, err := e.resolver.Resolve(raw.StationName, raw.DeviceName, raw.MetricKey)
	if err != nil {
		return parseOutcome{unresolved: true}
	}
	ts, err := ingest.NormalizeTimestamp(raw.Timestamp, resolution.Location)
	if err != nil {
		return parseOutcome{unparseable: true}
	}
	return parseOutcome{
		ok: true,
		reading: ingest.ParsedReading{
			StationID:  resolution.StationID,
			DeviceID:   resolution.DeviceID,
			MetricID:   resolution.MetricID,
			TS:         ts,
			Value:      raw.Value,
			SourceHint: raw.SourceHint,
		},
	}
}
