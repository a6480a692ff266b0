package ingest

import (
	"time"

	"pumpline-historian/internal/window"
)

// WindowReport carries per-window outcome counts. Every processed window
// produces one, success or failure: counts are never silently discarded.
type WindowReport struct {
	Window window.Window

	// Considered is the number of staging rows scanned for the window,
	// including rows the source could not turn into a reading.
	Considered int
	// MissingValue counts staging rows dropped for lacking a value.
	MissingValue int
	// Unresolved counts readings dropped by dimension resolution.
	Unresolved int
	// Unparseable counts readings dropped by timestamp normalization.
	Unparseable int
	// OutOfWindow counts deduplicated buckets outside the window bounds.
	OutOfWindow int
	// Deduplicated counts readings collapsed into an already-won bucket.
	Deduplicated int
	// Written is the number of rows upserted into the fact store.
	Written int

	// UpsertLatencies holds one sample per upsert sub-batch, feeding the
	// backpressure observer.
	UpsertLatencies []time.Duration

	Elapsed time.Duration
	Failed  bool
}

// Dropped returns the total records excluded before the upsert.
func (r WindowReport) Dropped() int {
	return r.MissingValue + r.Unresolved + r.Unparseable + r.OutOfWindow + r.Deduplicated
}
