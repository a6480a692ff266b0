package ingest

import (
	"fmt"

	"pumpline-historian/internal/window"
)

// TimestampUnparseableError reports a raw timestamp outside the supported
// format set. Per-record and recoverable: the record is dropped and counted.
type TimestampUnparseableError struct {
	Raw string
}

func (e *TimestampUnparseableError) Error() string {
	return fmt.Sprintf("ingest: unparseable timestamp %q", e.Raw)
}

// WindowWriteError reports a storage failure for a whole window. The window
// is eligible for retry: upserts are idempotent, so partial writes are safe.
type WindowWriteError struct {
	Window window.Window
	Err    error
}

func (e *WindowWriteError) Error() string {
	return fmt.Sprintf("ingest: window [%s, %s) write failed: %v",
		e.Window.Start.Format("2006-01-02T15:04:05Z07:00"),
		e.Window.End.Format("2006-01-02T15:04:05Z07:00"),
		e.Err)
}

func (e *WindowWriteError) Unwrap() error { return e.Err }
