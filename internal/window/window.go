// Package window slices a processing range into half-open windows aligned
// with the fact store's ISO-week partitioning.
package window

import (
	"errors"
	"time"
)

// DefaultSpan matches the fact store partition granularity.
const DefaultSpan = 7 * 24 * time.Hour

// ErrInvalidRange reports an empty or inverted range.
var ErrInvalidRange = errors.New("window: invalid range")

// ErrInvalidSpan reports a non-positive window span.
var ErrInvalidSpan = errors.New("window: invalid span")

// Window is a half-open [Start, End) sub-range in UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Iterator walks the windows covering a range lazily. The last window may be
// shorter than the nominal span. Reset restarts the walk from the beginning.
type Iterator struct {
	start time.Time
	end   time.Time
	span  time.Duration
	next  time.Time
}

// NewIterator builds an iterator over [start, end) with the given span.
// A zero span falls back to DefaultSpan.
func NewIterator(start, end time.Time, span time.Duration) (*Iterator, error) {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return nil, ErrInvalidRange
	}
	if span == 0 {
		span = DefaultSpan
	}
	if span < 0 {
		return nil, ErrInvalidSpan
	}
	start = start.UTC()
	end = end.UTC()
	return &Iterator{start: start, end: end, span: span, next: start}, nil
}

// Next returns the next window and true, or a zero window and false once the
// range is exhausted.
func (it *Iterator) Next() (Window, bool) {
	if !it.next.Before(it.end) {
		return Window{}, false
	}
	start := it.next
	end := start.Add(it.span)
	if end.After(it.end) {
		end = it.end
	}
	it.next = end
	return Window{Start: start, End: end}, true
}

// Reset rewinds the iterator to the start of the range.
func (it *Iterator) Reset() {
	it.next = it.start
}

// Slice collects every window covering [start, end).
func Slice(start, end time.Time, span time.Duration) ([]Window, error) {
	it, err := NewIterator(start, end, span)
	if err != nil {
		return nil, err
	}
	var windows []Window
	for {
		w, ok := it.Next()
		if !ok {
			return windows, nil
		}
		windows = append(windows, w)
	}
}

// ISOWeek returns the [Monday 00:00, next Monday 00:00) UTC week containing t.
// It is the partition boundary for the fact store and the default digest window.
func ISOWeek(t time.Time) Window {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	// time.Weekday numbers Sunday as 0; shift so Monday is 0.
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return Window{Start: start, End: start.AddDate(0, 0, 7)}
}
