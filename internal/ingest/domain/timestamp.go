package ingest

import (
	"strings"
	"time"
	"unicode"
)

// Raw timestamps arrive with or without a fractional-second component and
// with or without a trailing zone marker. The marker is stripped before
// parsing: the wall clock is always interpreted in the station's zone.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// NormalizeTimestamp parses a raw timestamp string as local wall-clock time
// in loc and returns the corresponding UTC instant, preserving sub-second
// precision. Unmatched input yields a TimestampUnparseableError.
func NormalizeTimestamp(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	trimmed := stripZoneMarker(strings.TrimSpace(raw))
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &TimestampUnparseableError{Raw: raw}
}

// stripZoneMarker removes a trailing "Z" or a numeric offset such as
// "+02:00", "-0700". Offsets are discarded, not applied.
func stripZoneMarker(s string) string {
	if len(s) == 0 {
		return s
	}
	if last := s[len(s)-1]; last == 'Z' || last == 'z' {
		return s[:len(s)-1]
	}
	for _, width := range []int{6, 5} { // +hh:mm, +hhmm
		if len(s) <= width {
			continue
		}
		candidate := s[len(s)-width:]
		if candidate[0] != '+' && candidate[0] != '-' {
			continue
		}
		if isOffsetDigits(candidate[1:]) {
			return s[:len(s)-width]
		}
	}
	return s
}

func isOffsetDigits(s string) bool {
	for i, r := range s {
		if r == ':' && i == 2 {
			continue
		}
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
