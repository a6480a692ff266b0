package ingest

import (
	"time"

	"pumpline-historian/internal/window"
)

// BucketKey identifies one persisted fact row.
type BucketKey struct {
	StationID int64
	DeviceID  int64
	MetricID  int64
	Bucket    time.Time
}

// Key returns the reading's fact-store identity.
func (p ParsedReading) Key() BucketKey {
	return BucketKey{
		StationID: p.StationID,
		DeviceID:  p.DeviceID,
		MetricID:  p.MetricID,
		Bucket:    p.Bucket(),
	}
}

// Dedup collapses readings sharing a bucket key to the one with the most
// recent instant. When instants tie exactly, the earliest reading in input
// order wins, so the result is deterministic for a given input ordering.
// Output order is first-appearance order of each key.
func Dedup(readings []ParsedReading) []ParsedReading {
	winners := make(map[BucketKey]int, len(readings))
	order := make([]BucketKey, 0, len(readings))

	for i, reading := range readings {
		key := reading.Key()
		at, seen := winners[key]
		if !seen {
			winners[key] = i
			order = append(order, key)
			continue
		}
		if reading.TS.After(readings[at].TS) {
			winners[key] = i
		}
	}

	out := make([]ParsedReading, 0, len(order))
	for _, key := range order {
		out = append(out, readings[winners[key]])
	}
	return out
}

// FilterWindow keeps readings whose bucket falls inside the half-open
// window. Cross-window duplicates are left to the storage layer's upsert
// conflict rule.
func FilterWindow(readings []ParsedReading, w window.Window) []ParsedReading {
	out := make([]ParsedReading, 0, len(readings))
	for _, reading := range readings {
		if w.Contains(reading.Bucket()) {
			out = append(out, reading)
		}
	}
	return out
}
