package ingest

import (
	"context"
	"time"
)

// RawReading is one row from the external loader's staging area. The
// timestamp is an unparsed string and the dimension fields are free text.
// SourceHint is provenance only and never drives resolution.
type RawReading struct {
	Timestamp   string
	Value       float64
	StationName string
	DeviceName  string
	MetricKey   string
	SourceHint  string
}

// ParsedReading is a RawReading after dimension resolution and timestamp
// normalization. It lives only for the duration of a window's processing.
type ParsedReading struct {
	StationID  int64
	DeviceID   int64
	MetricID   int64
	TS         time.Time
	Value      float64
	SourceHint string
}

// Bucket truncates the reading's instant to the whole-second grain of the
// fact store.
func (p ParsedReading) Bucket() time.Time {
	return p.TS.UTC().Truncate(time.Second)
}

// Measurement is the persisted fact: one row per
// (station, device, metric, second bucket).
type Measurement struct {
	StationID  int64
	DeviceID   int64
	MetricID   int64
	TSBucket   time.Time
	Value      float64
	SourceHint string
	// TSRaw is the full-precision instant of the reading that won the bucket.
	TSRaw time.Time
}

// Measurement converts the winning reading for a bucket into its persisted
// form.
func (p ParsedReading) Measurement() Measurement {
	return Measurement{
		StationID:  p.StationID,
		DeviceID:   p.DeviceID,
		MetricID:   p.MetricID,
		TSBucket:   p.Bucket(),
		Value:      p.Value,
		SourceHint: p.SourceHint,
		TSRaw:      p.TS.UTC(),
	}
}

// FactRepository persists measurements idempotently: an insert on a fresh
// bucket, an overwrite of value, source hint, and raw instant on conflict.
type FactRepository interface {
	UpsertMeasurements(ctx context.Context, measurements []Measurement) error
}

// Source pages raw readings out of the external loader's staging area.
// Fetch returns up to limit readings starting at offset, plus the number of
// staging rows scanned for the page. Scanned can exceed the slice length when
// rows are unusable (a NULL value, for instance); callers must advance and
// terminate on scanned, never on the slice length, or a filtered row would
// end the pass early.
type Source interface {
	Fetch(ctx context.Context, limit, offset int) (readings []RawReading, scanned int, err error)
}
