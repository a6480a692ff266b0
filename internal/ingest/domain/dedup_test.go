package ingest

import (
	"testing"
	"time"

	"pumpline-historian/internal/window"
)

func reading(stationID, deviceID, metricID int64, ts time.Time, value float64) ParsedReading {
	return ParsedReading{
		StationID: stationID,
		DeviceID:  deviceID,
		MetricID:  metricID,
		TS:        ts,
		Value:     value,
	}
}

func TestBucketTruncatesToWholeSeconds(t *testing.T) {
	ts := time.Date(2025, 3, 4, 12, 30, 45, 850000000, time.UTC)
	p := reading(1, 1, 1, ts, 1.0)

	bucket := p.Bucket()
	if bucket.Nanosecond() != 0 {
		t.Fatalf("bucket has sub-second component: %v", bucket)
	}
	if !bucket.Equal(time.Date(2025, 3, 4, 12, 30, 45, 0, time.UTC)) {
		t.Fatalf("unexpected bucket: %v", bucket)
	}
	if !bucket.Equal(bucket.Truncate(time.Second)) {
		t.Fatalf("bucket not idempotent under truncation: %v", bucket)
	}
}

func TestDedupLatestWinsWithinSecond(t *testing.T) {
	second := time.Date(2025, 3, 4, 12, 30, 45, 0, time.UTC)
	readings := []ParsedReading{
		reading(1, 2, 3, second.Add(120*time.Millisecond), 10.0),
		reading(1, 2, 3, second.Add(850*time.Millisecond), 20.0),
	}

	out := Dedup(readings)
	if len(out) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(out))
	}
	if out[0].Value != 20.0 {
		t.Fatalf("expected 850ms reading to win, got value %f", out[0].Value)
	}
	if !out[0].Bucket().Equal(second) {
		t.Fatalf("unexpected bucket: %v", out[0].Bucket())
	}
}

func TestDedupIdenticalInstantsAreStable(t *testing.T) {
	ts := time.Date(2025, 3, 4, 12, 30, 45, 500000000, time.UTC)
	readings := []ParsedReading{
		reading(1, 2, 3, ts, 1.0),
		reading(1, 2, 3, ts, 2.0),
		reading(1, 2, 3, ts, 3.0),
	}

	for i := 0; i < 10; i++ {
		out := Dedup(readings)
		if len(out) != 1 {
			t.Fatalf("expected 1 survivor, got %d", len(out))
		}
		if out[0].Value != 1.0 {
			t.Fatalf("tie-break not stable: got value %f", out[0].Value)
		}
	}
}

func TestDedupKeepsDistinctKeysApart(t *testing.T) {
	second := time.Date(2025, 3, 4, 12, 30, 45, 0, time.UTC)
	readings := []ParsedReading{
		reading(1, 2, 3, second.Add(100*time.Millisecond), 1.0),
		reading(1, 2, 4, second.Add(200*time.Millisecond), 2.0),
		reading(1, 5, 3, second.Add(300*time.Millisecond), 3.0),
		reading(6, 2, 3, second.Add(400*time.Millisecond), 4.0),
		reading(1, 2, 3, second.Add(-time.Second), 5.0),
	}

	out := Dedup(readings)
	if len(out) != 5 {
		t.Fatalf("expected 5 survivors, got %d", len(out))
	}
}

func TestDedupOutputOrderIsFirstAppearance(t *testing.T) {
	second := time.Date(2025, 3, 4, 12, 30, 45, 0, time.UTC)
	readings := []ParsedReading{
		reading(1, 1, 1, second.Add(100*time.Millisecond), 1.0),
		reading(2, 2, 2, second.Add(100*time.Millisecond), 2.0),
		reading(1, 1, 1, second.Add(900*time.Millisecond), 3.0),
	}

	out := Dedup(readings)
	if len(out) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(out))
	}
	if out[0].StationID != 1 || out[0].Value != 3.0 {
		t.Fatalf("unexpected first survivor: %+v", out[0])
	}
	if out[1].StationID != 2 {
		t.Fatalf("unexpected second survivor: %+v", out[1])
	}
}

func TestFilterWindowHalfOpenBounds(t *testing.T) {
	w := window.Window{
		Start: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	readings := []ParsedReading{
		reading(1, 1, 1, w.Start, 1.0),
		reading(1, 1, 2, w.End.Add(-time.Second), 2.0),
		reading(1, 1, 3, w.End, 3.0),
		reading(1, 1, 4, w.Start.Add(-time.Millisecond), 4.0),
	}

	out := FilterWindow(readings, w)
	if len(out) != 2 {
		t.Fatalf("expected 2 in-window readings, got %d", len(out))
	}
	if out[0].Value != 1.0 || out[1].Value != 2.0 {
		t.Fatalf("unexpected survivors: %+v", out)
	}
}

func TestMeasurementCarriesRawInstant(t *testing.T) {
	ts := time.Date(2025, 3, 4, 12, 30, 45, 850000000, time.UTC)
	p := ParsedReading{StationID: 1, DeviceID: 2, MetricID: 3, TS: ts, Value: 7.5, SourceHint: "scada/p01_flow.csv"}

	m := p.Measurement()
	if !m.TSBucket.Equal(ts.Truncate(time.Second)) {
		t.Fatalf("unexpected bucket: %v", m.TSBucket)
	}
	if !m.TSRaw.Equal(ts) {
		t.Fatalf("raw instant lost: %v", m.TSRaw)
	}
	if m.SourceHint != "scada/p01_flow.csv" {
		t.Fatalf("source hint lost: %q", m.SourceHint)
	}
}
