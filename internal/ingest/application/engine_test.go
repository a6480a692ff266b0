package application

import (
	"context"
	"errors"
	"testing"
	"time"

	ingest "pumpline-historian/internal/ingest/domain"
	masterdata "pumpline-historian/internal/masterdata/domain"
	"pumpline-historian/internal/window"
)

type stubResolver struct {
	known map[string]masterdata.Resolution
}

func (s stubResolver) Resolve(stationName, deviceName, metricKey string) (masterdata.Resolution, error) {
	res, ok := s.known[stationName+"/"+deviceName+"/"+metricKey]
	if !ok {
		return masterdata.Resolution{}, &masterdata.UnresolvedError{Part: masterdata.PartDevice, Name: deviceName}
	}
	return res, nil
}

type stubSource struct {
	readings []ingest.RawReading
	// blankAt marks row indices the source filters out, mirroring staging
	// rows whose value column is NULL.
	blankAt map[int]bool
	err     error
}

func (s *stubSource) Fetch(_ context.Context, limit, offset int) ([]ingest.RawReading, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	if offset >= len(s.readings) {
		return nil, 0, nil
	}
	end := offset + limit
	if end > len(s.readings) {
		end = len(s.readings)
	}
	page := make([]ingest.RawReading, 0, end-offset)
	for i := offset; i < end; i++ {
		if s.blankAt[i] {
			continue
		}
		page = append(page, s.readings[i])
	}
	return page, end - offset, nil
}

type stubFactRepo struct {
	rows    map[ingest.BucketKey]ingest.Measurement
	batches int
	failAll bool
}

func newStubFactRepo() *stubFactRepo {
	return &stubFactRepo{rows: make(map[ingest.BucketKey]ingest.Measurement)}
}

func (r *stubFactRepo) UpsertMeasurements(_ context.Context, measurements []ingest.Measurement) error {
	if r.failAll {
		return errors.New("connection refused")
	}
	r.batches++
	for _, m := range measurements {
		key := ingest.BucketKey{
			StationID: m.StationID,
			DeviceID:  m.DeviceID,
			MetricID:  m.MetricID,
			Bucket:    m.TSBucket,
		}
		r.rows[key] = m
	}
	return nil
}

func testResolver() stubResolver {
	return stubResolver{known: map[string]masterdata.Resolution{
		"riverside/pump-01/flow_rate": {StationID: 1, DeviceID: 1, MetricID: 1, Location: time.UTC},
	}}
}

func testWindow() window.Window {
	return window.Window{
		Start: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func raw(ts string, value float64) ingest.RawReading {
	return ingest.RawReading{
		Timestamp:   ts,
		Value:       value,
		StationName: "riverside",
		DeviceName:  "pump-01",
		MetricKey:   "flow_rate",
		SourceHint:  "scada/riverside/p01_flow.csv",
	}
}

func TestProcessWindowMergesAndCounts(t *testing.T) {
	source := &stubSource{readings: []ingest.RawReading{
		raw("2025-03-04 12:30:45.120", 10.0),
		raw("2025-03-04 12:30:45.850", 20.0),
		raw("2025-03-04 12:30:46", 30.0),
		raw("2025-02-01 00:00:00", 99.0), // outside the window
		raw("not-a-timestamp", 1.0),
		{Timestamp: "2025-03-04 12:00:00", Value: 5, StationName: "riverside", DeviceName: "pump-99", MetricKey: "flow_rate"},
	}}
	repo := newStubFactRepo()
	engine, err := NewEngine(testResolver(), source, repo)
	if err != nil {
		t.Fatalf("engine error: %v", err)
	}

	report, err := engine.ProcessWindow(context.Background(), testWindow(), 100, 2)
	if err != nil {
		t.Fatalf("process error: %v", err)
	}

	if report.Considered != 6 {
		t.Fatalf("considered = %d, want 6", report.Considered)
	}
	if report.Unresolved != 1 || report.Unparseable != 1 {
		t.Fatalf("drop counts wrong: %+v", report)
	}
	if report.Deduplicated != 1 {
		t.Fatalf("deduplicated = %d, want 1", report.Deduplicated)
	}
	if report.OutOfWindow != 1 {
		t.Fatalf("out of window = %d, want 1", report.OutOfWindow)
	}
	if report.Written != 2 {
		t.Fatalf("written = %d, want 2", report.Written)
	}

	bucket := time.Date(2025, 3, 4, 12, 30, 45, 0, time.UTC)
	key := ingest.BucketKey{StationID: 1, DeviceID: 1, MetricID: 1, Bucket: bucket}
	row, ok := repo.rows[key]
	if !ok {
		t.Fatal("expected merged row for contested bucket")
	}
	if row.Value != 20.0 {
		t.Fatalf("latest reading must win, got value %f", row.Value)
	}
	if !row.TSRaw.Equal(bucket.Add(850 * time.Millisecond)) {
		t.Fatalf("ts_raw must carry the winning instant, got %v", row.TSRaw)
	}
	if row.TSBucket.Nanosecond() != 0 {
		t.Fatalf("ts_bucket has sub-second component: %v", row.TSBucket)
	}
}

func TestProcessWindowIsIdempotent(t *testing.T) {
	source := &stubSource{readings: []ingest.RawReading{
		raw("2025-03-04 12:30:45.120", 10.0),
		raw("2025-03-04 12:30:45.850", 20.0),
		raw("2025-03-05 08:00:00", 30.0),
	}}
	repo := newStubFactRepo()
	engine, err := NewEngine(testResolver(), source, repo)
	if err != nil {
		t.Fatalf("engine error: %v", err)
	}

	if _, err := engine.ProcessWindow(context.Background(), testWindow(), 100, 2); err != nil {
		t.Fatalf("first pass error: %v", err)
	}
	firstRun := make(map[ingest.BucketKey]ingest.Measurement, len(repo.rows))
	for k, v := range repo.rows {
		firstRun[k] = v
	}

	if _, err := engine.ProcessWindow(context.Background(), testWindow(), 100, 2); err != nil {
		t.Fatalf("second pass error: %v", err)
	}

	if len(repo.rows) != len(firstRun) {
		t.Fatalf("row count drifted: %d vs %d", len(repo.rows), len(firstRun))
	}
	for k, v := range firstRun {
		got, ok := repo.rows[k]
		if !ok {
			t.Fatalf("row vanished on re-run: %+v", k)
		}
		if got.Value != v.Value || !got.TSRaw.Equal(v.TSRaw) {
			t.Fatalf("row drifted on re-run: %+v vs %+v", got, v)
		}
	}
}

func TestProcessWindowPagesThroughSource(t *testing.T) {
	var readings []ingest.RawReading
	base := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		readings = append(readings, raw(base.Add(time.Duration(i)*time.Second).Format("2006-01-02 15:04:05"), float64(i)))
	}
	source := &stubSource{readings: readings}
	repo := newStubFactRepo()
	engine, err := NewEngine(testResolver(), source, repo)
	if err != nil {
		t.Fatalf("engine error: %v", err)
	}

	report, err := engine.ProcessWindow(context.Background(), testWindow(), 10, 3)
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if report.Considered != 25 || report.Written != 25 {
		t.Fatalf("pagination lost rows: %+v", report)
	}
	if repo.batches != 3 {
		t.Fatalf("expected 3 upsert sub-batches, got %d", repo.batches)
	}
	if len(report.UpsertLatencies) != 3 {
		t.Fatalf("expected 3 latency samples, got %d", len(report.UpsertLatencies))
	}
}

func TestProcessWindowCountsRowsWithoutValues(t *testing.T) {
	var readings []ingest.RawReading
	base := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		readings = append(readings, raw(base.Add(time.Duration(i)*time.Second).Format("2006-01-02 15:04:05"), float64(i)))
	}
	// Row 3 has no value, landing mid-page with batch size 4. Paging must
	// still reach every later row, and the drop must be accounted for.
	source := &stubSource{readings: readings, blankAt: map[int]bool{3: true}}
	repo := newStubFactRepo()
	engine, err := NewEngine(testResolver(), source, repo)
	if err != nil {
		t.Fatalf("engine error: %v", err)
	}

	report, err := engine.ProcessWindow(context.Background(), testWindow(), 4, 2)
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if report.Considered != 10 {
		t.Fatalf("considered = %d, want 10", report.Considered)
	}
	if report.MissingValue != 1 {
		t.Fatalf("missing value = %d, want 1", report.MissingValue)
	}
	if report.Written != 9 {
		t.Fatalf("written = %d, want 9", report.Written)
	}
	if report.Considered != report.Written+report.Dropped() {
		t.Fatalf("rows unaccounted for: %+v", report)
	}
}

func TestProcessWindowStorageFailureFailsWindow(t *testing.T) {
	source := &stubSource{readings: []ingest.RawReading{
		raw("2025-03-04 12:30:45", 10.0),
	}}
	repo := newStubFactRepo()
	repo.failAll = true
	engine, err := NewEngine(testResolver(), source, repo)
	if err != nil {
		t.Fatalf("engine error: %v", err)
	}

	report, err := engine.ProcessWindow(context.Background(), testWindow(), 100, 2)
	if err == nil {
		t.Fatal("expected window failure")
	}
	var writeErr *ingest.WindowWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected WindowWriteError, got %T", err)
	}
	if !report.Failed {
		t.Fatal("report must mark the window failed")
	}
}

func TestProcessWindowSourceFailureFailsWindow(t *testing.T) {
	source := &stubSource{err: errors.New("connection reset")}
	engine, err := NewEngine(testResolver(), source, newStubFactRepo())
	if err != nil {
		t.Fatalf("engine error: %v", err)
	}

	_, err = engine.ProcessWindow(context.Background(), testWindow(), 100, 2)
	var writeErr *ingest.WindowWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected WindowWriteError, got %v", err)
	}
}

func TestProcessWindowHonorsCancellation(t *testing.T) {
	source := &stubSource{readings: []ingest.RawReading{raw("2025-03-04 12:30:45", 10.0)}}
	engine, err := NewEngine(testResolver(), source, newStubFactRepo())
	if err != nil {
		t.Fatalf("engine error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := engine.ProcessWindow(ctx, testWindow(), 100, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
