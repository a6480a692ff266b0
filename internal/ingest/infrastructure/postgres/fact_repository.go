// Package postgres implements the fact store and staging source contracts.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ingest "pumpline-historian/internal/ingest/domain"
	"pumpline-historian/internal/window"
)

const defaultFactTable = "measurements"

// FactRepository is the Postgres fact store. The measurements table is range
// partitioned on ts_bucket by ISO week with a uniqueness constraint on
// (station_id, device_id, metric_id, ts_bucket).
type FactRepository struct {
	db    *sql.DB
	table string
}

// FactRepositoryOption configures the repository.
type FactRepositoryOption func(*FactRepository)

// WithFactTable overrides the default table name.
func WithFactTable(table string) FactRepositoryOption {
	return func(repo *FactRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewFactRepository constructs a repository with the default table name.
func NewFactRepository(db *sql.DB, opts ...FactRepositoryOption) *FactRepository {
	repo := &FactRepository{db: db, table: defaultFactTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// UpsertMeasurements writes one batch inside a single transaction. On
// conflict the value, source hint, and raw instant are overwritten, which
// mirrors the in-memory latest-wins tie-break and keeps re-runs idempotent.
func (r *FactRepository) UpsertMeasurements(ctx context.Context, measurements []ingest.Measurement) error {
	if r == nil || r.db == nil {
		return errors.New("fact repo: nil db")
	}
	if len(measurements) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	station_id,
	device_id,
	metric_id,
	ts_bucket,
	value,
	source_hint,
	ts_raw
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)
ON CONFLICT (station_id, device_id, metric_id, ts_bucket)
DO UPDATE SET
	value = EXCLUDED.value,
	source_hint = EXCLUDED.source_hint,
	ts_raw = EXCLUDED.ts_raw,
	inserted_at = NOW()`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, m := range measurements {
		if m.StationID <= 0 || m.DeviceID <= 0 || m.MetricID <= 0 || m.TSBucket.IsZero() {
			_ = tx.Rollback()
			return errors.New("fact repo: invalid measurement")
		}
		if _, err := stmt.ExecContext(
			ctx,
			m.StationID,
			m.DeviceID,
			m.MetricID,
			m.TSBucket,
			m.Value,
			m.SourceHint,
			m.TSRaw,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// EnsureWeekPartitions creates the ISO-week child partitions touched by
// [start, end). Existing partitions are left alone.
func (r *FactRepository) EnsureWeekPartitions(ctx context.Context, start, end time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("fact repo: nil db")
	}

	week := window.ISOWeek(start)
	for week.Start.Before(end) {
		year, num := week.Start.ISOWeek()
		ddl := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s_y%dw%02d PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')`,
			r.table, year, num, r.table,
			week.Start.Format("2006-01-02 15:04:05+00"),
			week.End.Format("2006-01-02 15:04:05+00"),
		)
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("fact repo: ensure partition %dw%02d: %w", year, num, err)
		}
		week = window.ISOWeek(week.End)
	}
	return nil
}
