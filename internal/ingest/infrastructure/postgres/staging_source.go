package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	ingest "pumpline-historian/internal/ingest/domain"
)

const defaultStagingTable = "raw_readings"

// StagingSource pages raw readings out of the loader's staging table. Rows
// carry the raw timestamp string untouched; parsing happens downstream with
// the station's timezone in hand.
type StagingSource struct {
	db    *sql.DB
	table string
}

// StagingSourceOption configures the source.
type StagingSourceOption func(*StagingSource)

// WithStagingTable overrides the default table name.
func WithStagingTable(table string) StagingSourceOption {
	return func(src *StagingSource) {
		if table != "" {
			src.table = table
		}
	}
}

// NewStagingSource constructs a source with the default table name.
func NewStagingSource(db *sql.DB, opts ...StagingSourceOption) *StagingSource {
	src := &StagingSource{db: db, table: defaultStagingTable}
	for _, opt := range opts {
		opt(src)
	}
	return src
}

// Fetch returns one page of raw readings in stable id order, so repeated
// passes over the staging area see the same sequence. The staging schema
// allows NULL values, so a page can scan more rows than it returns; the
// scanned count keeps the caller's offset in table-row space.
func (s *StagingSource) Fetch(ctx context.Context, limit, offset int) ([]ingest.RawReading, int, error) {
	if s == nil || s.db == nil {
		return nil, 0, errors.New("staging source: nil db")
	}
	if limit <= 0 || offset < 0 {
		return nil, 0, errors.New("staging source: invalid page")
	}

	query := fmt.Sprintf(`
SELECT raw_ts, value, station_name, device_name, metric_key, source_hint
FROM %s
ORDER BY id ASC
LIMIT $1 OFFSET $2`, s.table)

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	readings := make([]ingest.RawReading, 0, limit)
	scanned := 0
	for rows.Next() {
		scanned++
		var r ingest.RawReading
		var value sql.NullFloat64
		var sourceHint sql.NullString
		if err := rows.Scan(&r.Timestamp, &value, &r.StationName, &r.DeviceName, &r.MetricKey, &sourceHint); err != nil {
			return nil, 0, err
		}
		if !value.Valid {
			continue
		}
		r.Value = value.Float64
		r.SourceHint = sourceHint.String
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return readings, scanned, nil
}
