package masterdata

import (
	"errors"
	"fmt"
	"time"
)

// DimensionPart names which dimension failed to resolve.
type DimensionPart string

const (
	PartStation DimensionPart = "station"
	PartDevice  DimensionPart = "device"
	PartMetric  DimensionPart = "metric"
)

// ErrConfigurationInvalid marks a fatal dimension-configuration failure.
// Ingestion must not start when configuration loading wraps this error.
var ErrConfigurationInvalid = errors.New("masterdata: configuration invalid")

// UnresolvedError reports a dimension lookup miss. It is a per-record,
// recoverable failure: the caller drops and counts the record.
type UnresolvedError struct {
	Part DimensionPart
	Name string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("masterdata: unresolved %s %q", e.Part, e.Name)
}

// Resolution is the surrogate-key view of a (station, device, metric) triple
// plus the timezone raw timestamps from that station are interpreted in.
type Resolution struct {
	StationID int64
	DeviceID  int64
	MetricID  int64
	Location  *time.Location
}

// Resolver maps free-text dimension names to surrogate keys. Lookups are
// read-only and safe for concurrent use.
type Resolver interface {
	Resolve(stationName, deviceName, metricKey string) (Resolution, error)
}
