package application

import (
	"fmt"
	"sort"
	"time"

	dimensionconfig "pumpline-historian/internal/masterdata/config"
	masterdata "pumpline-historian/internal/masterdata/domain"
)

// Catalog resolves free-text dimension names to surrogate keys. It is built
// once from a validated dimension-mapping document and read-only thereafter,
// so lookups are safe for concurrent use.
type Catalog struct {
	defaultLocation *time.Location
	stations        map[string]*stationEntry
	metrics         map[string]masterdata.MetricDefinition
	metricsByID     map[int64]masterdata.MetricDefinition
	stationsByID    map[int64]masterdata.Station
	devicesByID     map[int64]masterdata.Device
}

type stationEntry struct {
	station masterdata.Station
	devices map[string]*deviceEntry
}

type deviceEntry struct {
	device  masterdata.Device
	metrics map[string]struct{}
}

// NewCatalog builds a catalog from a validated document. Surrogate keys are
// assigned deterministically: stations sorted by name, devices by
// (station, name), metrics by key, all 1-based.
func NewCatalog(doc *dimensionconfig.Document) (*Catalog, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", masterdata.ErrConfigurationInvalid)
	}
	defaultLoc, err := time.LoadLocation(doc.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("%w: default timezone: %v", masterdata.ErrConfigurationInvalid, err)
	}

	catalog := &Catalog{
		defaultLocation: defaultLoc,
		stations:        make(map[string]*stationEntry, len(doc.Stations)),
		metrics:         make(map[string]masterdata.MetricDefinition, len(doc.Metrics)),
		metricsByID:     make(map[int64]masterdata.MetricDefinition, len(doc.Metrics)),
		stationsByID:    make(map[int64]masterdata.Station, len(doc.Stations)),
		devicesByID:     make(map[int64]masterdata.Device),
	}

	metricKeys := make([]string, 0, len(doc.Metrics))
	for key := range doc.Metrics {
		metricKeys = append(metricKeys, key)
	}
	sort.Strings(metricKeys)
	for i, key := range metricKeys {
		spec := doc.Metrics[key]
		def := masterdata.MetricDefinition{
			ID:          int64(i + 1),
			Key:         key,
			Unit:        spec.Unit,
			DisplayUnit: spec.DisplayUnit,
			Min:         spec.Min,
			Max:         spec.Max,
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", masterdata.ErrConfigurationInvalid, err)
		}
		catalog.metrics[key] = def
		catalog.metricsByID[def.ID] = def
	}

	stationNames := make([]string, 0, len(doc.Stations))
	for name := range doc.Stations {
		stationNames = append(stationNames, name)
	}
	sort.Strings(stationNames)

	var deviceID int64
	for i, stationName := range stationNames {
		spec := doc.Stations[stationName]
		tz := doc.StationTimezone(spec)
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("%w: station %q timezone: %v", masterdata.ErrConfigurationInvalid, stationName, err)
		}
		station := masterdata.Station{
			ID:       int64(i + 1),
			Name:     stationName,
			Timezone: tz,
			Location: loc,
		}
		if err := station.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", masterdata.ErrConfigurationInvalid, err)
		}
		entry := &stationEntry{
			station: station,
			devices: make(map[string]*deviceEntry, len(spec.Devices)),
		}

		deviceNames := make([]string, 0, len(spec.Devices))
		for name := range spec.Devices {
			deviceNames = append(deviceNames, name)
		}
		sort.Strings(deviceNames)
		for _, deviceName := range deviceNames {
			deviceSpec := spec.Devices[deviceName]
			deviceType, subtype, err := deviceSpec.ResolveType()
			if err != nil {
				return nil, fmt.Errorf("%w: station %q device %q: %v", masterdata.ErrConfigurationInvalid, stationName, deviceName, err)
			}
			deviceID++
			device := masterdata.Device{
				ID:          deviceID,
				StationID:   station.ID,
				Name:        deviceName,
				Type:        deviceType,
				PumpSubtype: subtype,
			}
			if err := device.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %v", masterdata.ErrConfigurationInvalid, err)
			}
			metricSet := make(map[string]struct{}, len(deviceSpec.Metrics))
			for key := range deviceSpec.Metrics {
				metricSet[key] = struct{}{}
			}
			entry.devices[deviceName] = &deviceEntry{device: device, metrics: metricSet}
			catalog.devicesByID[device.ID] = device
		}

		catalog.stations[stationName] = entry
		catalog.stationsByID[station.ID] = station
	}

	return catalog, nil
}

// Resolve maps (station, device, metric) names to surrogate keys and the
// station timezone. A miss returns an UnresolvedError naming the failing
// part; unresolved records are dropped by the caller, never retried here.
func (c *Catalog) Resolve(stationName, deviceName, metricKey string) (masterdata.Resolution, error) {
	station, ok := c.stations[stationName]
	if !ok {
		return masterdata.Resolution{}, &masterdata.UnresolvedError{Part: masterdata.PartStation, Name: stationName}
	}
	device, ok := station.devices[deviceName]
	if !ok {
		return masterdata.Resolution{}, &masterdata.UnresolvedError{Part: masterdata.PartDevice, Name: deviceName}
	}
	metric, ok := c.metrics[metricKey]
	if !ok {
		return masterdata.Resolution{}, &masterdata.UnresolvedError{Part: masterdata.PartMetric, Name: metricKey}
	}
	if _, ok := device.metrics[metricKey]; !ok {
		return masterdata.Resolution{}, &masterdata.UnresolvedError{Part: masterdata.PartMetric, Name: metricKey}
	}
	return masterdata.Resolution{
		StationID: station.station.ID,
		DeviceID:  device.device.ID,
		MetricID:  metric.ID,
		Location:  station.station.Location,
	}, nil
}

// Station returns the station with the given surrogate key.
func (c *Catalog) Station(id int64) (masterdata.Station, bool) {
	s, ok := c.stationsByID[id]
	return s, ok
}

// Device returns the device with the given surrogate key.
func (c *Catalog) Device(id int64) (masterdata.Device, bool) {
	d, ok := c.devicesByID[id]
	return d, ok
}

// Metric returns the metric definition with the given surrogate key.
func (c *Catalog) Metric(id int64) (masterdata.MetricDefinition, bool) {
	m, ok := c.metricsByID[id]
	return m, ok
}

// DefaultLocation returns the process-wide default timezone.
func (c *Catalog) DefaultLocation() *time.Location {
	return c.defaultLocation
}

// Counts returns catalog sizes for startup logging.
func (c *Catalog) Counts() (stations, devices, metrics int) {
	return len(c.stations), len(c.devicesByID), len(c.metrics)
}
