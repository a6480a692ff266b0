// Package config loads and validates the dimension-mapping document: the
// sole source of semantic truth for station, device, and metric resolution.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	masterdata "pumpline-historian/internal/masterdata/domain"
)

// Document is the on-disk shape of the dimension mapping.
type Document struct {
	DefaultTimezone string                 `yaml:"default_timezone"`
	Metrics         map[string]MetricSpec  `yaml:"metrics"`
	Stations        map[string]StationSpec `yaml:"stations"`
}

// MetricSpec declares a metric's unit and value constraints.
type MetricSpec struct {
	Unit        string   `yaml:"unit"`
	DisplayUnit string   `yaml:"display_unit"`
	Min         *float64 `yaml:"min"`
	Max         *float64 `yaml:"max"`
}

// StationSpec declares a station's optional timezone override and devices.
type StationSpec struct {
	Timezone string                `yaml:"timezone"`
	Devices  map[string]DeviceSpec `yaml:"devices"`
}

// DeviceSpec declares a device's type and the metrics it reports. The first
// element of Type and PumpType is used; PumpType is dropped unless the
// device is a pump.
type DeviceSpec struct {
	Type     []string                 `yaml:"type"`
	PumpType []string                 `yaml:"pump_type"`
	Metrics  map[string]MetricSources `yaml:"metrics"`
}

// MetricSources lists the file references contributing a metric. They are
// provenance only and must never drive dimension resolution.
type MetricSources struct {
	Sources []string `yaml:"sources"`
}

// Load reads and validates a dimension-mapping document. Any failure wraps
// masterdata.ErrConfigurationInvalid: ingestion must not start on error.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", masterdata.ErrConfigurationInvalid, path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a dimension-mapping document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", masterdata.ErrConfigurationInvalid, err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) validate() error {
	if d.DefaultTimezone == "" {
		d.DefaultTimezone = "UTC"
	}
	if _, err := time.LoadLocation(d.DefaultTimezone); err != nil {
		return fmt.Errorf("%w: default timezone %q: %v", masterdata.ErrConfigurationInvalid, d.DefaultTimezone, err)
	}
	if len(d.Stations) == 0 {
		return fmt.Errorf("%w: no stations", masterdata.ErrConfigurationInvalid)
	}
	if len(d.Metrics) == 0 {
		return fmt.Errorf("%w: no metric definitions", masterdata.ErrConfigurationInvalid)
	}

	for key, spec := range d.Metrics {
		if spec.Unit == "" {
			return fmt.Errorf("%w: metric %q: empty unit", masterdata.ErrConfigurationInvalid, key)
		}
		if spec.Min != nil && spec.Max != nil && *spec.Min > *spec.Max {
			return fmt.Errorf("%w: metric %q: min exceeds max", masterdata.ErrConfigurationInvalid, key)
		}
	}

	for stationName, station := range d.Stations {
		if station.Timezone != "" {
			if _, err := time.LoadLocation(station.Timezone); err != nil {
				return fmt.Errorf("%w: station %q: timezone %q: %v", masterdata.ErrConfigurationInvalid, stationName, station.Timezone, err)
			}
		}
		if len(station.Devices) == 0 {
			return fmt.Errorf("%w: station %q: no devices", masterdata.ErrConfigurationInvalid, stationName)
		}
		for deviceName, device := range station.Devices {
			if _, _, err := device.ResolveType(); err != nil {
				return fmt.Errorf("%w: station %q device %q: %v", masterdata.ErrConfigurationInvalid, stationName, deviceName, err)
			}
			if len(device.Metrics) == 0 {
				return fmt.Errorf("%w: station %q device %q: no metrics", masterdata.ErrConfigurationInvalid, stationName, deviceName)
			}
			for key := range device.Metrics {
				if _, ok := d.Metrics[key]; !ok {
					return fmt.Errorf("%w: station %q device %q: undeclared metric %q", masterdata.ErrConfigurationInvalid, stationName, deviceName, key)
				}
			}
		}
	}
	return nil
}

// ResolveType returns the effective device type and pump subtype. The first
// list element wins; a pump subtype on a non-pump device is discarded.
func (s DeviceSpec) ResolveType() (masterdata.DeviceType, masterdata.PumpSubtype, error) {
	if len(s.Type) == 0 {
		return "", "", fmt.Errorf("missing type")
	}
	deviceType := masterdata.DeviceType(s.Type[0])
	if !deviceType.IsValid() {
		return "", "", fmt.Errorf("unknown type %q", s.Type[0])
	}

	subtype := masterdata.PumpSubtypeNone
	if deviceType == masterdata.DeviceTypePump && len(s.PumpType) > 0 {
		subtype = masterdata.PumpSubtype(s.PumpType[0])
		if !subtype.IsValid() {
			return "", "", fmt.Errorf("unknown pump subtype %q", s.PumpType[0])
		}
	}
	return deviceType, subtype, nil
}

// StationTimezone returns the station override or the document default.
func (d *Document) StationTimezone(spec StationSpec) string {
	if spec.Timezone != "" {
		return spec.Timezone
	}
	return d.DefaultTimezone
}
