package masterdata

import "errors"

// DeviceType classifies a device.
type DeviceType string

const (
	DeviceTypePump         DeviceType = "pump"
	DeviceTypeMainPipeline DeviceType = "main_pipeline"
)

// IsValid reports whether the type is a known device type.
func (t DeviceType) IsValid() bool {
	return t == DeviceTypePump || t == DeviceTypeMainPipeline
}

// PumpSubtype refines a pump device. Empty for non-pump devices.
type PumpSubtype string

const (
	PumpSubtypeNone              PumpSubtype = ""
	PumpSubtypeVariableFrequency PumpSubtype = "variable_frequency"
	PumpSubtypeSoftStart         PumpSubtype = "soft_start"
)

// IsValid reports whether the subtype is known (including absent).
func (s PumpSubtype) IsValid() bool {
	return s == PumpSubtypeNone || s == PumpSubtypeVariableFrequency || s == PumpSubtypeSoftStart
}

// Device represents a device bound to a station. Names are unique within
// their station.
type Device struct {
	ID          int64
	StationID   int64
	Name        string
	Type        DeviceType
	PumpSubtype PumpSubtype
}

// Validate checks device invariants: a pump subtype is only meaningful on a
// pump device.
func (d Device) Validate() error {
	if d.ID <= 0 {
		return errors.New("device: invalid id")
	}
	if d.StationID <= 0 {
		return errors.New("device: invalid station id")
	}
	if d.Name == "" {
		return errors.New("device: empty name")
	}
	if !d.Type.IsValid() {
		return errors.New("device: unknown type")
	}
	if !d.PumpSubtype.IsValid() {
		return errors.New("device: unknown pump subtype")
	}
	if d.PumpSubtype != PumpSubtypeNone && d.Type != DeviceTypePump {
		return errors.New("device: pump subtype on non-pump device")
	}
	return nil
}
