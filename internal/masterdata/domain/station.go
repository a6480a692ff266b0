package masterdata

import (
	"errors"
	"time"
)

// Station represents a pumping site in masterdata.
type Station struct {
	ID       int64
	Name     string
	Timezone string
	// Location is the resolved IANA zone readings from this station are
	// interpreted in. Resolved once at configuration load.
	Location *time.Location
}

// Validate checks station invariants.
func (s Station) Validate() error {
	if s.ID <= 0 {
		return errors.New("station: invalid id")
	}
	if s.Name == "" {
		return errors.New("station: empty name")
	}
	if s.Timezone == "" {
		return errors.New("station: empty timezone")
	}
	if s.Location == nil {
		return errors.New("station: unresolved timezone")
	}
	return nil
}
