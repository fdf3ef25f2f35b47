// Package solar computes solar position and clear-sky irradiance over a
// day's worth of evenly spaced samples for a fixed location.
package solar

import (
	"fmt"
	"time"
)

// Default location used by the command-line tools when none is configured (Toronto, ON)
const (
	DefaultLatitude  = 43.6532
	DefaultLongitude = -79.3832
	DefaultAltitude  = 76.0
	DefaultTimezone  = "America/Toronto"
)

// Location is an observer position on the earth.  Latitude and longitude are in
// degrees (east positive), altitude in meters above sea level.
type Location struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Altitude  float64 `json:"altitude" yaml:"altitude"`
	Timezone  string  `json:"timezone" yaml:"timezone"`
}

// DefaultLocation returns the Toronto location
func DefaultLocation() Location {
	return Location{
		Latitude:  DefaultLatitude,
		Longitude: DefaultLongitude,
		Altitude:  DefaultAltitude,
		Timezone:  DefaultTimezone,
	}
}

// TZ loads the location's IANA time zone.  An empty Timezone means UTC.
func (l Location) TZ() (*time.Location, error) {
	if l.Timezone == "" {
		return time.UTC, nil
	}
	tz, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", l.Timezone, err)
	}
	return tz, nil
}
