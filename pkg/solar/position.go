package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/refraction"
	"github.com/soniakeys/meeus/v3/sidereal"
	sun "github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"
)

// NightZenith is the zenith angle assigned to any sample with the sun at or below the horizon
const NightZenith = 90.0

// Refraction is only applied above this true altitude; the Saemundsson
// formula diverges a few degrees below the horizon.
const refractionLimitDeg = -0.8333

// PositionSample is the apparent solar zenith angle at one instant
type PositionSample struct {
	Time           time.Time `json:"time"`
	ApparentZenith float64   `json:"apparent_zenith"`
}

// ApparentZenith returns the refraction-corrected solar zenith angle in degrees
// at instant t, clamped to [0, 90].
func ApparentZenith(t time.Time, loc Location) float64 {
	jd := julian.TimeToJD(t.UTC())

	α, δ := sun.ApparentEquatorial(jd)
	st := sidereal.Apparent(jd)

	// meeus counts longitude positive westward
	ψ := unit.AngleFromDeg(-loc.Longitude)
	φ := unit.AngleFromDeg(loc.Latitude)
	H := st.Angle() - ψ - α.Angle()

	sinh := φ.Sin()*δ.Sin() + φ.Cos()*δ.Cos()*H.Cos()
	h := unit.Angle(math.Asin(math.Max(-1, math.Min(1, sinh))))

	if h.Deg() > refractionLimitDeg {
		h += refraction.Saemundsson(h)
	}

	return clampZenith(90 - h.Deg())
}

func clampZenith(z float64) float64 {
	switch {
	case math.IsNaN(z):
		return NightZenith
	case z < 0:
		return 0
	case z > NightZenith:
		return NightZenith
	}
	return z
}

// Positions computes the apparent zenith for every sample of the given date's
// time grid.  It returns ErrNoSamples if interval yields an empty grid.
func Positions(date string, loc Location, interval time.Duration) (TimeGrid, []PositionSample, error) {
	grid, err := DayGrid(date, loc, interval)
	if err != nil {
		return TimeGrid{}, nil, err
	}
	return grid, PositionsForGrid(grid, loc), nil
}

// PositionsForGrid computes the apparent zenith for every instant of grid
func PositionsForGrid(grid TimeGrid, loc Location) []PositionSample {
	samples := make([]PositionSample, len(grid.Times))
	for i, t := range grid.Times {
		samples[i] = PositionSample{
			Time:           t,
			ApparentZenith: ApparentZenith(t, loc),
		}
	}
	return samples
}

// Zeniths extracts the zenith column of a sample slice
func Zeniths(samples []PositionSample) []float64 {
	z := make([]float64, len(samples))
	for i, s := range samples {
		z[i] = s.ApparentZenith
	}
	return z
}
