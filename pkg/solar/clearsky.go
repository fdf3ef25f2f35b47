package solar

import (
	"fmt"
	"time"
)

// Irradiance holds the clear-sky components at one instant, all in W/m²
type Irradiance struct {
	Time time.Time `json:"time"`
	GHI  float64   `json:"ghi"`
	DNI  float64   `json:"dni"`
	DHI  float64   `json:"dhi"`
}

// ClearSkyModel estimates cloudless-sky irradiance from the sun's apparent zenith
type ClearSkyModel interface {
	Name() string
	ClearSky(t time.Time, zenith float64, loc Location) Irradiance
}

// Clear-sky model names accepted by NewClearSkyModel
const (
	ModelIneichenPerez = "ineichen"
	ModelASCE          = "asce"
	ModelBras          = "bras"
)

// ClearSkyOptions carries the inputs some clear-sky models need beyond position
type ClearSkyOptions struct {
	TemperatureC     float64
	RelativeHumidity float64
	LinkeTurbidity   float64
	BrasTurbidity    float64
}

// NewClearSkyModel returns the named clear-sky model.  An empty name selects
// Ineichen-Perez.
func NewClearSkyModel(name string, opts ClearSkyOptions) (ClearSkyModel, error) {
	switch name {
	case "", ModelIneichenPerez:
		return IneichenPerez{LinkeTurbidity: opts.LinkeTurbidity}, nil
	case ModelASCE:
		return ASCE{TemperatureC: opts.TemperatureC, RelativeHumidity: opts.RelativeHumidity}, nil
	case ModelBras:
		return Bras{Turbidity: opts.BrasTurbidity}, nil
	default:
		return nil, fmt.Errorf("unknown clear-sky model %q", name)
	}
}

// ClearSkyDay evaluates model over every sample of the date's time grid
func ClearSkyDay(date string, loc Location, interval time.Duration, model ClearSkyModel) (TimeGrid, []Irradiance, error) {
	grid, positions, err := Positions(date, loc, interval)
	if err != nil {
		return TimeGrid{}, nil, err
	}

	out := make([]Irradiance, len(positions))
	for i, p := range positions {
		if p.ApparentZenith >= NightZenith {
			out[i] = Irradiance{Time: p.Time}
			continue
		}
		out[i] = model.ClearSky(p.Time, p.ApparentZenith, loc)
		out[i].Time = p.Time
	}
	return grid, out, nil
}

// GHISeries extracts the GHI column of an irradiance slice
func GHISeries(irr []Irradiance) []float64 {
	ghi := make([]float64, len(irr))
	for i, v := range irr {
		ghi[i] = v.GHI
	}
	return ghi
}
