// Package sweep runs batch predictions: the season x energy x humidity grid,
// the date x cloud type sweep over the pipeline, and the fixed seasonal
// sample days.
package sweep

import (
	"fmt"
	"math"

	"github.com/chrissnell/aeroaqua/internal/yield"
)

// Seasons in output order
var Seasons = []string{"Summer", "Spring", "Fall", "Winter"}

// GridColumns is the header of the grid CSV.  Plotting tools key on these names.
var GridColumns = []string{"Season", "Solar_Energy_kwh_m2", "RH_Percent", "Predicted Water (L/day)"}

// GridSpec bounds the energy and humidity axes of the grid; both ends are inclusive
type GridSpec struct {
	EnergyMin  float64
	EnergyMax  float64
	EnergyStep float64
	RHMin      float64
	RHMax      float64
	RHStep     float64
}

// DefaultGridSpec is 1.0..7.0 kWh/m² by 0.25 and 50..75 % RH by 1
func DefaultGridSpec() GridSpec {
	return GridSpec{
		EnergyMin:  1.0,
		EnergyMax:  7.0,
		EnergyStep: 0.25,
		RHMin:      50,
		RHMax:      75,
		RHStep:     1,
	}
}

// GridRow is one grid point and its prediction
type GridRow struct {
	Season                string  `json:"season" msgpack:"season"`
	SolarEnergyKWhM2      float64 `json:"solar_energy_kwh_m2" msgpack:"solar_energy_kwh_m2"`
	RHPercent             float64 `json:"rh_percent" msgpack:"rh_percent"`
	PredictedLitersPerDay float64 `json:"predicted_liters_per_day" msgpack:"predicted_liters_per_day"`
}

// axis returns lo, lo+step, ... up to hi inclusive.  Points are computed
// from an integer count so float steps never drift past hi.
func axis(lo, hi, step float64) ([]float64, error) {
	if step <= 0 || hi < lo {
		return nil, fmt.Errorf("invalid axis %g..%g step %g", lo, hi, step)
	}
	n := int(math.Floor((hi-lo)/step+1e-9)) + 1
	v := make([]float64, n)
	for i := range v {
		v[i] = lo + float64(i)*step
	}
	return v, nil
}

// Size returns the number of rows Grid will produce
func (s GridSpec) Size() (int, error) {
	e, err := axis(s.EnergyMin, s.EnergyMax, s.EnergyStep)
	if err != nil {
		return 0, err
	}
	rh, err := axis(s.RHMin, s.RHMax, s.RHStep)
	if err != nil {
		return 0, err
	}
	return len(Seasons) * len(e) * len(rh), nil
}

// Grid evaluates m at every season x energy x humidity point.  Season does
// not enter the linear model; it is carried for the plotting tools.
func Grid(m yield.Model, s GridSpec) ([]GridRow, error) {
	energies, err := axis(s.EnergyMin, s.EnergyMax, s.EnergyStep)
	if err != nil {
		return nil, fmt.Errorf("energy axis: %w", err)
	}
	humidities, err := axis(s.RHMin, s.RHMax, s.RHStep)
	if err != nil {
		return nil, fmt.Errorf("humidity axis: %w", err)
	}

	rows := make([]GridRow, 0, len(Seasons)*len(energies)*len(humidities))
	for _, season := range Seasons {
		for _, e := range energies {
			for _, rh := range humidities {
				rows = append(rows, GridRow{
					Season:                season,
					SolarEnergyKWhM2:      e,
					RHPercent:             rh,
					PredictedLitersPerDay: m.Predict(e, rh),
				})
			}
		}
	}
	return rows, nil
}
