// Package yield predicts daily atmospheric water harvest from solar energy
// and relative humidity with a fixed linear model.
package yield

import (
	"fmt"
	"sort"
)

// Model is one coefficient set of
//
//	liters/day = Intercept + Energy*kWh/m² + Humidity*RH%
//
// Inputs are never validated; values outside the fitted range extrapolate.
type Model struct {
	Name      string  `json:"name" yaml:"name"`
	Intercept float64 `json:"intercept" yaml:"intercept"`
	Energy    float64 `json:"energy_coefficient" yaml:"energy_coefficient"`
	Humidity  float64 `json:"humidity_coefficient" yaml:"humidity_coefficient"`
}

// Named coefficient sets
const (
	SetPublished   = "published"
	SetStandalone  = "standalone"
	SetAppendixOLS = "appendix-ols"
)

// DefaultSet is the coefficient set used when none is configured
const DefaultSet = SetPublished

// Published is the reported fit used by the original prediction pipeline
var Published = Model{
	Name:      SetPublished,
	Intercept: 0.117,
	Energy:    0.803,
	Humidity:  0.001,
}

// Standalone is the hard-coded approximation shipped with the grid generator
var Standalone = Model{
	Name:      SetStandalone,
	Intercept: -1.4490,
	Energy:    0.4883,
	Humidity:  0.0605,
}

// Predict returns predicted liters per day.  The result may be negative when
// extrapolating.
func (m Model) Predict(energyKWhM2, rhPercent float64) float64 {
	return m.Intercept + m.Energy*energyKWhM2 + m.Humidity*rhPercent
}

// String implements fmt.Stringer
func (m Model) String() string {
	return fmt.Sprintf("%s: %.4f + %.4f*energy + %.4f*rh", m.Name, m.Intercept, m.Energy, m.Humidity)
}

// Lookup returns the named coefficient set.  The empty name returns DefaultSet.
func Lookup(name string) (Model, error) {
	switch name {
	case "", SetPublished:
		return Published, nil
	case SetStandalone:
		return Standalone, nil
	case SetAppendixOLS:
		m, err := Fit(Dataset())
		if err != nil {
			return Model{}, fmt.Errorf("fitting %s coefficients: %w", SetAppendixOLS, err)
		}
		m.Name = SetAppendixOLS
		return m, nil
	default:
		return Model{}, fmt.Errorf("unknown coefficient set %q (have %v)", name, Names())
	}
}

// Names lists the available coefficient sets
func Names() []string {
	names := []string{SetPublished, SetStandalone, SetAppendixOLS}
	sort.Strings(names)
	return names
}
