// Package energy integrates an irradiance time series into daily energy.
package energy

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

// Integration method names
const (
	MethodRiemann   = "riemann"
	MethodTrapezoid = "trapezoid"
)

// Integrator turns a day's irradiance samples into kWh/m²
type Integrator func(times []time.Time, ghi []float64, interval time.Duration) (float64, error)

// ForMethod returns the integrator for a configured method name.  The empty
// name selects the left Riemann sum.
func ForMethod(name string) (Integrator, error) {
	switch name {
	case "", MethodRiemann:
		return Integrate, nil
	case MethodTrapezoid:
		return IntegrateTrapezoid, nil
	default:
		return nil, fmt.Errorf("unknown integration method %q", name)
	}
}

// Durations returns the length in hours that each sample stands for.  Sample i
// spans up to sample i+1, which keeps daylight-saving days honest; the last
// sample spans the nominal interval.
func Durations(times []time.Time, interval time.Duration) []float64 {
	d := make([]float64, len(times))
	for i := range times {
		if i+1 < len(times) {
			d[i] = times[i+1].Sub(times[i]).Hours()
		} else {
			d[i] = interval.Hours()
		}
	}
	return d
}

// Integrate computes daily energy in kWh/m² as a left Riemann sum: each
// sample's irradiance (W/m²) is held constant over its span.
//
// TODO: the trapezoid rule removes the sunrise/sunset bias; switch the default
// once downstream yield tables have been regenerated against it.
func Integrate(times []time.Time, ghi []float64, interval time.Duration) (float64, error) {
	if len(times) != len(ghi) {
		return 0, fmt.Errorf("have %d timestamps but %d irradiance samples", len(times), len(ghi))
	}
	if len(times) == 0 {
		return 0, nil
	}

	wh := floats.Dot(ghi, Durations(times, interval))
	return wh / 1000.0, nil
}

// IntegrateTrapezoid computes daily energy in kWh/m² with the trapezoid rule
// over the sample instants plus the end of the final sample's span.
func IntegrateTrapezoid(times []time.Time, ghi []float64, interval time.Duration) (float64, error) {
	if len(times) != len(ghi) {
		return 0, fmt.Errorf("have %d timestamps but %d irradiance samples", len(times), len(ghi))
	}
	if len(times) == 0 {
		return 0, nil
	}

	x := make([]float64, len(times)+1)
	f := make([]float64, len(ghi)+1)
	for i, t := range times {
		x[i] = t.Sub(times[0]).Hours()
		f[i] = ghi[i]
	}
	// The day closes one interval after the last sample; hold the last value
	x[len(times)] = x[len(times)-1] + interval.Hours()
	f[len(ghi)] = ghi[len(ghi)-1]

	return integrate.Trapezoidal(x, f) / 1000.0, nil
}
