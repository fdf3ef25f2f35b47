package yield

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Sample is one observed (RH, solar energy, yield) row
type Sample struct {
	RHPercent    float64 `json:"rh_percent"`
	SolarEnergy  float64 `json:"solar_energy_kwh_m2"`
	LitersPerDay float64 `json:"liters_per_day"`
}

// FitStats summarizes how well a model reproduces a set of samples
type FitStats struct {
	RSquared             float64
	MeanAbsoluteError    float64
	RootMeanSquaredError float64
	SampleCount          int
}

// Dataset returns the 30 published sorbent-harvester measurements:
// RH of 20-70% against daily solar energy of 5.0-6.66 kWh/m².
func Dataset() []Sample {
	energies := []float64{5, 5.41, 5.83, 6.25, 6.66}
	rhs := []float64{20, 30, 40, 50, 60, 70}
	liters := [][]float64{
		{2.5, 3.0, 3.5, 4.0, 4.0, 4.5},
		{3.0, 3.5, 4.0, 4.0, 4.5, 5.0},
		{3.0, 3.5, 4.0, 4.5, 5.0, 5.5},
		{3.0, 4.0, 4.5, 5.0, 5.5, 6.0},
		{3.5, 4.0, 5.0, 5.5, 6.0, 6.0},
	}

	out := make([]Sample, 0, len(energies)*len(rhs))
	for i, e := range energies {
		for j, rh := range rhs {
			out = append(out, Sample{RHPercent: rh, SolarEnergy: e, LitersPerDay: liters[i][j]})
		}
	}
	return out
}

// Fit finds the ordinary least squares coefficients of the yield model
func Fit(samples []Sample) (Model, error) {
	n := len(samples)
	if n < 3 {
		return Model{}, fmt.Errorf("need at least 3 samples to fit, have %d", n)
	}

	X := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i, s := range samples {
		X.Set(i, 0, 1)
		X.Set(i, 1, s.SolarEnergy)
		X.Set(i, 2, s.RHPercent)
		y.SetVec(i, s.LitersPerDay)
	}

	var beta mat.VecDense
	if err := beta.SolveVec(X, y); err != nil {
		return Model{}, fmt.Errorf("least squares solve failed: %w", err)
	}

	m := Model{
		Intercept: beta.AtVec(0),
		Energy:    beta.AtVec(1),
		Humidity:  beta.AtVec(2),
	}
	if math.IsNaN(m.Intercept) || math.IsNaN(m.Energy) || math.IsNaN(m.Humidity) {
		return Model{}, errors.New("samples do not determine the coefficients")
	}
	return m, nil
}

// Evaluate computes fit statistics for m over samples
func Evaluate(m Model, samples []Sample) FitStats {
	n := len(samples)
	if n == 0 {
		return FitStats{}
	}

	actual := make([]float64, n)
	predicted := make([]float64, n)
	var absSum, sqSum float64
	for i, s := range samples {
		actual[i] = s.LitersPerDay
		predicted[i] = m.Predict(s.SolarEnergy, s.RHPercent)
		r := actual[i] - predicted[i]
		absSum += math.Abs(r)
		sqSum += r * r
	}

	return FitStats{
		RSquared:             stat.RSquaredFrom(predicted, actual, nil),
		MeanAbsoluteError:    absSum / float64(n),
		RootMeanSquaredError: math.Sqrt(sqSum / float64(n)),
		SampleCount:          n,
	}
}
