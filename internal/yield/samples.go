package yield

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Sample CSV columns
const (
	ColumnRH     = "rh_percent"
	ColumnEnergy = "solar_energy_kwh_m2"
	ColumnLiters = "liters_per_day"
)

// ReadSamplesCSV loads harvest measurements from a CSV file
func ReadSamplesCSV(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sample CSV: %w", err)
	}
	defer f.Close()

	return ReadSamples(f)
}

// ReadSamples parses a header row naming rh_percent, solar_energy_kwh_m2 and
// liters_per_day, in any order, followed by one measurement per row.
func ReadSamples(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("sample CSV is empty")
		}
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}

	columns := []string{ColumnRH, ColumnEnergy, ColumnLiters}
	cols := make([]int, len(columns))
	for i, name := range columns {
		c, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("sample CSV has no %q column", name)
		}
		cols[i] = c
	}

	var out []Sample
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", line, err)
		}

		var v [3]float64
		for i, c := range cols {
			f, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("line %d column %q: invalid number %q", line, columns[i], rec[c])
			}
			v[i] = f
		}
		out = append(out, Sample{RHPercent: v[0], SolarEnergy: v[1], LitersPerDay: v[2]})
	}

	if len(out) == 0 {
		return nil, errors.New("sample CSV has no data rows")
	}
	return out, nil
}

// WriteResiduals writes each sample with m's prediction and residual
func WriteResiduals(w io.Writer, m Model, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColumnRH, ColumnEnergy, ColumnLiters, "predicted_liters_per_day", "residual"}); err != nil {
		return err
	}
	for _, s := range samples {
		p := m.Predict(s.SolarEnergy, s.RHPercent)
		record := []string{
			strconv.FormatFloat(s.RHPercent, 'f', -1, 64),
			strconv.FormatFloat(s.SolarEnergy, 'f', -1, 64),
			strconv.FormatFloat(s.LitersPerDay, 'f', -1, 64),
			strconv.FormatFloat(p, 'f', 4, 64),
			strconv.FormatFloat(s.LitersPerDay-p, 'f', 4, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Parameters is the number of fitted coefficients in a yield model
const Parameters = 3

// AIC is the Akaike information criterion of a fit with k parameters.
// Lower is better.  A perfect fit scores -Inf and an empty one +Inf.
func (s FitStats) AIC(k int) float64 {
	n := float64(s.SampleCount)
	mse := s.RootMeanSquaredError * s.RootMeanSquaredError
	switch {
	case n == 0:
		return math.Inf(1)
	case mse <= 0:
		return math.Inf(-1)
	}
	return 2*float64(k) + n*math.Log(mse)
}

// BIC is the Bayesian information criterion of a fit with k parameters
func (s FitStats) BIC(k int) float64 {
	n := float64(s.SampleCount)
	mse := s.RootMeanSquaredError * s.RootMeanSquaredError
	switch {
	case n == 0:
		return math.Inf(1)
	case mse <= 0:
		return math.Inf(-1)
	}
	return float64(k)*math.Log(n) + n*math.Log(mse)
}

// AdjustedRSquared penalizes R² for the k-1 predictors of the fit
func (s FitStats) AdjustedRSquared(k int) float64 {
	n := float64(s.SampleCount)
	if n-float64(k) <= 0 {
		return 0
	}
	return 1 - (1-s.RSquared)*(n-1)/(n-float64(k))
}
