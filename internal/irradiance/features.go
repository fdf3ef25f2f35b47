// Package irradiance predicts global horizontal irradiance from solar zenith
// and daily weather with a pretrained tree-ensemble regressor.
package irradiance

import (
	"fmt"
	"math"
	"time"
)

// FeatureColumns is the exact column order the regressor is trained on.
// Rows passed to a Predictor must follow it; a different order produces
// silently wrong predictions.
var FeatureColumns = []string{
	"Cloud Type",
	"Solar Zenith Angle",
	"Relative Humidity",
	"Temperature",
	"Month",
	"Day",
	"Hour",
}

// TargetColumn is the name of the training label
const TargetColumn = "GHI"

// Column indexes into a feature row
const (
	ColCloudType = iota
	ColZenith
	ColHumidity
	ColTemperature
	ColMonth
	ColDay
	ColHour
	numFeatures
)

// nightZenith matches solar.NightZenith
const nightZenith = 90.0

// Weather holds the day's scalar weather inputs, applied to every sample
type Weather struct {
	CloudType        float64 `json:"cloud_type"`
	RelativeHumidity float64 `json:"rh_percent"`
	TemperatureC     float64 `json:"temperature_c"`
}

// Series is a per-sample GHI series in W/m²
type Series []float64

// Predictor maps feature rows (in FeatureColumns order) to GHI predictions.
// Implementations must be safe for concurrent use once constructed.
type Predictor interface {
	Predict(rows [][]float64) ([]float64, error)
}

// BuildFeatures assembles one feature row per timestamp.  The weather scalars
// are broadcast unchanged to every row and any NaN is replaced with zero.
func BuildFeatures(times []time.Time, zenith []float64, w Weather) ([][]float64, error) {
	if len(times) != len(zenith) {
		return nil, fmt.Errorf("have %d timestamps but %d zenith samples", len(times), len(zenith))
	}

	rows := make([][]float64, len(times))
	for i, t := range times {
		row := make([]float64, numFeatures)
		row[ColCloudType] = w.CloudType
		row[ColZenith] = zenith[i]
		row[ColHumidity] = w.RelativeHumidity
		row[ColTemperature] = w.TemperatureC
		row[ColMonth] = float64(t.Month())
		row[ColDay] = float64(t.Day())
		row[ColHour] = float64(t.Hour())

		for j, v := range row {
			if math.IsNaN(v) {
				row[j] = 0
			}
		}
		rows[i] = row
	}
	return rows, nil
}

// PredictSeries runs p over the day's samples.  Samples with the sun at or
// below the horizon are forced to zero, as are negative predictions.
func PredictSeries(p Predictor, times []time.Time, zenith []float64, w Weather) (Series, error) {
	rows, err := BuildFeatures(times, zenith, w)
	if err != nil {
		return nil, err
	}

	pred, err := p.Predict(rows)
	if err != nil {
		return nil, fmt.Errorf("irradiance prediction failed: %w", err)
	}
	if len(pred) != len(rows) {
		return nil, fmt.Errorf("predictor returned %d values for %d rows", len(pred), len(rows))
	}

	out := make(Series, len(pred))
	for i, v := range pred {
		switch {
		case rows[i][ColZenith] >= nightZenith:
			out[i] = 0
		case v < 0 || math.IsNaN(v):
			out[i] = 0
		default:
			out[i] = v
		}
	}
	return out, nil
}

// Placeholder stands in for a missing trained model.  Its output is a crude
// shape, not a forecast: 800*(1-cloud type) W/m² while the sun is more than
// five degrees up, zero otherwise.
type Placeholder struct{}

// Predict implements Predictor
func (Placeholder) Predict(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, r := range rows {
		if len(r) != numFeatures {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(r), numFeatures)
		}
		if r[ColZenith] < 85 {
			out[i] = 800 * (1 - r[ColCloudType])
		}
	}
	return out, nil
}
