package sweep

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/chrissnell/aeroaqua/internal/pipeline"
)

// PlotColumns is the header of the date x cloud sweep CSV
var PlotColumns = []string{
	"date",
	"latitude",
	"cloud_type",
	"rh_percent",
	"temperature_c",
	"solar_energy_kwh_m2",
	"predicted_liters_per_day",
	"untrustworthy",
}

func formatValue(v float64, places int) string {
	if places >= 0 {
		v = Round(v, places)
	}
	return formatFloat(v)
}

// WriteGridCSV writes grid rows under GridColumns.  Predictions are rounded
// to places decimals; a negative places writes them unrounded.
func WriteGridCSV(w io.Writer, rows []GridRow, places int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(GridColumns); err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{
			r.Season,
			formatValue(r.SolarEnergyKWhM2, -1),
			formatValue(r.RHPercent, -1),
			formatValue(r.PredictedLitersPerDay, places),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WritePlotCSV writes sweep results under PlotColumns
func WritePlotCSV(w io.Writer, results []pipeline.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PlotColumns); err != nil {
		return err
	}

	for _, r := range results {
		record := []string{
			r.Date,
			formatValue(r.Latitude, -1),
			formatValue(r.CloudType, -1),
			formatValue(r.RHPercent, -1),
			formatValue(r.TemperatureC, -1),
			formatValue(r.SolarEnergyKWhM2, -1),
			formatValue(r.PredictedLitersPerDay, -1),
			strconv.FormatBool(r.Untrustworthy),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
