package restserver

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/chrissnell/aeroaqua/internal/pipeline"
	"github.com/chrissnell/aeroaqua/internal/storage"
	"github.com/chrissnell/aeroaqua/internal/sweep"
	"github.com/chrissnell/aeroaqua/internal/yield"
	"github.com/chrissnell/aeroaqua/pkg/solar"
)

// resultBody is a single prediction
type resultBody pipeline.Result

func (r resultBody) WriteCSV(w io.Writer) error {
	return sweep.WritePlotCSV(w, []pipeline.Result{pipeline.Result(r)})
}

// resultList is a list of stored predictions
type resultList []pipeline.Result

func (l resultList) WriteCSV(w io.Writer) error {
	return sweep.WritePlotCSV(w, l)
}

type positionsBody struct {
	Date            string                 `json:"date"`
	Location        solar.Location         `json:"location"`
	IntervalMinutes float64                `json:"interval_minutes"`
	Sunrise         *time.Time             `json:"sunrise,omitempty"`
	Sunset          *time.Time             `json:"sunset,omitempty"`
	Samples         []solar.PositionSample `json:"samples"`
}

func (p positionsBody) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "apparent_zenith"}); err != nil {
		return err
	}
	for _, s := range p.Samples {
		record := []string{
			s.Time.Format(time.RFC3339),
			strconv.FormatFloat(s.ApparentZenith, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type gridBody struct {
	Coefficients yield.Model     `json:"coefficients"`
	Rows         []sweep.GridRow `json:"rows"`
	places       int
}

func (g gridBody) WriteCSV(w io.Writer) error {
	return sweep.WriteGridCSV(w, g.Rows, g.places)
}

type coefficientsBody struct {
	Default string        `json:"default"`
	Sets    []yield.Model `json:"sets"`
}

func (c coefficientsBody) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "intercept", "energy_coefficient", "humidity_coefficient", "default"}); err != nil {
		return err
	}
	for _, m := range c.Sets {
		record := []string{
			m.Name,
			strconv.FormatFloat(m.Intercept, 'f', -1, 64),
			strconv.FormatFloat(m.Energy, 'f', -1, 64),
			strconv.FormatFloat(m.Humidity, 'f', -1, 64),
			strconv.FormatBool(m.Name == c.Default),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type modelHealth struct {
	Path     string `json:"path,omitempty"`
	Fallback bool   `json:"fallback"`
}

type healthBody struct {
	Status  string                        `json:"status"`
	Model   modelHealth                   `json:"model"`
	Storage map[string]storage.HealthData `json:"storage,omitempty"`
}
