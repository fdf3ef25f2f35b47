package sweep

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/aeroaqua/internal/pipeline"
	"github.com/chrissnell/aeroaqua/internal/yield"
)

func TestDefaultGrid(t *testing.T) {
	rows, err := Grid(yield.Published, DefaultGridSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rows) != 4*25*26 {
		t.Fatalf("got %d rows, expected 2600", len(rows))
	}
	if n, _ := DefaultGridSpec().Size(); n != len(rows) {
		t.Errorf("Size() = %d, Grid produced %d", n, len(rows))
	}

	for i, r := range rows {
		expected := 0.117 + 0.803*r.SolarEnergyKWhM2 + 0.001*r.RHPercent
		if math.Abs(r.PredictedLitersPerDay-expected) > 1e-12 {
			t.Fatalf("row %d: %+v, expected prediction %f", i, r, expected)
		}
	}

	first, last := rows[0], rows[len(rows)-1]
	if first.Season != "Summer" || first.SolarEnergyKWhM2 != 1.0 || first.RHPercent != 50 {
		t.Errorf("first row %+v", first)
	}
	if last.Season != "Winter" || last.SolarEnergyKWhM2 != 7.0 || last.RHPercent != 75 {
		t.Errorf("last row %+v", last)
	}
}

func TestGridInvalidAxis(t *testing.T) {
	tests := []struct {
		name string
		spec GridSpec
	}{
		{name: "zero energy step", spec: GridSpec{EnergyMin: 1, EnergyMax: 2, RHMin: 50, RHMax: 60, RHStep: 1}},
		{name: "inverted humidity", spec: GridSpec{EnergyMin: 1, EnergyMax: 2, EnergyStep: 1, RHMin: 60, RHMax: 50, RHStep: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Grid(yield.Published, tt.spec); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestWriteGridCSV(t *testing.T) {
	rows, err := Grid(yield.Standalone, DefaultGridSpec())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteGridCSV(&buf, rows, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "Season,Solar_Energy_kwh_m2,RH_Percent,Predicted Water (L/day)" {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines) != 2601 {
		t.Errorf("got %d lines, expected 2601", len(lines))
	}
	// -1.4490 + 0.4883*1 + 0.0605*50
	if lines[1] != "Summer,1.0,50.0,2.0643" {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestSeasonal(t *testing.T) {
	samples := SeasonalSamples()
	if len(samples) != 12 {
		t.Fatalf("got %d samples, expected 12", len(samples))
	}

	results := Seasonal(yield.Published, samples)
	if results[0].Season != "summer" || results[0].Label != "clear" || results[0].PredictedLitersPerDay != 5.793 {
		t.Errorf("summer clear = %+v", results[0])
	}

	grouped := GroupBySeason(results)
	for _, s := range []string{"summer", "spring", "fall", "winter"} {
		if len(grouped[s]) != 3 {
			t.Errorf("season %s has %d samples", s, len(grouped[s]))
		}
	}

	var buf bytes.Buffer
	if err := WriteSeasonalMarkdown(&buf, results, time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	md := buf.String()
	for _, want := range []string{
		"# Seasonal test results\n# generated: 2025-11-04\n",
		"\n## Summer\n- clear: solar_energy_kwh_m2=7.0, rh_percent=55.0, predicted_liters_per_day=5.793\n",
		"\n## Winter\n",
		"- cloudy: solar_energy_kwh_m2=3.5, rh_percent=70.0",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown is missing %q:\n%s", want, md)
		}
	}
}

func TestDefaultPlotSpec(t *testing.T) {
	s := DefaultPlotSpec()
	dates := s.Dates()
	if len(dates) != 73 {
		t.Errorf("got %d dates, expected 73", len(dates))
	}
	if dates[0] != "2025-01-01" || dates[len(dates)-1] != "2025-12-27" {
		t.Errorf("dates run %s..%s", dates[0], dates[len(dates)-1])
	}

	in := s.Inputs()
	if len(in) != 73*11 {
		t.Fatalf("got %d inputs, expected %d", len(in), 73*11)
	}
	if in[12].Date != "2025-01-06" || in[12].Weather.CloudType != 1 || in[12].Weather.RelativeHumidity != 65 {
		t.Errorf("input 12 = %+v", in[12])
	}
}

// scriptedPipeline fails on chosen dates
type scriptedPipeline struct {
	noData map[string]bool
	broken map[string]bool
}

func (scriptedPipeline) Name() string { return "scripted" }

func (p scriptedPipeline) Run(in pipeline.Inputs) (pipeline.Result, error) {
	switch {
	case p.noData[in.Date]:
		return pipeline.Result{}, pipeline.ErrNoData
	case p.broken[in.Date]:
		return pipeline.Result{}, errors.New("boom")
	}
	return pipeline.Result{Date: in.Date, CloudType: in.Weather.CloudType}, nil
}

func TestRunSkipsBadDays(t *testing.T) {
	spec := DefaultPlotSpec()
	spec.End = spec.Start.AddDate(0, 0, 20)
	inputs := spec.Inputs()

	p := scriptedPipeline{
		noData: map[string]bool{"2025-01-06": true},
		broken: map[string]bool{"2025-01-16": true},
	}

	results, report, err := Run(context.Background(), p, inputs, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Jobs != 55 || report.NoData != 11 || report.Failed != 11 || report.Results != 33 {
		t.Errorf("report = %+v", report)
	}
	if len(results) != 33 {
		t.Fatalf("got %d results", len(results))
	}

	// Input order survives parallel execution
	expected := []string{"2025-01-01", "2025-01-11", "2025-01-21"}
	for i, r := range results {
		if r.Date != expected[i/11] || r.CloudType != float64(i%11) {
			t.Fatalf("result %d = %s/%v", i, r.Date, r.CloudType)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, _, err := Run(ctx, scriptedPipeline{}, DefaultPlotSpec().Inputs(), 2)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results after cancellation", len(results))
	}
}

func TestWritePlotCSV(t *testing.T) {
	results := []pipeline.Result{{
		Date:                  "2025-11-04",
		Latitude:              43.6532,
		CloudType:             2,
		RHPercent:             65,
		TemperatureC:          12,
		SolarEnergyKWhM2:      2.5,
		PredictedLitersPerDay: 2.1895,
		Untrustworthy:         true,
	}}

	var buf bytes.Buffer
	if err := WritePlotCSV(&buf, results); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "date,latitude,cloud_type,rh_percent,temperature_c,solar_energy_kwh_m2,predicted_liters_per_day,untrustworthy\n" +
		"2025-11-04,43.6532,2.0,65.0,12.0,2.5,2.1895,true\n"
	if buf.String() != expected {
		t.Errorf("got:\n%s\nexpected:\n%s", buf.String(), expected)
	}
}
