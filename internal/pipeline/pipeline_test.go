package pipeline

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/chrissnell/aeroaqua/internal/energy"
	"github.com/chrissnell/aeroaqua/internal/irradiance"
	"github.com/chrissnell/aeroaqua/internal/yield"
	"github.com/chrissnell/aeroaqua/pkg/config"
	"github.com/chrissnell/aeroaqua/pkg/solar"
)

// cosinePredictor scales a nominal 1000 W/m² by the cosine of the zenith
type cosinePredictor struct{}

func (cosinePredictor) Predict(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = 1000 * math.Cos(r[irradiance.ColZenith]*math.Pi/180)
	}
	return out, nil
}

// flatPredictor ignores its inputs
type flatPredictor float64

func (f flatPredictor) Predict(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i := range out {
		out[i] = float64(f)
	}
	return out, nil
}

func torontoInputs() Inputs {
	return Inputs{
		Date:     "2025-11-04",
		Location: solar.DefaultLocation(),
		Weather:  irradiance.Weather{CloudType: 0, RelativeHumidity: 50, TemperatureC: 20},
		Interval: 10 * time.Minute,
	}
}

func TestRegressorToronto(t *testing.T) {
	p := &Regressor{Predictor: cosinePredictor{}, ModelPath: "model.msgpack", Yield: yield.Published}

	r, err := p.Run(torontoInputs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.SolarEnergyKWhM2 <= 0 || r.SolarEnergyKWhM2 > 8 {
		t.Errorf("daily energy %f kWh/m² is outside (0, 8]", r.SolarEnergyKWhM2)
	}
	expected := 0.117 + 0.803*r.SolarEnergyKWhM2 + 0.001*50
	if math.Abs(r.PredictedLitersPerDay-expected) > 1e-12 {
		t.Errorf("prediction %f, expected %f", r.PredictedLitersPerDay, expected)
	}

	if r.Pipeline != NameRegressor || r.Date != "2025-11-04" || r.Timezone != "America/Toronto" {
		t.Errorf("inputs not echoed: %+v", r)
	}
	if r.Latitude != solar.DefaultLatitude || r.RHPercent != 50 || r.TemperatureC != 20 || r.IntervalMinutes != 10 {
		t.Errorf("inputs not echoed: %+v", r)
	}
	if r.CoefficientSet != yield.SetPublished || r.ModelPath != "model.msgpack" {
		t.Errorf("model provenance not recorded: %+v", r)
	}
	if r.Untrustworthy {
		t.Error("result from a loaded model flagged untrustworthy")
	}
	if r.RunID == "" {
		t.Error("missing run ID")
	}
	if r.Sunrise.IsZero() || !r.Sunrise.Before(r.Sunset) {
		t.Errorf("sunrise %v / sunset %v", r.Sunrise, r.Sunset)
	}
}

func TestRegressorNightIsZero(t *testing.T) {
	in := torontoInputs()
	p := &Regressor{Predictor: flatPredictor(1000), Yield: yield.Published}

	r, err := p.Run(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, samples, err := solar.Positions(in.Date, in.Location, in.Interval)
	if err != nil {
		t.Fatal(err)
	}
	var daylight int
	for _, s := range samples {
		if s.ApparentZenith < solar.NightZenith {
			daylight++
		}
	}

	// Each daylight sample contributes 1000 W/m² for ten minutes
	expected := float64(daylight) * 1000 * (10.0 / 60) / 1000
	if math.Abs(r.SolarEnergyKWhM2-expected) > 1e-9 {
		t.Errorf("energy %f, expected %f from %d daylight samples", r.SolarEnergyKWhM2, expected, daylight)
	}
	if daylight == len(samples) || daylight == 0 {
		t.Errorf("expected a mix of day and night samples, got %d of %d", daylight, len(samples))
	}
}

func TestRegressorFallbackUntrustworthy(t *testing.T) {
	p, err := New(NameRegressor, Options{
		Yield: yield.Published,
		Model: irradiance.LoadResult{Predictor: irradiance.Placeholder{}, Fallback: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := p.Run(torontoInputs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Untrustworthy {
		t.Error("placeholder result not flagged untrustworthy")
	}
}

func TestPhysicsToronto(t *testing.T) {
	for _, model := range []string{solar.ModelIneichenPerez, solar.ModelASCE, solar.ModelBras} {
		t.Run(model, func(t *testing.T) {
			p, err := New(NamePhysics, Options{ClearSky: model, Yield: yield.Standalone})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			r, err := p.Run(torontoInputs())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.SolarEnergyKWhM2 <= 0.5 || r.SolarEnergyKWhM2 > 8 {
				t.Errorf("daily clear-sky energy %f kWh/m² is implausible", r.SolarEnergyKWhM2)
			}
			expected := yield.Standalone.Predict(r.SolarEnergyKWhM2, 50)
			if r.PredictedLitersPerDay != expected {
				t.Errorf("prediction %f, expected %f", r.PredictedLitersPerDay, expected)
			}
			if r.Pipeline != NamePhysics || r.CoefficientSet != yield.SetStandalone {
				t.Errorf("unexpected provenance %q/%q", r.Pipeline, r.CoefficientSet)
			}
		})
	}
}

func TestRunDegenerateInterval(t *testing.T) {
	in := torontoInputs()
	in.Interval = -time.Minute

	pipelines := []Pipeline{
		&Physics{Yield: yield.Published},
		&Regressor{Predictor: flatPredictor(1), Yield: yield.Published},
	}
	for _, p := range pipelines {
		t.Run(p.Name(), func(t *testing.T) {
			if _, err := p.Run(in); !errors.Is(err, ErrNoData) {
				t.Errorf("expected ErrNoData, got %v", err)
			}
		})
	}
}

func TestRunResolvesOffsetDate(t *testing.T) {
	in := torontoInputs()
	in.Date = "2025-11-04T23:30:00-08:00"

	r, err := (&Regressor{Predictor: flatPredictor(0), Yield: yield.Published}).Run(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Date != "2025-11-05" {
		t.Errorf("resolved date %s, expected 2025-11-05", r.Date)
	}
}

func TestRunDefaultInterval(t *testing.T) {
	in := torontoInputs()
	in.Interval = 0

	r, err := (&Regressor{Predictor: flatPredictor(0), Yield: yield.Published}).Run(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.IntervalMinutes != solar.DefaultInterval.Minutes() {
		t.Errorf("interval %f, expected the default", r.IntervalMinutes)
	}
}

func TestTrapezoidIntegration(t *testing.T) {
	riemann, err := New(NameRegressor, Options{Yield: yield.Published, Model: irradiance.LoadResult{Predictor: cosinePredictor{}}})
	if err != nil {
		t.Fatal(err)
	}
	trap, err := New(NameRegressor, Options{
		Integration: energy.MethodTrapezoid,
		Yield:       yield.Published,
		Model:       irradiance.LoadResult{Predictor: cosinePredictor{}},
	})
	if err != nil {
		t.Fatal(err)
	}

	a, _ := riemann.Run(torontoInputs())
	b, _ := trap.Run(torontoInputs())
	if math.Abs(a.SolarEnergyKWhM2-b.SolarEnergyKWhM2) > 0.1 {
		t.Errorf("riemann %f and trapezoid %f disagree", a.SolarEnergyKWhM2, b.SolarEnergyKWhM2)
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name     string
		pipeline string
		opts     Options
	}{
		{name: "unknown pipeline", pipeline: "neural", opts: Options{Model: irradiance.LoadResult{Predictor: flatPredictor(0)}}},
		{name: "unknown integration", pipeline: NameRegressor, opts: Options{Integration: "simpson", Model: irradiance.LoadResult{Predictor: flatPredictor(0)}}},
		{name: "unknown clear-sky model", pipeline: NamePhysics, opts: Options{ClearSky: "solis"}},
		{name: "regressor without model", pipeline: NameRegressor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.pipeline, tt.opts); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	model := irradiance.LoadResult{Predictor: flatPredictor(500), Path: "m.msgpack"}

	tests := []struct {
		name     string
		section  config.PipelineData
		pipeline string
		wantErr  bool
	}{
		{name: "defaults", section: config.PipelineData{}, pipeline: NameRegressor},
		{name: "physics", section: config.PipelineData{Name: NamePhysics, ClearSky: "bras", BrasTurbidity: 2}, pipeline: NamePhysics},
		{name: "standalone coefficients", section: config.PipelineData{CoefficientSet: yield.SetStandalone}, pipeline: NameRegressor},
		{name: "unknown coefficients", section: config.PipelineData{CoefficientSet: "nope"}, wantErr: true},
		{name: "unknown integration", section: config.PipelineData{Integration: "simpson"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FromConfig(tt.section, model)
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.pipeline {
				t.Errorf("pipeline %s, expected %s", p.Name(), tt.pipeline)
			}
		})
	}
}
