// Package pipeline chains solar position, irradiance, energy integration and
// the yield model into a single daily water-harvest prediction.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/aeroaqua/internal/energy"
	"github.com/chrissnell/aeroaqua/internal/irradiance"
	"github.com/chrissnell/aeroaqua/internal/yield"
	"github.com/chrissnell/aeroaqua/pkg/solar"
)

// Pipeline names
const (
	NamePhysics   = "physics"
	NameRegressor = "regressor"
)

// ErrNoData is returned when the day's time grid has no samples.  Batch
// callers skip the day.
var ErrNoData = errors.New("no samples for requested day")

// DateLayout is the layout of Result.Date
const DateLayout = "2006-01-02"

// DefaultWeather is used for conditions a caller leaves unset
var DefaultWeather = irradiance.Weather{CloudType: 0, RelativeHumidity: 50, TemperatureC: 20}

// Inputs are the per-invocation pipeline inputs
type Inputs struct {
	Date     string
	Location solar.Location
	Weather  irradiance.Weather
	Interval time.Duration
}

// Result echoes the inputs alongside the intermediate energy and the prediction
type Result struct {
	RunID                 string    `json:"run_id" msgpack:"run_id"`
	Pipeline              string    `json:"pipeline" msgpack:"pipeline"`
	Date                  string    `json:"date" msgpack:"date"`
	Latitude              float64   `json:"latitude" msgpack:"latitude"`
	Longitude             float64   `json:"longitude" msgpack:"longitude"`
	Altitude              float64   `json:"altitude" msgpack:"altitude"`
	Timezone              string    `json:"timezone" msgpack:"timezone"`
	CloudType             float64   `json:"cloud_type" msgpack:"cloud_type"`
	RHPercent             float64   `json:"rh_percent" msgpack:"rh_percent"`
	TemperatureC          float64   `json:"temperature_c" msgpack:"temperature_c"`
	IntervalMinutes       float64   `json:"interval_minutes" msgpack:"interval_minutes"`
	SolarEnergyKWhM2      float64   `json:"solar_energy_kwh_m2" msgpack:"solar_energy_kwh_m2"`
	PredictedLitersPerDay float64   `json:"predicted_liters_per_day" msgpack:"predicted_liters_per_day"`
	CoefficientSet        string    `json:"coefficient_set" msgpack:"coefficient_set"`
	Sunrise               time.Time `json:"sunrise" msgpack:"sunrise"`
	Sunset                time.Time `json:"sunset" msgpack:"sunset"`
	Untrustworthy         bool      `json:"untrustworthy" msgpack:"untrustworthy"`
	ModelPath             string    `json:"model_path,omitempty" msgpack:"model_path,omitempty"`
}

// Pipeline turns one day's inputs into a Result
type Pipeline interface {
	Name() string
	Run(in Inputs) (Result, error)
}

// Options selects and configures a pipeline
type Options struct {
	ClearSky        string
	ClearSkyOptions solar.ClearSkyOptions
	Integration     string
	Yield           yield.Model
	Model           irradiance.LoadResult
}

// New builds the named pipeline.  The empty name selects the regressor pipeline.
func New(name string, opts Options) (Pipeline, error) {
	integrate, err := energy.ForMethod(opts.Integration)
	if err != nil {
		return nil, err
	}

	switch name {
	case NamePhysics:
		if _, err := solar.NewClearSkyModel(opts.ClearSky, opts.ClearSkyOptions); err != nil {
			return nil, err
		}
		return &Physics{
			ClearSky:  opts.ClearSky,
			Options:   opts.ClearSkyOptions,
			Yield:     opts.Yield,
			Integrate: integrate,
		}, nil
	case "", NameRegressor:
		if opts.Model.Predictor == nil {
			return nil, errors.New("regressor pipeline requires an irradiance model")
		}
		return &Regressor{
			Predictor: opts.Model.Predictor,
			ModelPath: opts.Model.Path,
			Fallback:  opts.Model.Fallback,
			Yield:     opts.Yield,
			Integrate: integrate,
		}, nil
	default:
		return nil, fmt.Errorf("unknown pipeline %q", name)
	}
}

// dayGrid resolves the inputs' date to a grid, mapping an empty grid to ErrNoData
func dayGrid(in Inputs) (solar.TimeGrid, error) {
	grid, err := solar.DayGrid(in.Date, in.Location, in.interval())
	if errors.Is(err, solar.ErrNoSamples) {
		return solar.TimeGrid{}, ErrNoData
	}
	return grid, err
}

func (in Inputs) interval() time.Duration {
	if in.Interval == 0 {
		return solar.DefaultInterval
	}
	return in.Interval
}

// newResult fills the echoed fields shared by both pipelines
func newResult(name string, in Inputs, grid solar.TimeGrid, y yield.Model) Result {
	r := Result{
		RunID:           uuid.NewString(),
		Pipeline:        name,
		Date:            grid.Start.Format(DateLayout),
		Latitude:        in.Location.Latitude,
		Longitude:       in.Location.Longitude,
		Altitude:        in.Location.Altitude,
		Timezone:        in.Location.Timezone,
		CloudType:       in.Weather.CloudType,
		RHPercent:       in.Weather.RelativeHumidity,
		TemperatureC:    in.Weather.TemperatureC,
		IntervalMinutes: grid.Interval.Minutes(),
		CoefficientSet:  y.Name,
	}
	if rise, set, ok := solar.SunTimes(grid.Start, in.Location); ok {
		r.Sunrise, r.Sunset = rise, set
	}
	return r
}

func (r *Result) finish(energyKWhM2 float64, y yield.Model) {
	r.SolarEnergyKWhM2 = energyKWhM2
	r.PredictedLitersPerDay = y.Predict(energyKWhM2, r.RHPercent)
}

// Physics estimates daily energy from a clear-sky model alone
type Physics struct {
	ClearSky  string
	Options   solar.ClearSkyOptions
	Yield     yield.Model
	Integrate energy.Integrator
}

// Name implements Pipeline
func (p *Physics) Name() string { return NamePhysics }

// Run implements Pipeline.  Weather-dependent clear-sky models take the day's
// temperature and humidity from the inputs.
func (p *Physics) Run(in Inputs) (Result, error) {
	grid, err := dayGrid(in)
	if err != nil {
		return Result{}, err
	}

	opts := p.Options
	opts.TemperatureC = in.Weather.TemperatureC
	opts.RelativeHumidity = in.Weather.RelativeHumidity
	model, err := solar.NewClearSkyModel(p.ClearSky, opts)
	if err != nil {
		return Result{}, err
	}

	irr := make([]solar.Irradiance, grid.Len())
	for i, s := range solar.PositionsForGrid(grid, in.Location) {
		irr[i] = solar.Irradiance{Time: s.Time}
		if s.ApparentZenith < solar.NightZenith {
			irr[i] = model.ClearSky(s.Time, s.ApparentZenith, in.Location)
		}
	}

	kwh, err := integratorOrDefault(p.Integrate)(grid.Times, solar.GHISeries(irr), grid.Interval)
	if err != nil {
		return Result{}, fmt.Errorf("integrating clear-sky irradiance: %w", err)
	}

	r := newResult(NamePhysics, in, grid, p.Yield)
	r.finish(kwh, p.Yield)
	return r, nil
}

func integratorOrDefault(f energy.Integrator) energy.Integrator {
	if f == nil {
		return energy.Integrate
	}
	return f
}

// Regressor estimates daily energy with the learned irradiance model
type Regressor struct {
	Predictor irradiance.Predictor
	ModelPath string
	Fallback  bool
	Yield     yield.Model
	Integrate energy.Integrator
}

// Name implements Pipeline
func (p *Regressor) Name() string { return NameRegressor }

// Run implements Pipeline.  Results from the placeholder predictor are
// marked Untrustworthy.
func (p *Regressor) Run(in Inputs) (Result, error) {
	grid, err := dayGrid(in)
	if err != nil {
		return Result{}, err
	}

	zenith := solar.Zeniths(solar.PositionsForGrid(grid, in.Location))
	ghi, err := irradiance.PredictSeries(p.Predictor, grid.Times, zenith, in.Weather)
	if err != nil {
		return Result{}, err
	}

	kwh, err := integratorOrDefault(p.Integrate)(grid.Times, ghi, grid.Interval)
	if err != nil {
		return Result{}, fmt.Errorf("integrating predicted irradiance: %w", err)
	}

	r := newResult(NameRegressor, in, grid, p.Yield)
	r.Untrustworthy = p.Fallback
	r.ModelPath = p.ModelPath
	r.finish(kwh, p.Yield)
	return r, nil
}
