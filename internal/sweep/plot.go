package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/chrissnell/aeroaqua/internal/irradiance"
	"github.com/chrissnell/aeroaqua/internal/log"
	"github.com/chrissnell/aeroaqua/internal/pipeline"
	"github.com/chrissnell/aeroaqua/pkg/solar"
)

// PlotSpec describes a date x cloud type sweep at one location
type PlotSpec struct {
	Start        time.Time
	End          time.Time
	StepDays     int
	CloudTypes   []float64
	Location     solar.Location
	RHPercent    float64
	TemperatureC float64
	Interval     time.Duration
}

// DefaultPlotSpec is every fifth day of 2025 in Toronto at cloud types 0..10,
// 65 % RH and 12 °C
func DefaultPlotSpec() PlotSpec {
	clouds := make([]float64, 11)
	for i := range clouds {
		clouds[i] = float64(i)
	}
	return PlotSpec{
		Start:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		StepDays:     5,
		CloudTypes:   clouds,
		Location:     solar.DefaultLocation(),
		RHPercent:    65,
		TemperatureC: 12,
		Interval:     solar.DefaultInterval,
	}
}

// Dates lists the swept calendar dates, Start through End inclusive
func (s PlotSpec) Dates() []string {
	step := s.StepDays
	if step <= 0 {
		step = 1
	}
	var dates []string
	for d := s.Start; !d.After(s.End); d = d.AddDate(0, 0, step) {
		dates = append(dates, d.Format(pipeline.DateLayout))
	}
	return dates
}

// Inputs expands the spec into one pipeline input per date and cloud type,
// dates outermost
func (s PlotSpec) Inputs() []pipeline.Inputs {
	var in []pipeline.Inputs
	for _, d := range s.Dates() {
		for _, c := range s.CloudTypes {
			in = append(in, pipeline.Inputs{
				Date:     d,
				Location: s.Location,
				Weather: irradiance.Weather{
					CloudType:        c,
					RelativeHumidity: s.RHPercent,
					TemperatureC:     s.TemperatureC,
				},
				Interval: s.Interval,
			})
		}
	}
	return in
}

// Report counts what happened during a sweep
type Report struct {
	Jobs    int
	Results int
	NoData  int
	Failed  int
}

// Run evaluates p over every input on a pool of workers and returns the
// results in input order.  Days without data and days that fail are logged
// and skipped.  Cancelling ctx stops dispatching new jobs; it returns the
// results gathered so far along with ctx.Err().
func Run(ctx context.Context, p pipeline.Pipeline, inputs []pipeline.Inputs, workers int) ([]pipeline.Result, Report, error) {
	if workers <= 0 {
		workers = 1
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, Report{}, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	type slot struct {
		result pipeline.Result
		err    error
		done   bool
	}
	slots := make([]slot, len(inputs))

	var wg sync.WaitGroup
	var ctxErr error

dispatch:
	for i := range inputs {
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break dispatch
		default:
		}

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			r, err := p.Run(inputs[i])
			slots[i] = slot{result: r, err: err, done: true}
		})
		if err != nil {
			wg.Done()
			ctxErr = fmt.Errorf("submitting job %d: %w", i, err)
			break
		}
	}
	wg.Wait()

	report := Report{Jobs: len(inputs)}
	results := make([]pipeline.Result, 0, len(inputs))
	for i, s := range slots {
		switch {
		case !s.done:
		case errors.Is(s.err, pipeline.ErrNoData):
			report.NoData++
			log.Warnw("no data for day, skipping", "date", inputs[i].Date, "cloud_type", inputs[i].Weather.CloudType)
		case s.err != nil:
			report.Failed++
			log.Errorw("prediction failed, skipping", "date", inputs[i].Date, "cloud_type", inputs[i].Weather.CloudType, "error", s.err)
		default:
			results = append(results, s.result)
		}
	}
	report.Results = len(results)

	return results, report, ctxErr
}
