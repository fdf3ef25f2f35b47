package restserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/chrissnell/aeroaqua/internal/irradiance"
	"github.com/chrissnell/aeroaqua/internal/log"
	"github.com/chrissnell/aeroaqua/internal/pipeline"
	"github.com/chrissnell/aeroaqua/internal/storage"
	"github.com/chrissnell/aeroaqua/internal/sweep"
	"github.com/chrissnell/aeroaqua/internal/yield"
	"github.com/chrissnell/aeroaqua/pkg/config"
	"github.com/chrissnell/aeroaqua/pkg/responseformat"
	"github.com/chrissnell/aeroaqua/pkg/solar"
)

// Limits on client-controlled work
const (
	maxGridSize        = 100000
	defaultResultLimit = 50
	maxResultLimit     = 1000
	defaultGridPlaces  = 4
	healthMaxAge       = 3 * time.Minute
)

// errBadRequest marks errors caused by the caller's parameters
var errBadRequest = errors.New("bad request")

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	ctx       context.Context
	formatter *responseformat.Formatter
	location  solar.Location
	pipeline  config.PipelineData
	interval  time.Duration
	model     irradiance.LoadResult
	results   chan<- pipeline.Result
	store     ResultStore
	health    *storage.HealthManager
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctx context.Context, opts Options) (*Handlers, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("no configuration provided")
	}
	if opts.Model.Predictor == nil {
		return nil, fmt.Errorf("no irradiance model provided")
	}

	interval, err := opts.Config.Pipeline.IntervalDuration()
	if err != nil {
		return nil, err
	}
	if _, err := pipeline.FromConfig(opts.Config.Pipeline, opts.Model); err != nil {
		return nil, fmt.Errorf("invalid pipeline configuration: %w", err)
	}

	return &Handlers{
		ctx:       ctx,
		formatter: responseformat.NewFormatter(),
		location:  opts.Config.SolarLocation(),
		pipeline:  opts.Config.Pipeline,
		interval:  interval,
		model:     opts.Model,
		results:   opts.Results,
		store:     opts.Store,
		health:    opts.Health,
	}, nil
}

// GetPrediction runs a pipeline for one day.  Query parameters override the
// configured location, weather and pipeline settings.
func (h *Handlers) GetPrediction(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	in, err := h.inputs(q)
	if err != nil {
		h.writeError(w, err)
		return
	}

	p, err := h.newPipeline(q)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := p.Run(in)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.submit(result)

	headers := map[string]string{}
	if result.Untrustworthy {
		headers["X-Prediction-Untrustworthy"] = "true"
	}
	h.respond(w, req, resultBody(result), headers)
}

// GetPositions returns the apparent solar zenith for every sample of a day
func (h *Handlers) GetPositions(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	in, err := h.inputs(q)
	if err != nil {
		h.writeError(w, err)
		return
	}

	grid, samples, err := solar.Positions(in.Date, in.Location, in.Interval)
	if err != nil {
		h.writeError(w, err)
		return
	}

	body := positionsBody{
		Date:            grid.Start.Format(pipeline.DateLayout),
		Location:        in.Location,
		IntervalMinutes: grid.Interval.Minutes(),
		Samples:         samples,
	}
	if rise, set, ok := solar.SunTimes(grid.Start, in.Location); ok {
		body.Sunrise, body.Sunset = &rise, &set
	}

	h.respond(w, req, body, nil)
}

// GetGrid evaluates a coefficient set over the season x energy x humidity grid
func (h *Handlers) GetGrid(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	m, err := h.yieldModel(q)
	if err != nil {
		h.writeError(w, err)
		return
	}

	spec := sweep.DefaultGridSpec()
	for _, p := range []struct {
		name string
		v    *float64
	}{
		{"energy_min", &spec.EnergyMin},
		{"energy_max", &spec.EnergyMax},
		{"energy_step", &spec.EnergyStep},
		{"rh_min", &spec.RHMin},
		{"rh_max", &spec.RHMax},
		{"rh_step", &spec.RHStep},
	} {
		if *p.v, err = floatParam(q, p.name, *p.v); err != nil {
			h.writeError(w, err)
			return
		}
	}

	places, err := intParam(q, "places", defaultGridPlaces)
	if err != nil {
		h.writeError(w, err)
		return
	}

	n, err := spec.Size()
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if n > maxGridSize {
		h.writeError(w, fmt.Errorf("%w: grid of %d points exceeds the limit of %d", errBadRequest, n, maxGridSize))
		return
	}

	rows, err := sweep.Grid(m, spec)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	h.respond(w, req, gridBody{Coefficients: m, Rows: rows, places: places}, nil)
}

// GetCoefficients lists the available yield coefficient sets
func (h *Handlers) GetCoefficients(w http.ResponseWriter, req *http.Request) {
	body := coefficientsBody{Default: h.pipeline.CoefficientSet}
	if body.Default == "" {
		body.Default = yield.DefaultSet
	}

	for _, name := range yield.Names() {
		m, err := yield.Lookup(name)
		if err != nil {
			h.writeError(w, err)
			return
		}
		body.Sets = append(body.Sets, m)
	}

	h.respond(w, req, body, nil)
}

// GetResults returns the most recently stored predictions
func (h *Handlers) GetResults(w http.ResponseWriter, req *http.Request) {
	if h.store == nil {
		h.formatter.WriteError(w, http.StatusNotFound, "result storage is not enabled")
		return
	}

	limit, err := intParam(req.URL.Query(), "limit", defaultResultLimit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if limit <= 0 || limit > maxResultLimit {
		h.writeError(w, fmt.Errorf("%w: limit must be between 1 and %d", errBadRequest, maxResultLimit))
		return
	}

	results, err := h.store.RecentResults(req.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if results == nil {
		results = []pipeline.Result{}
	}

	h.respond(w, req, resultList(results), nil)
}

// GetHealth reports the model and storage state.  A fallback model degrades
// the service; an unhealthy storage backend fails the check.
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	body := healthBody{
		Status: "ok",
		Model: modelHealth{
			Path:     h.model.Path,
			Fallback: h.model.Fallback,
		},
	}
	if h.model.Fallback {
		body.Status = "degraded"
	}

	status := http.StatusOK
	if h.health != nil {
		body.Storage = h.health.GetAllHealth()
		if !h.health.AllHealthy(healthMaxAge) {
			body.Status = storage.StatusUnhealthy
			status = http.StatusServiceUnavailable
		}
	}

	if err := h.formatter.WriteResponseStatus(w, req, status, body, nil); err != nil {
		log.Errorf("error writing health response: %v", err)
	}
}

// inputs builds pipeline inputs from the configured defaults and the query
func (h *Handlers) inputs(q url.Values) (pipeline.Inputs, error) {
	loc, err := h.queryLocation(q)
	if err != nil {
		return pipeline.Inputs{}, err
	}
	tz, err := loc.TZ()
	if err != nil {
		return pipeline.Inputs{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	date := q.Get("date")
	if date == "" {
		date = time.Now().In(tz).Format(pipeline.DateLayout)
	}
	if _, err := solar.ParseDate(date, tz); err != nil {
		return pipeline.Inputs{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	in := pipeline.Inputs{
		Date:     date,
		Location: loc,
		Weather:  pipeline.DefaultWeather,
		Interval: h.interval,
	}

	if in.Weather.CloudType, err = floatParam(q, "cloud", in.Weather.CloudType); err != nil {
		return pipeline.Inputs{}, err
	}
	if in.Weather.RelativeHumidity, err = floatParam(q, "rh", in.Weather.RelativeHumidity); err != nil {
		return pipeline.Inputs{}, err
	}
	if in.Weather.TemperatureC, err = floatParam(q, "temp", in.Weather.TemperatureC); err != nil {
		return pipeline.Inputs{}, err
	}

	if v := q.Get("interval"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return pipeline.Inputs{}, fmt.Errorf("%w: invalid interval %q: %v", errBadRequest, v, err)
		}
		if d <= 0 {
			return pipeline.Inputs{}, fmt.Errorf("%w: interval must be positive", errBadRequest)
		}
		in.Interval = d
	}

	return in, nil
}

func (h *Handlers) queryLocation(q url.Values) (solar.Location, error) {
	loc := h.location
	var err error

	if loc.Latitude, err = floatParam(q, "lat", loc.Latitude); err != nil {
		return loc, err
	}
	if loc.Longitude, err = floatParam(q, "lon", loc.Longitude); err != nil {
		return loc, err
	}
	if loc.Altitude, err = floatParam(q, "alt", loc.Altitude); err != nil {
		return loc, err
	}
	if tz := q.Get("tz"); tz != "" {
		loc.Timezone = tz
	}

	if loc.Latitude < -90 || loc.Latitude > 90 {
		return loc, fmt.Errorf("%w: latitude %v out of range", errBadRequest, loc.Latitude)
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return loc, fmt.Errorf("%w: longitude %v out of range", errBadRequest, loc.Longitude)
	}
	return loc, nil
}

func (h *Handlers) yieldModel(q url.Values) (yield.Model, error) {
	name := q.Get("coefficients")
	if name == "" {
		name = h.pipeline.CoefficientSet
	}
	m, err := yield.Lookup(name)
	if err != nil {
		return yield.Model{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return m, nil
}

func (h *Handlers) newPipeline(q url.Values) (pipeline.Pipeline, error) {
	section := h.pipeline
	for name, v := range map[string]*string{
		"pipeline":     &section.Name,
		"clearsky":     &section.ClearSky,
		"integration":  &section.Integration,
		"coefficients": &section.CoefficientSet,
	} {
		if s := q.Get(name); s != "" {
			*v = s
		}
	}

	p, err := pipeline.FromConfig(section, h.model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return p, nil
}

// submit hands a result to storage without blocking the request
func (h *Handlers) submit(r pipeline.Result) {
	if h.results == nil {
		return
	}
	select {
	case h.results <- r:
	case <-h.ctx.Done():
	default:
		log.Warnw("result storage queue is full; dropping result", "run_id", r.RunID)
	}
}

func (h *Handlers) respond(w http.ResponseWriter, req *http.Request, data any, headers map[string]string) {
	err := h.formatter.WriteResponse(w, req, data, headers)
	switch {
	case errors.Is(err, responseformat.ErrCSVUnsupported):
		h.formatter.WriteError(w, http.StatusNotAcceptable, err.Error())
	case err != nil:
		log.Errorf("error writing response: %v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		h.formatter.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrNoData), errors.Is(err, solar.ErrNoSamples):
		h.formatter.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Errorf("request failed: %v", err)
		h.formatter.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func floatParam(q url.Values, name string, def float64) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, v)
	}
	return f, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, v)
	}
	return i, nil
}
