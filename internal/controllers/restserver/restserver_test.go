package restserver

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/aeroaqua/internal/irradiance"
	"github.com/chrissnell/aeroaqua/internal/pipeline"
	"github.com/chrissnell/aeroaqua/internal/storage"
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

type fakeStore struct {
	results []pipeline.Result
	err     error
}

func (f fakeStore) RecentResults(_ context.Context, limit int) ([]pipeline.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.results) {
		return f.results[:limit], nil
	}
	return f.results, nil
}

func testConfig(t *testing.T) *config.ConfigData {
	t.Helper()
	cfg, err := config.ParseYAML([]byte("rest: {}\n"))
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func loadedModel() irradiance.LoadResult {
	return irradiance.LoadResult{Predictor: cosinePredictor{}, Path: "model.msgpack"}
}

func newTestRouter(t *testing.T, opts Options) *mux.Router {
	t.Helper()
	if opts.Config == nil {
		opts.Config = testConfig(t)
	}
	if opts.Model.Predictor == nil {
		opts.Model = loadedModel()
	}
	h, err := NewHandlers(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewHandlers: %v", err)
	}
	return NewRouter(h)
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetPredictionMatchesPipeline(t *testing.T) {
	results := make(chan pipeline.Result, 1)
	router := newTestRouter(t, Options{Results: results})

	rec := get(router, "/api/v1/predict?date=2025-11-04&cloud=2&rh=60&temp=15")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response has no request ID")
	}
	if rec.Header().Get("X-Prediction-Untrustworthy") != "" {
		t.Error("loaded model flagged untrustworthy")
	}

	var got pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	p, err := pipeline.New("", pipeline.Options{Yield: yield.Published, Model: loadedModel()})
	if err != nil {
		t.Fatal(err)
	}
	want, err := p.Run(pipeline.Inputs{
		Date:     "2025-11-04",
		Location: solar.DefaultLocation(),
		Weather:  irradiance.Weather{CloudType: 2, RelativeHumidity: 60, TemperatureC: 15},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got.Pipeline != want.Pipeline || got.Date != want.Date || got.CoefficientSet != want.CoefficientSet ||
		got.ModelPath != want.ModelPath || got.RHPercent != 60 || got.CloudType != 2 {
		t.Errorf("got %+v\nexpected %+v", got, want)
	}
	if got.SolarEnergyKWhM2 != want.SolarEnergyKWhM2 || got.PredictedLitersPerDay != want.PredictedLitersPerDay {
		t.Errorf("prediction %v (%v kWh/m²), expected %v (%v kWh/m²)",
			got.PredictedLitersPerDay, got.SolarEnergyKWhM2, want.PredictedLitersPerDay, want.SolarEnergyKWhM2)
	}
	if !got.Sunrise.Equal(want.Sunrise) {
		t.Errorf("sunrise %s, expected %s", got.Sunrise, want.Sunrise)
	}

	select {
	case stored := <-results:
		if stored.RunID != got.RunID {
			t.Errorf("stored run %s, served %s", stored.RunID, got.RunID)
		}
	default:
		t.Error("prediction was not submitted for storage")
	}
}

func TestGetPredictionFallbackModel(t *testing.T) {
	router := newTestRouter(t, Options{Model: irradiance.LoadResult{Predictor: irradiance.Placeholder{}, Fallback: true}})

	rec := get(router, "/api/v1/predict?date=2025-06-21")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Prediction-Untrustworthy") != "true" {
		t.Error("fallback prediction not flagged")
	}
	var got pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.Untrustworthy {
		t.Error("result not marked untrustworthy")
	}
}

func TestGetPredictionPhysics(t *testing.T) {
	router := newTestRouter(t, Options{})

	rec := get(router, "/api/v1/predict?date=2025-06-21&pipeline=physics&clearsky=asce&coefficients=standalone")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var got pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Pipeline != pipeline.NamePhysics || got.CoefficientSet != yield.SetStandalone || got.SolarEnergyKWhM2 <= 0 {
		t.Errorf("result = %+v", got)
	}
}

func TestGetPredictionBadRequests(t *testing.T) {
	router := newTestRouter(t, Options{})

	tests := []struct {
		name  string
		query string
	}{
		{name: "bad date", query: "date=2025-13-45"},
		{name: "bad cloud", query: "cloud=overcast"},
		{name: "latitude out of range", query: "lat=95"},
		{name: "unknown timezone", query: "tz=Mars/Olympus"},
		{name: "unknown pipeline", query: "pipeline=magic"},
		{name: "unknown coefficients", query: "coefficients=nope"},
		{name: "unknown integration", query: "integration=simpson"},
		{name: "negative interval", query: "interval=-5m"},
		{name: "bad interval", query: "interval=often"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := url.Values{"date": {"2025-11-04"}}
			override, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			for k, v := range override {
				q[k] = v
			}

			rec := get(router, "/api/v1/predict?"+q.Encode())
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status %d: %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Errorf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestGetPredictionFormats(t *testing.T) {
	router := newTestRouter(t, Options{})

	rec := get(router, "/api/v1/predict?date=2025-11-04&format=csv")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "text/csv" {
		t.Fatalf("status %d, content type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "date,latitude,cloud_type") || !strings.HasPrefix(lines[1], "2025-11-04,43.6532,") {
		t.Errorf("csv = %q", rec.Body.String())
	}

	rec = get(router, "/api/v1/predict?date=2025-11-04&format=msgpack")
	if rec.Header().Get("Content-Type") != "application/x-msgpack" {
		t.Fatalf("content type %q", rec.Header().Get("Content-Type"))
	}
	var decoded map[string]any
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["date"] != "2025-11-04" || decoded["pipeline"] != pipeline.NameRegressor {
		t.Errorf("decoded %v", decoded)
	}
}

func TestGetPositions(t *testing.T) {
	router := newTestRouter(t, Options{})

	rec := get(router, "/api/v1/positions?date=2025-11-04")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var body positionsBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Samples) != 144 || body.IntervalMinutes != 10 || body.Sunrise == nil {
		t.Errorf("got %d samples every %v minutes, sunrise %v", len(body.Samples), body.IntervalMinutes, body.Sunrise)
	}
	if body.Samples[0].ApparentZenith != solar.NightZenith {
		t.Errorf("midnight zenith = %v", body.Samples[0].ApparentZenith)
	}

	rec = get(router, "/api/v1/positions?date=2025-11-04&interval=1h&format=csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 25 || lines[0] != "time,apparent_zenith" || !strings.HasPrefix(lines[1], "2025-11-04T00:00:00-05:00,") {
		t.Errorf("csv has %d lines, starting %q", len(lines), lines[:2])
	}
}

func TestGetGrid(t *testing.T) {
	router := newTestRouter(t, Options{})

	rec := get(router, "/api/v1/grid?coefficients=standalone&format=csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2601 || lines[1] != "Summer,1.0,50.0,2.0643" {
		t.Errorf("csv has %d lines, first row %q", len(lines), lines[1])
	}

	rec = get(router, "/api/v1/grid?energy_min=1&energy_max=2&energy_step=1&rh_min=50&rh_max=50")
	var body gridBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Rows) != 8 || body.Coefficients.Name != yield.SetPublished {
		t.Errorf("grid = %+v", body)
	}

	for _, q := range []string{"energy_step=0.00001", "rh_step=0", "places=x"} {
		if rec := get(router, "/api/v1/grid?"+q); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", q, rec.Code)
		}
	}
}

func TestGetCoefficients(t *testing.T) {
	router := newTestRouter(t, Options{})

	rec := get(router, "/api/v1/coefficients")
	var body coefficientsBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Default != yield.SetPublished || len(body.Sets) != len(yield.Names()) {
		t.Errorf("coefficients = %+v", body)
	}

	rec = get(router, "/api/v1/coefficients?format=csv")
	if !strings.Contains(rec.Body.String(), "published,0.117,0.803,0.001,true\n") {
		t.Errorf("csv = %q", rec.Body.String())
	}
}

func TestGetResults(t *testing.T) {
	if rec := get(newTestRouter(t, Options{}), "/api/v1/results"); rec.Code != http.StatusNotFound {
		t.Errorf("without storage: status %d", rec.Code)
	}

	store := fakeStore{results: []pipeline.Result{{RunID: "a"}, {RunID: "b"}, {RunID: "c"}}}
	router := newTestRouter(t, Options{Store: store})

	rec := get(router, "/api/v1/results?limit=2")
	var got []pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].RunID != "a" {
		t.Errorf("results = %+v", got)
	}

	for _, q := range []string{"limit=0", "limit=5000", "limit=many"} {
		if rec := get(router, "/api/v1/results?"+q); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", q, rec.Code)
		}
	}

	broken := newTestRouter(t, Options{Store: fakeStore{err: errors.New("disk gone")}})
	if rec := get(broken, "/api/v1/results"); rec.Code != http.StatusInternalServerError {
		t.Errorf("store error: status %d", rec.Code)
	}
}

func TestGetHealth(t *testing.T) {
	unhealthy := storage.NewHealthManager()
	unhealthy.UpdateHealth("sqlite", storage.CreateHealthData(storage.StatusUnhealthy, "down", nil))

	healthy := storage.NewHealthManager()
	healthy.UpdateHealth("sqlite", storage.CreateHealthData(storage.StatusHealthy, "ok", nil))

	tests := []struct {
		name   string
		opts   Options
		code   int
		status string
	}{
		{name: "no storage", opts: Options{}, code: http.StatusOK, status: "ok"},
		{name: "healthy storage", opts: Options{Health: healthy}, code: http.StatusOK, status: "ok"},
		{name: "fallback model", opts: Options{Model: irradiance.LoadResult{Predictor: irradiance.Placeholder{}, Fallback: true}}, code: http.StatusOK, status: "degraded"},
		{name: "unhealthy storage", opts: Options{Health: unhealthy}, code: http.StatusServiceUnavailable, status: storage.StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(newTestRouter(t, tt.opts), "/healthz")
			if rec.Code != tt.code {
				t.Errorf("status code %d, expected %d", rec.Code, tt.code)
			}
			var body healthBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Status != tt.status {
				t.Errorf("status %q, expected %q", body.Status, tt.status)
			}
		})
	}
}

func TestRequestIDEchoed(t *testing.T) {
	router := newTestRouter(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/coefficients", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("request ID = %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestNewController(t *testing.T) {
	cfg := testConfig(t)
	cfg.REST.ListenAddr = "127.0.0.1"

	c, err := NewController(context.Background(), nil, Options{Config: cfg, Model: loadedModel()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("address = %s", c.Server.Addr)
	}

	cfg.REST = nil
	if _, err := NewController(context.Background(), nil, Options{Config: cfg, Model: loadedModel()}); err == nil {
		t.Error("expected an error without REST configuration")
	}
}
