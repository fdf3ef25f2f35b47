package irradiance

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// constPredictor returns the same value for every row
type constPredictor float64

func (c constPredictor) Predict(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i := range out {
		out[i] = float64(c)
	}
	return out, nil
}

func hours(start time.Time, n int) []time.Time {
	t := make([]time.Time, n)
	for i := range t {
		t[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return t
}

func TestFeatureColumnOrder(t *testing.T) {
	expected := []string{"Cloud Type", "Solar Zenith Angle", "Relative Humidity", "Temperature", "Month", "Day", "Hour"}
	if len(FeatureColumns) != len(expected) {
		t.Fatalf("have %d feature columns, expected %d", len(FeatureColumns), len(expected))
	}
	for i := range expected {
		if FeatureColumns[i] != expected[i] {
			t.Errorf("column %d = %q, expected %q", i, FeatureColumns[i], expected[i])
		}
	}
}

func TestBuildFeatures(t *testing.T) {
	tz, _ := time.LoadLocation("America/Toronto")
	times := hours(time.Date(2025, 11, 4, 0, 0, 0, 0, tz), 3)
	zenith := []float64{90, math.NaN(), 45}
	w := Weather{CloudType: 3, RelativeHumidity: 55, TemperatureC: 12.5}

	rows, err := BuildFeatures(times, zenith, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, r := range rows {
		if r[ColCloudType] != 3 || r[ColHumidity] != 55 || r[ColTemperature] != 12.5 {
			t.Errorf("row %d does not carry the broadcast weather: %v", i, r)
		}
		if r[ColMonth] != 11 || r[ColDay] != 4 || r[ColHour] != float64(i) {
			t.Errorf("row %d has wrong calendar features: %v", i, r)
		}
	}
	if rows[1][ColZenith] != 0 {
		t.Errorf("NaN zenith was not filled with zero: %v", rows[1])
	}

	if _, err := BuildFeatures(times, zenith[:2], w); err == nil {
		t.Error("expected an error for mismatched lengths")
	}
}

func TestPredictSeriesPostProcessing(t *testing.T) {
	times := hours(time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC), 4)
	zenith := []float64{90, 30, 95, 60}

	tests := []struct {
		name      string
		predictor Predictor
		expected  Series
	}{
		{name: "positive output zeroed at night", predictor: constPredictor(500), expected: Series{0, 500, 0, 500}},
		{name: "negative output clamped", predictor: constPredictor(-20), expected: Series{0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PredictSeries(tt.predictor, times, zenith, Weather{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for i := range tt.expected {
				if got[i] != tt.expected[i] {
					t.Errorf("sample %d = %f, expected %f", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestPlaceholder(t *testing.T) {
	rows := [][]float64{
		{0, 30, 50, 20, 6, 21, 12},
		{0, 86, 50, 20, 6, 21, 5},
		{0.5, 10, 50, 20, 6, 21, 12},
		{3, 10, 50, 20, 6, 21, 12},
	}
	got, err := Placeholder{}.Predict(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []float64{800, 0, 400, -1600}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("row %d = %f, expected %f", i, got[i], expected[i])
		}
	}
}

// stepForest splits on zenith at 80 degrees
func stepForest() *Forest {
	return &Forest{
		Version: ArtifactVersion,
		ID:      "test",
		Columns: append([]string{}, FeatureColumns...),
		Trees: []Tree{
			{Nodes: []Node{
				{Feature: ColZenith, Threshold: 80, Left: 1, Right: 2},
				{Feature: -1, Value: 600},
				{Feature: -1, Value: 10},
			}},
			{Nodes: []Node{{Feature: -1, Value: 200}}},
		},
	}
}

func TestForestPredict(t *testing.T) {
	f := stepForest()
	got, err := f.Predict([][]float64{
		{0, 30, 50, 20, 6, 21, 12},
		{0, 85, 50, 20, 6, 21, 6},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != 400 || got[1] != 105 {
		t.Errorf("Predict() = %v, expected [400 105]", got)
	}

	if _, err := f.Predict([][]float64{{1, 2, 3}}); err == nil {
		t.Error("expected an error for a short row")
	}
}

func TestForestSaveLoad(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"model.msgpack", "model.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := stepForest().Save(path); err != nil {
				t.Fatalf("save: %v", err)
			}
			f, err := LoadForest(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(f.Trees) != 2 || f.Trees[0].Nodes[0].Threshold != 80 {
				t.Errorf("loaded forest does not match the saved one: %+v", f)
			}
		})
	}
}

func TestForestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *Forest)
	}{
		{name: "columns reordered", mutate: func(f *Forest) { f.Columns[0], f.Columns[1] = f.Columns[1], f.Columns[0] }},
		{name: "column missing", mutate: func(f *Forest) { f.Columns = f.Columns[:6] }},
		{name: "wrong version", mutate: func(f *Forest) { f.Version = 99 }},
		{name: "no trees", mutate: func(f *Forest) { f.Trees = nil }},
		{name: "child points backwards", mutate: func(f *Forest) { f.Trees[0].Nodes[0].Left = 0 }},
		{name: "split on unknown feature", mutate: func(f *Forest) { f.Trees[0].Nodes[0].Feature = 12 }},
	}

	if err := stepForest().Validate(); err != nil {
		t.Fatalf("valid forest rejected: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := stepForest()
			tt.mutate(f)
			if err := f.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoaderFirstLoadableWins(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.msgpack")
	good := filepath.Join(dir, "good.json")
	later := filepath.Join(dir, "later.json")

	if err := os.WriteFile(bad, []byte("not msgpack"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := stepForest().Save(good); err != nil {
		t.Fatal(err)
	}
	if err := stepForest().Save(later); err != nil {
		t.Fatal(err)
	}

	res := Loader{Candidates: []string{filepath.Join(dir, "missing.msgpack"), bad, good, later}}.Load()
	if res.Fallback || res.Err() != nil {
		t.Fatalf("expected a loaded model, got fallback (attempts %+v)", res.Attempts)
	}
	if res.Path != good {
		t.Errorf("loaded %s, expected %s", res.Path, good)
	}

	outcomes := []Outcome{OutcomeMissing, OutcomeInvalid, OutcomeLoaded}
	if len(res.Attempts) != len(outcomes) {
		t.Fatalf("got %d attempts, expected %d", len(res.Attempts), len(outcomes))
	}
	for i, o := range outcomes {
		if res.Attempts[i].Outcome != o {
			t.Errorf("attempt %d outcome %s, expected %s", i, res.Attempts[i].Outcome, o)
		}
	}
}

func TestLoaderFallback(t *testing.T) {
	res := Loader{Candidates: []string{filepath.Join(t.TempDir(), "nope.msgpack"), ""}}.Load()
	if !res.Fallback {
		t.Fatal("expected fallback")
	}
	if !errors.Is(res.Err(), ErrNoArtifact) {
		t.Errorf("Err() = %v, expected ErrNoArtifact", res.Err())
	}
	if _, ok := res.Predictor.(Placeholder); !ok {
		t.Errorf("fallback predictor is %T, expected Placeholder", res.Predictor)
	}
}

func TestDefaultCandidates(t *testing.T) {
	c := DefaultCandidates("/opt/models/ghi.msgpack")
	if c[0] != "/opt/models/ghi.msgpack" {
		t.Errorf("override is not tried first: %v", c)
	}
	if len(DefaultCandidates("")) != len(c)-1 {
		t.Errorf("empty override should not add a candidate")
	}
}

const trainingHeader = "Year,Cloud Type,Solar Zenith Angle,Relative Humidity,Temperature,Month,Day,Hour,GHI\n"

func TestReadTrainingMissingColumns(t *testing.T) {
	_, err := ReadTraining(strings.NewReader("Cloud Type,Temperature,Month,GHI\n0,20,6,500\n"))

	var mce *MissingColumnsError
	if !errors.As(err, &mce) {
		t.Fatalf("expected *MissingColumnsError, got %v", err)
	}
	expected := []string{"Solar Zenith Angle", "Relative Humidity", "Day", "Hour"}
	if strings.Join(mce.Missing, "|") != strings.Join(expected, "|") {
		t.Errorf("missing = %v, expected %v", mce.Missing, expected)
	}
}

func TestReadTrainingCSVMissingFile(t *testing.T) {
	_, err := ReadTrainingCSV(filepath.Join(t.TempDir(), "usaWithWeather.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}

func TestReadTraining(t *testing.T) {
	csv := trainingHeader +
		"2019,0,30,50,20,6,21,12,850\n" +
		"2019,7,,80,15,6,21,13,NaN\n"

	ds, err := ReadTraining(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("got %d rows, expected 2", ds.Len())
	}
	if ds.X[0][ColZenith] != 30 || ds.Y[0] != 850 {
		t.Errorf("row 0 parsed as %v -> %f", ds.X[0], ds.Y[0])
	}
	if ds.X[1][ColZenith] != 0 || ds.Y[1] != 0 {
		t.Errorf("blank and NaN cells should be zero, got %v -> %f", ds.X[1], ds.Y[1])
	}

	if _, err := ReadTraining(strings.NewReader(trainingHeader + "2019,x,30,50,20,6,21,12,850\n")); err == nil {
		t.Error("expected an error for a non-numeric cell")
	}
}

// The label is a step in zenith; a small forest has to recover it.
func TestTrainForestLearnsStep(t *testing.T) {
	ds := &Dataset{}
	for i := 0; i < 400; i++ {
		z := float64(i%90) + 0.5
		ghi := 0.0
		if z < 60 {
			ghi = 700
		}
		ds.X = append(ds.X, []float64{0, z, 50, 20, 6, 21, float64(i % 24)})
		ds.Y = append(ds.Y, ghi)
	}

	p := TrainParams{Trees: 8, MaxDepth: 6, MinLeaf: 5, Seed: 42, Workers: 4}
	f, report, err := TrainForest(ds, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("trained forest is invalid: %v", err)
	}
	if report.Rows != 400 || report.Trees != 8 {
		t.Errorf("report = %+v", report)
	}
	if report.InSampleRSquare < 0.95 {
		t.Errorf("in-sample R² = %f, expected a near-perfect fit", report.InSampleRSquare)
	}

	got, err := f.Predict([][]float64{{0, 20, 50, 20, 6, 21, 12}, {0, 85, 50, 20, 6, 21, 12}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got[0]-700) > 50 || math.Abs(got[1]) > 50 {
		t.Errorf("Predict() = %v, expected about [700 0]", got)
	}

	// Same seed, different worker count, same trees
	p.Workers = 1
	again, _, err := TrainForest(ds, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range f.Trees {
		if len(f.Trees[i].Nodes) != len(again.Trees[i].Nodes) {
			t.Fatalf("tree %d differs between runs", i)
		}
	}
}

func TestTrainForestRejectsBadParams(t *testing.T) {
	ds := &Dataset{X: [][]float64{{0, 0, 0, 0, 0, 0, 0}}, Y: []float64{1}}
	if _, _, err := TrainForest(ds, TrainParams{Trees: 0, MaxDepth: 1, MinLeaf: 1}); err == nil {
		t.Error("expected an error for zero trees")
	}
	if _, _, err := TrainForest(&Dataset{}, DefaultTrainParams()); err == nil {
		t.Error("expected an error for an empty dataset")
	}
}
