package irradiance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// MissingColumnsError reports required training columns absent from a CSV header
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns in CSV: %s", strings.Join(e.Missing, ", "))
}

// Dataset is a training table: feature rows in FeatureColumns order and labels
type Dataset struct {
	X [][]float64
	Y []float64
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	return len(d.Y)
}

// RequiredColumns returns every column a training CSV must carry
func RequiredColumns() []string {
	return append(append([]string{}, FeatureColumns...), TargetColumn)
}

// ReadTrainingCSV loads a training table from path.  A missing file is
// returned as-is (errors.Is(err, fs.ErrNotExist)); absent columns produce a
// *MissingColumnsError naming every one of them.
func ReadTrainingCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening training CSV: %w", err)
	}
	defer f.Close()

	return ReadTraining(f)
}

// ReadTraining parses a training table from r
func ReadTraining(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("training CSV is empty")
		}
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}

	required := RequiredColumns()
	cols := make([]int, len(required))
	var missing []string
	for i, name := range required {
		c, ok := index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[i] = c
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}

	ds := &Dataset{}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", line, err)
		}

		row := make([]float64, len(FeatureColumns))
		var label float64
		for i, c := range cols {
			v, err := parseCell(rec[c])
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, required[i], err)
			}
			if i < len(row) {
				row[i] = v
			} else {
				label = v
			}
		}
		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, label)
	}

	if ds.Len() == 0 {
		return nil, errors.New("training CSV has no data rows")
	}
	return ds, nil
}

// parseCell reads a numeric cell; blanks become zero, as NaNs do at prediction time
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, nil
	}
	return v, nil
}
