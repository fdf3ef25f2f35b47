package irradiance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ArtifactVersion is bumped whenever the on-disk forest layout changes
const ArtifactVersion = 1

// Node is one node of a regression tree.  Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"f" msgpack:"f"`
	Threshold float64 `json:"t" msgpack:"t"`
	Left      int32   `json:"l" msgpack:"l"`
	Right     int32   `json:"r" msgpack:"r"`
	Value     float64 `json:"v" msgpack:"v"`
}

// Tree is a regression tree stored as a flat node slice; node 0 is the root
type Tree struct {
	Nodes []Node `json:"nodes" msgpack:"nodes"`
}

// Forest is an averaged ensemble of regression trees
type Forest struct {
	Version   int         `json:"version" msgpack:"version"`
	ID        string      `json:"id" msgpack:"id"`
	Columns   []string    `json:"columns" msgpack:"columns"`
	TrainedAt time.Time   `json:"trained_at" msgpack:"trained_at"`
	Params    TrainParams `json:"params" msgpack:"params"`
	Trees     []Tree      `json:"trees" msgpack:"trees"`
}

// eval walks the tree for one row
func (t *Tree) eval(row []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = int(n.Left)
		} else {
			i = int(n.Right)
		}
	}
}

// Predict implements Predictor
func (f *Forest) Predict(rows [][]float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("forest has no trees")
	}

	out := make([]float64, len(rows))
	for i, r := range rows {
		if len(r) != len(f.Columns) {
			return nil, fmt.Errorf("row %d has %d features, forest expects %d", i, len(r), len(f.Columns))
		}
		var sum float64
		for t := range f.Trees {
			sum += f.Trees[t].eval(r)
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out, nil
}

// Validate checks that the forest was trained on FeatureColumns in order and
// that every tree is well formed.
func (f *Forest) Validate() error {
	if f.Version != ArtifactVersion {
		return fmt.Errorf("artifact version %d, expected %d", f.Version, ArtifactVersion)
	}
	if !slices.Equal(f.Columns, FeatureColumns) {
		return fmt.Errorf("artifact feature columns %q do not match %q", f.Columns, FeatureColumns)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("artifact contains no trees")
	}

	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature < 0 {
				continue
			}
			if n.Feature >= len(f.Columns) {
				return fmt.Errorf("tree %d node %d splits on feature %d", ti, ni, n.Feature)
			}
			// Children always follow their parent, which also rules out cycles
			if int(n.Left) <= ni || int(n.Right) <= ni || int(n.Left) >= len(t.Nodes) || int(n.Right) >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d has invalid children %d/%d", ti, ni, n.Left, n.Right)
			}
		}
	}
	return nil
}

// isJSON reports whether path names a JSON artifact rather than msgpack
func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Marshal encodes the forest as msgpack, or JSON when asJSON is set
func (f *Forest) Marshal(asJSON bool) ([]byte, error) {
	if asJSON {
		return json.Marshal(f)
	}
	return msgpack.Marshal(f)
}

// UnmarshalForest decodes and validates an encoded forest
func UnmarshalForest(data []byte, asJSON bool) (*Forest, error) {
	var f Forest
	var err error
	if asJSON {
		err = json.Unmarshal(data, &f)
	} else {
		err = msgpack.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding artifact: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Save writes the forest to path; a .json extension selects JSON encoding
func (f *Forest) Save(path string) error {
	data, err := f.Marshal(isJSON(path))
	if err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing artifact %s: %w", path, err)
	}
	return nil
}

// LoadForest reads and validates the forest artifact at path
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalForest(data, isJSON(path))
}
