package irradiance

import (
	"errors"
	"io/fs"
	"os"

	"github.com/chrissnell/aeroaqua/internal/log"
)

// DefaultArtifactName is the file name searched for when no path is configured
const DefaultArtifactName = "solar_predictor_model.msgpack"

// ErrNoArtifact means no candidate artifact could be loaded and the
// placeholder predictor is in use.
var ErrNoArtifact = errors.New("no irradiance model artifact could be loaded")

// Outcome is the result of trying one candidate artifact path
type Outcome int

const (
	OutcomeMissing Outcome = iota
	OutcomeInvalid
	OutcomeLoaded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMissing:
		return "missing"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeLoaded:
		return "loaded"
	}
	return "unknown"
}

// Attempt records what happened at one candidate path
type Attempt struct {
	Path    string
	Outcome Outcome
	Err     error
}

// LoadResult is the model handle handed to every pipeline invocation
type LoadResult struct {
	Predictor Predictor
	Path      string
	Fallback  bool
	Attempts  []Attempt
}

// Err returns ErrNoArtifact when the placeholder is in use
func (r LoadResult) Err() error {
	if r.Fallback {
		return ErrNoArtifact
	}
	return nil
}

// Loader tries an ordered list of artifact paths
type Loader struct {
	Candidates []string
}

// DefaultCandidates returns the search order: the override (if any) then the
// conventional locations relative to the working directory.
func DefaultCandidates(override string) []string {
	var c []string
	if override != "" {
		c = append(c, override)
	}
	return append(c,
		DefaultArtifactName,
		"model/"+DefaultArtifactName,
		"../"+DefaultArtifactName,
	)
}

// Load returns the first candidate that exists and decodes to a valid forest.
// When every candidate fails it returns the placeholder predictor with
// Fallback set and logs a warning.
func (l Loader) Load() LoadResult {
	var res LoadResult

	for _, path := range l.Candidates {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warnw("cannot stat irradiance model candidate", "path", path, "error", err)
			}
			res.Attempts = append(res.Attempts, Attempt{Path: path, Outcome: OutcomeMissing, Err: err})
			continue
		}

		f, err := LoadForest(path)
		if err != nil {
			log.Errorw("error loading irradiance model", "path", path, "error", err)
			res.Attempts = append(res.Attempts, Attempt{Path: path, Outcome: OutcomeInvalid, Err: err})
			continue
		}

		res.Attempts = append(res.Attempts, Attempt{Path: path, Outcome: OutcomeLoaded})
		res.Predictor = f
		res.Path = path
		log.Infow("loaded irradiance model", "path", path, "id", f.ID, "trees", len(f.Trees))
		return res
	}

	log.Warnw("*** could not find or load an irradiance model; using the PLACEHOLDER predictor ***",
		"candidates", l.Candidates)
	log.Warn("predictions made with the placeholder predictor are not forecasts and must not be trusted")

	res.Predictor = Placeholder{}
	res.Fallback = true
	return res
}
