package pipeline

import (
	"github.com/chrissnell/aeroaqua/internal/irradiance"
	"github.com/chrissnell/aeroaqua/internal/yield"
	"github.com/chrissnell/aeroaqua/pkg/config"
)

// FromConfig builds the pipeline selected by a configuration section
func FromConfig(p config.PipelineData, model irradiance.LoadResult) (Pipeline, error) {
	y, err := yield.Lookup(p.CoefficientSet)
	if err != nil {
		return nil, err
	}

	return New(p.Name, Options{
		ClearSky:        p.ClearSky,
		ClearSkyOptions: p.ClearSkyOptions(),
		Integration:     p.Integration,
		Yield:           y,
		Model:           model,
	})
}
