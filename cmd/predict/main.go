package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/chrissnell/aeroaqua/internal/app"
	"github.com/chrissnell/aeroaqua/internal/irradiance"
	"github.com/chrissnell/aeroaqua/internal/log"
	"github.com/chrissnell/aeroaqua/internal/managers"
	"github.com/chrissnell/aeroaqua/internal/pipeline"
	"github.com/chrissnell/aeroaqua/internal/sweep"
	"github.com/chrissnell/aeroaqua/pkg/config"
)

func main() {
	var (
		cfgFile      = flag.String("config", "", "Optional configuration source (YAML file or SQLite database)")
		cfgBackend   = flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
		date         = flag.String("date", "2025-11-04", "Date to predict (YYYY-MM-DD or RFC3339 with offset)")
		cloud        = flag.Float64("cloud", pipeline.DefaultWeather.CloudType, "Cloud type (0-10)")
		rh           = flag.Float64("rh", pipeline.DefaultWeather.RelativeHumidity, "Relative humidity (%)")
		temp         = flag.Float64("temp", pipeline.DefaultWeather.TemperatureC, "Temperature (°C)")
		modelPath    = flag.String("model", "", "Path to a trained irradiance model artifact")
		output       = flag.String("output", "", "Write the result to this file instead of stdout")
		format       = flag.String("format", "json", "Output format: json or csv")
		pipelineName = flag.String("pipeline", "", "Pipeline: regressor or physics (default from config)")
		coefficients = flag.String("coefficients", "", "Yield coefficient set (default from config)")
		clearSky     = flag.String("clearsky", "", "Clear-sky model for the physics pipeline: ineichen, asce or bras")
		integration  = flag.String("integration", "", "Energy integration: riemann or trapezoid")
		interval     = flag.Duration("interval", 0, "Sampling interval (default from config)")
		store        = flag.Bool("store", false, "Store the result in the configured storage backends")
		debug        = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := loadConfig(*cfgFile, *cfgBackend)
	if err != nil {
		log.Fatalf("error loading configuration: %v", err)
	}

	section := cfg.Pipeline
	overrideString(&section.Name, *pipelineName)
	overrideString(&section.CoefficientSet, *coefficients)
	overrideString(&section.ClearSky, *clearSky)
	overrideString(&section.Integration, *integration)
	overrideString(&cfg.Model.Path, *modelPath)

	var model irradiance.LoadResult
	if section.Name != pipeline.NamePhysics {
		model = app.LoadModel(cfg.Model)
	}

	p, err := pipeline.FromConfig(section, model)
	if err != nil {
		log.Fatalf("error building pipeline: %v", err)
	}

	in := pipeline.Inputs{
		Date:     *date,
		Location: cfg.SolarLocation(),
		Weather: irradiance.Weather{
			CloudType:        *cloud,
			RelativeHumidity: *rh,
			TemperatureC:     *temp,
		},
		Interval: *interval,
	}
	if in.Interval == 0 {
		if in.Interval, err = section.IntervalDuration(); err != nil {
			log.Fatal(err)
		}
	}

	result, err := p.Run(in)
	if err != nil {
		log.Fatalf("prediction failed: %v", err)
	}
	if result.Untrustworthy {
		log.Warnw("prediction used the placeholder irradiance model and is untrustworthy", "run_id", result.RunID)
	}

	if err := writeResult(*output, *format, result); err != nil {
		log.Fatalf("error writing result: %v", err)
	}

	if *store {
		if err := storeResult(cfg.Storage, result); err != nil {
			log.Fatalf("error storing result: %v", err)
		}
	}
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func loadConfig(path, backend string) (*config.ConfigData, error) {
	if path == "" {
		return config.ParseYAML(nil)
	}
	provider, err := config.NewProvider(backend, path)
	if err != nil {
		return nil, err
	}
	defer provider.Close()
	return provider.LoadConfig()
}

func writeResult(path, format string, r pipeline.Result) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "csv":
		return sweep.WritePlotCSV(w, []pipeline.Result{r})
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func storeResult(c config.StorageData, r pipeline.Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	sm, err := managers.NewStorageManager(ctx, &wg, c)
	if err != nil {
		return err
	}
	defer sm.Close()

	if !sm.Enabled() {
		return fmt.Errorf("no storage backends configured")
	}
	if err := sm.StoreResults(ctx, []pipeline.Result{r}); err != nil {
		return err
	}
	log.Infow("stored result", "run_id", r.RunID)

	cancel()
	wg.Wait()
	return nil
}
