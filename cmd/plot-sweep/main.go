package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
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
	defaults := sweep.DefaultPlotSpec()

	var (
		cfgFile      = flag.String("config", "", "Optional configuration source (YAML file or SQLite database)")
		cfgBackend   = flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
		output       = flag.String("output", "plot_data.csv", "Output CSV file path")
		modelPath    = flag.String("model", "", "Path to a trained irradiance model artifact")
		pipelineName = flag.String("pipeline", "", "Pipeline: regressor or physics (default from config)")
		start        = flag.String("start", defaults.Start.Format(pipeline.DateLayout), "First date")
		end          = flag.String("end", defaults.End.Format(pipeline.DateLayout), "Last date (inclusive)")
		stepDays     = flag.Int("step-days", defaults.StepDays, "Days between swept dates")
		maxCloud     = flag.Int("max-cloud", len(defaults.CloudTypes)-1, "Sweep cloud types 0 through this value")
		rh           = flag.Float64("rh", defaults.RHPercent, "Relative humidity (%)")
		temp         = flag.Float64("temp", defaults.TemperatureC, "Temperature (°C)")
		workers      = flag.Int("workers", 0, "Worker count (default from config)")
		store        = flag.Bool("store", false, "Store results in the configured storage backends")
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
	if *pipelineName != "" {
		cfg.Pipeline.Name = *pipelineName
	}
	if *modelPath != "" {
		cfg.Model.Path = *modelPath
	}
	if *workers <= 0 {
		*workers = cfg.Pipeline.Workers
	}

	spec := defaults
	spec.Location = cfg.SolarLocation()
	spec.StepDays = *stepDays
	spec.RHPercent = *rh
	spec.TemperatureC = *temp
	if spec.Start, err = time.Parse(pipeline.DateLayout, *start); err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	if spec.End, err = time.Parse(pipeline.DateLayout, *end); err != nil {
		log.Fatalf("invalid -end: %v", err)
	}
	if spec.Interval, err = cfg.Pipeline.IntervalDuration(); err != nil {
		log.Fatal(err)
	}
	spec.CloudTypes = nil
	for c := 0; c <= *maxCloud; c++ {
		spec.CloudTypes = append(spec.CloudTypes, float64(c))
	}

	var model irradiance.LoadResult
	if cfg.Pipeline.Name != pipeline.NamePhysics {
		model = app.LoadModel(cfg.Model)
	}
	p, err := pipeline.FromConfig(cfg.Pipeline, model)
	if err != nil {
		log.Fatalf("error building pipeline: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	inputs := spec.Inputs()
	log.Infow("starting sweep", "pipeline", p.Name(), "jobs", len(inputs), "workers", *workers)

	results, report, err := sweep.Run(ctx, p, inputs, *workers)
	if err != nil {
		log.Warnw("sweep interrupted; writing partial results", "error", err)
	}
	log.Infow("sweep finished", "jobs", report.Jobs, "results", report.Results,
		"no_data", report.NoData, "failed", report.Failed)

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("error creating %s: %v", *output, err)
	}
	if err := sweep.WritePlotCSV(f, results); err != nil {
		f.Close()
		log.Fatalf("error writing %s: %v", *output, err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("error closing %s: %v", *output, err)
	}
	fmt.Printf("Wrote %d rows to %s\n", len(results), *output)

	if *store && len(results) > 0 {
		if err := storeResults(cfg.Storage, results); err != nil {
			log.Fatalf("error storing results: %v", err)
		}
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

func storeResults(c config.StorageData, results []pipeline.Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
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
	if err := sm.StoreResults(ctx, results); err != nil {
		return err
	}
	log.Infow("stored sweep results", "count", len(results))

	cancel()
	wg.Wait()
	return nil
}
