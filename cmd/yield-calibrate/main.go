package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/chrissnell/aeroaqua/internal/log"
	"github.com/chrissnell/aeroaqua/internal/yield"
)

// CalibrationResult is one coefficient set scored against the samples
type CalibrationResult struct {
	Model yield.Model
	Stats yield.FitStats
	AIC   float64
	BIC   float64
}

func main() {
	var (
		samplesPath = flag.String("samples", "", "CSV of rh_percent, solar_energy_kwh_m2, liters_per_day (default: the built-in harvester measurements)")
		csvOutput   = flag.String("csv", "", "Optional CSV output file path for residuals of the fitted model")
		debug       = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	samples := yield.Dataset()
	source := "built-in harvester measurements"
	if *samplesPath != "" {
		var err error
		if samples, err = yield.ReadSamplesCSV(*samplesPath); err != nil {
			log.Fatalf("error reading samples: %v", err)
		}
		source = *samplesPath
	}

	fitted, err := yield.Fit(samples)
	if err != nil {
		log.Fatalf("error fitting yield model: %v", err)
	}
	fitted.Name = "fitted"

	fmt.Printf("Yield Model Calibration\n")
	fmt.Printf("=======================\n\n")
	fmt.Printf("Samples: %d from %s\n\n", len(samples), source)

	var results []CalibrationResult
	for _, name := range yield.Names() {
		m, err := yield.Lookup(name)
		if err != nil {
			log.Fatal(err)
		}
		results = append(results, score(m, samples))
	}
	results = append(results, score(fitted, samples))

	displayComparison(results)
	displayFitted(results[len(results)-1])

	if *csvOutput != "" {
		if err := exportCSV(*csvOutput, fitted, samples); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nResiduals exported to: %s\n", *csvOutput)
	}
}

func score(m yield.Model, samples []yield.Sample) CalibrationResult {
	stats := yield.Evaluate(m, samples)
	return CalibrationResult{
		Model: m,
		Stats: stats,
		AIC:   stats.AIC(yield.Parameters),
		BIC:   stats.BIC(yield.Parameters),
	}
}

func displayComparison(results []CalibrationResult) {
	fmt.Printf("Coefficient Set Comparison\n")
	fmt.Printf("==========================\n\n")

	sorted := make([]CalibrationResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Stats.RootMeanSquaredError < sorted[j].Stats.RootMeanSquaredError
	})

	fmt.Printf("%-14s | %8s | %8s | %8s | %8s | %10s\n", "Set", "R²", "Adj R²", "MAE(L)", "RMSE(L)", "AIC")
	fmt.Printf("---------------+----------+----------+----------+----------+------------\n")
	for i, r := range sorted {
		marker := ""
		if i == 0 {
			marker = " ← BEST"
		}
		fmt.Printf("%-14s | %8.4f | %8.4f | %8.4f | %8.4f | %10.2f%s\n",
			r.Model.Name, r.Stats.RSquared, r.Stats.AdjustedRSquared(yield.Parameters),
			r.Stats.MeanAbsoluteError, r.Stats.RootMeanSquaredError, r.AIC, marker)
	}
	fmt.Println()
}

func displayFitted(r CalibrationResult) {
	fmt.Printf("Least Squares Fit\n")
	fmt.Printf("=================\n\n")
	fmt.Printf("  liters/day = %.4f + %.4f × kWh/m² + %.4f × RH%%\n\n", r.Model.Intercept, r.Model.Energy, r.Model.Humidity)
	fmt.Printf("  R² = %.4f, RMSE = %.4f L/day, BIC = %.2f\n\n", r.Stats.RSquared, r.Stats.RootMeanSquaredError, r.BIC)

	fmt.Printf("Configuration snippet:\n")
	fmt.Printf("  yield.Model{Name: %q, Intercept: %.4f, Energy: %.4f, Humidity: %.4f}\n",
		"custom", r.Model.Intercept, r.Model.Energy, r.Model.Humidity)

	if r.Stats.RSquared < 0.5 {
		fmt.Printf("\n  ⚠ WARNING: Low R² (%.4f); energy and humidity explain little of the yield\n", r.Stats.RSquared)
	}
}

func exportCSV(filename string, m yield.Model, samples []yield.Sample) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return yield.WriteResiduals(file, m, samples)
}
