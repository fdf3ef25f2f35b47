package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chrissnell/aeroaqua/internal/log"
	"github.com/chrissnell/aeroaqua/internal/sweep"
	"github.com/chrissnell/aeroaqua/internal/yield"
)

func main() {
	var (
		output       = flag.String("output", "seasonal_test_results.md", "Markdown report path")
		jsonOutput   = flag.String("json", "", "Optional JSON output path")
		coefficients = flag.String("coefficients", yield.DefaultSet, "Yield coefficient set")
		debug        = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	m, err := yield.Lookup(*coefficients)
	if err != nil {
		log.Fatal(err)
	}

	results := sweep.Seasonal(m, sweep.SeasonalSamples())

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("error creating %s: %v", *output, err)
	}
	if err := sweep.WriteSeasonalMarkdown(f, results, time.Now()); err != nil {
		f.Close()
		log.Fatalf("error writing %s: %v", *output, err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("error closing %s: %v", *output, err)
	}

	if *jsonOutput != "" {
		data, err := json.MarshalIndent(sweep.GroupBySeason(results), "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		if err := os.WriteFile(*jsonOutput, data, 0o644); err != nil {
			log.Fatalf("error writing %s: %v", *jsonOutput, err)
		}
	}

	for _, r := range results {
		fmt.Printf("%-7s %-12s %5.2f kWh/m²  %4.1f%% RH  -> %.3f L/day\n",
			r.Season, r.Label, r.SolarEnergyKWhM2, r.RHPercent, r.PredictedLitersPerDay)
	}
}
