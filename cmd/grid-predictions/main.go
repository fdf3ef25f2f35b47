package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chrissnell/aeroaqua/internal/log"
	"github.com/chrissnell/aeroaqua/internal/sweep"
	"github.com/chrissnell/aeroaqua/internal/yield"
)

func main() {
	defaults := sweep.DefaultGridSpec()

	var (
		output       = flag.String("output", "model_grid_predictions.csv", "Output CSV file path")
		coefficients = flag.String("coefficients", yield.SetStandalone, "Yield coefficient set")
		places       = flag.Int("places", 4, "Decimal places for predictions; negative disables rounding")
		energyMin    = flag.Float64("energy-min", defaults.EnergyMin, "Lowest daily solar energy (kWh/m²)")
		energyMax    = flag.Float64("energy-max", defaults.EnergyMax, "Highest daily solar energy (kWh/m²)")
		energyStep   = flag.Float64("energy-step", defaults.EnergyStep, "Solar energy step (kWh/m²)")
		rhMin        = flag.Float64("rh-min", defaults.RHMin, "Lowest relative humidity (%)")
		rhMax        = flag.Float64("rh-max", defaults.RHMax, "Highest relative humidity (%)")
		rhStep       = flag.Float64("rh-step", defaults.RHStep, "Relative humidity step (%)")
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

	rows, err := sweep.Grid(m, sweep.GridSpec{
		EnergyMin:  *energyMin,
		EnergyMax:  *energyMax,
		EnergyStep: *energyStep,
		RHMin:      *rhMin,
		RHMax:      *rhMax,
		RHStep:     *rhStep,
	})
	if err != nil {
		log.Fatalf("error building grid: %v", err)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("error creating %s: %v", *output, err)
	}
	if err := sweep.WriteGridCSV(f, rows, *places); err != nil {
		f.Close()
		log.Fatalf("error writing %s: %v", *output, err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("error closing %s: %v", *output, err)
	}

	fmt.Printf("Wrote %d predictions (%s) to %s\n", len(rows), m, *output)
}
