package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chrissnell/aeroaqua/internal/irradiance"
	"github.com/chrissnell/aeroaqua/internal/log"
)

func main() {
	defaults := irradiance.DefaultTrainParams()

	var (
		csvPath = flag.String("csv", "", "Path to the training CSV (required)")
		out     = flag.String("out", irradiance.DefaultArtifactName, "Output model path; a .json extension writes JSON")
		trees   = flag.Int("trees", defaults.Trees, "Number of trees")
		depth   = flag.Int("max-depth", defaults.MaxDepth, "Maximum tree depth")
		minLeaf = flag.Int("min-leaf", defaults.MinLeaf, "Minimum samples per leaf")
		seed    = flag.Uint64("seed", defaults.Seed, "Random seed")
		workers = flag.Int("workers", defaults.Workers, "Trees grown in parallel")
		debug   = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *csvPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -csv <training.csv> [-out model.msgpack]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	ds, err := irradiance.ReadTrainingCSV(*csvPath)
	if err != nil {
		var missing *irradiance.MissingColumnsError
		if errors.As(err, &missing) {
			log.Fatalf("%s is missing required columns %v", *csvPath, missing.Missing)
		}
		log.Fatalf("error reading training data: %v", err)
	}
	log.Infow("loaded training data", "path", *csvPath, "rows", ds.Len())

	forest, report, err := irradiance.TrainForest(ds, irradiance.TrainParams{
		Trees:    *trees,
		MaxDepth: *depth,
		MinLeaf:  *minLeaf,
		Seed:     *seed,
		Workers:  *workers,
	})
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	if err := forest.Save(*out); err != nil {
		log.Fatal(err)
	}

	log.Infow("saved irradiance model", "path", *out, "id", forest.ID)
	fmt.Printf("Trained %d trees on %d rows in %s (in-sample R² %.4f)\n",
		report.Trees, report.Rows, report.Duration.Round(time.Millisecond), report.InSampleRSquare)
	fmt.Printf("Model saved to %s\n", *out)
}
