package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/aeroaqua/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: YAML file does not exist: %s\n", *yamlFile)
		os.Exit(1)
	}

	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)

	configData, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		fmt.Println("DRY RUN - No changes will be made")
		printConfigSummary(configData)
		return
	}

	if *force {
		if err := os.Remove(*sqliteFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing existing SQLite file: %v\n", err)
			os.Exit(1)
		}
	}

	if err := os.MkdirAll(filepath.Dir(*sqliteFile), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	// The provider applies the embedded schema migrations on open
	provider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite database: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	if err := provider.SaveConfig(configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration into SQLite: %v\n", err)
		os.Exit(1)
	}

	printConfigSummary(configData)
	fmt.Printf("\nConversion completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", *sqliteFile)
}

func printConfigSummary(c *config.ConfigData) {
	fmt.Println("\nConfiguration Summary:")
	fmt.Printf("Location: %.4f, %.4f (%.0f m, %s)\n",
		c.Location.Latitude, c.Location.Longitude, c.Location.Altitude, c.Location.Timezone)

	fmt.Printf("Pipeline: %s, interval %s, %s integration, %s clear sky, coefficients %s\n",
		orDefault(c.Pipeline.Name), orDefault(c.Pipeline.Interval), orDefault(c.Pipeline.Integration),
		orDefault(c.Pipeline.ClearSky), orDefault(c.Pipeline.CoefficientSet))

	if c.Model.Path != "" {
		fmt.Printf("Model: %s\n", c.Model.Path)
	}
	for _, cand := range c.Model.Candidates {
		fmt.Printf("  candidate: %s\n", cand)
	}

	fmt.Printf("\nStorage Backends:\n")
	if c.Storage.SQLite != nil {
		fmt.Printf("  - SQLite: %s\n", c.Storage.SQLite.Path)
	}
	if c.Storage.TimescaleDB != nil {
		fmt.Printf("  - TimescaleDB: %s\n", c.Storage.TimescaleDB.ConnectionString)
	}
	if c.Storage.SQLite == nil && c.Storage.TimescaleDB == nil {
		fmt.Printf("  (none)\n")
	}

	if c.REST != nil {
		fmt.Printf("\nREST server: %s:%d\n", c.REST.ListenAddr, c.REST.Port)
	}
}

func orDefault(s string) string {
	if s == "" {
		return "default"
	}
	return s
}
