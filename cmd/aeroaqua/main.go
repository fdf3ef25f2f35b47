package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/aeroaqua/internal/app"
	"github.com/chrissnell/aeroaqua/internal/constants"
	"github.com/chrissnell/aeroaqua/internal/log"
	"github.com/chrissnell/aeroaqua/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to configuration source:\n\t\t\t  YAML: config.yaml\n\t\t\t  SQLite: config.db\n\t\t\t  Use 'config-convert' tool to convert YAML→SQLite")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("aeroaqua %s\n", constants.Version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	filename, _ := filepath.Abs(*cfgFile)
	provider, err := config.NewProvider(*cfgBackend, filename)
	if err != nil {
		log.Errorf("Failed to open configuration: %v", err)
		os.Exit(1)
	}
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		log.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %v", err)
		os.Exit(1)
	}

	// Switch to file logging once we know where the file goes
	if cfgData.Log.File != "" {
		err := log.InitWithFile(*debug, log.FileOptions{
			Path:       cfgData.Log.File,
			MaxSizeMB:  cfgData.Log.MaxSizeMB,
			MaxBackups: cfgData.Log.MaxBackups,
			MaxAgeDays: cfgData.Log.MaxAgeDays,
		})
		if err != nil {
			log.Errorf("Failed to open log file: %v", err)
			os.Exit(1)
		}
	}

	log.Infof("aeroaqua %s starting", constants.Version)

	// Create and run the application
	application := app.New(provider)
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Application error: %v", err)
		os.Exit(1)
	}
}
