// Package app wires configuration, the irradiance model, result storage, the
// REST server and the management API into the long-running aeroaqua service.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/aeroaqua/internal/controllers/management"
	"github.com/chrissnell/aeroaqua/internal/controllers/restserver"
	"github.com/chrissnell/aeroaqua/internal/irradiance"
	"github.com/chrissnell/aeroaqua/internal/log"
	"github.com/chrissnell/aeroaqua/internal/managers"
	"github.com/chrissnell/aeroaqua/pkg/config"
)

// ErrNothingToRun is returned when the configuration enables no service
var ErrNothingToRun = errors.New("no rest or management section configured; nothing to run")

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
}

// New creates a new application instance
func New(configProvider config.ConfigProvider) *App {
	return &App{
		configProvider: configProvider,
	}
}

// ModelCandidates returns the artifact search order for a model section: the
// configured path, the configured candidates, then the conventional locations.
func ModelCandidates(m config.ModelData) []string {
	var c []string
	if m.Path != "" {
		c = append(c, m.Path)
	}
	c = append(c, m.Candidates...)
	return append(c, irradiance.DefaultCandidates("")...)
}

// LoadModel loads the irradiance model for a model section, falling back to
// the placeholder predictor when no candidate loads
func LoadModel(m config.ModelData) irradiance.LoadResult {
	return irradiance.Loader{Candidates: ModelCandidates(m)}.Load()
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.REST == nil && cfg.Management == nil {
		return ErrNothingToRun
	}

	model := LoadModel(cfg.Model)
	if model.Fallback {
		log.Warnw("serving placeholder irradiance predictions; results are untrustworthy",
			"candidates", ModelCandidates(cfg.Model))
	}

	// Initialize the storage manager
	storageManager, err := managers.NewStorageManager(ctx, &wg, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := storageManager.Close(); err != nil {
			log.Errorf("error closing storage: %v", err)
		}
	}()

	if cfg.REST != nil {
		opts := restserver.Options{
			Config: cfg,
			Model:  model,
			Health: storageManager.Health,
		}
		if storageManager.Enabled() {
			opts.Results = storageManager.ResultDistributor
			opts.Store = storageManager
		}

		controller, err := restserver.NewController(ctx, &wg, opts)
		if err != nil {
			return err
		}
		if err := controller.StartController(); err != nil {
			return err
		}
	}

	if cfg.Management != nil {
		controller, err := management.NewController(ctx, &wg, management.Options{
			Provider: a.configProvider,
			Config:   *cfg.Management,
			Model:    model,
			Health:   storageManager.Health,
		})
		if err != nil {
			return err
		}
		if err := controller.StartController(); err != nil {
			return err
		}
	}

	log.Info("application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
