package managers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/aeroaqua/internal/log"
	"github.com/chrissnell/aeroaqua/internal/pipeline"
	"github.com/chrissnell/aeroaqua/internal/storage"
	"github.com/chrissnell/aeroaqua/internal/storage/sqlite"
	"github.com/chrissnell/aeroaqua/internal/storage/timescaledb"
	"github.com/chrissnell/aeroaqua/pkg/config"
)

// HealthCheckInterval is how often backend health is refreshed
const HealthCheckInterval = 60 * time.Second

// StorageManager holds our active storage backends
type StorageManager struct {
	Engines           []StorageEngine
	ResultDistributor chan pipeline.Result
	Health            *storage.HealthManager
}

// StorageEngine holds a backend storage engine's interface as well as
// a channel for passing results to the engine
type StorageEngine struct {
	Name   string
	Engine storage.StorageEngineInterface
	C      chan<- pipeline.Result
}

// Backend constructors
var (
	openSQLite = func(ctx context.Context, path string) (storage.StorageEngineInterface, error) {
		return sqlite.New(ctx, path)
	}
	openTimescaleDB = func(ctx context.Context, conn string) (storage.StorageEngineInterface, error) {
		return timescaledb.New(ctx, conn)
	}
)

type namedEngine struct {
	name   string
	engine storage.StorageEngineInterface
}

// NewStorageManager creates a StorageManager populated with every configured
// backend.  All backends are opened before any is started; if one fails to
// open, those already opened are closed.
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, c config.StorageData) (*StorageManager, error) {
	s := &StorageManager{
		ResultDistributor: make(chan pipeline.Result, 20),
		Health:            storage.NewHealthManager(),
	}

	opened, err := openEngines(ctx, c)
	if err != nil {
		return nil, err
	}
	for _, e := range opened {
		s.AddEngine(ctx, wg, e.name, e.engine)
	}

	// Start our result distributor to fan results out to the storage backends
	wg.Add(1)
	go s.startResultDistributor(ctx, wg)

	return s, nil
}

func openEngines(ctx context.Context, c config.StorageData) ([]namedEngine, error) {
	var opened []namedEngine

	fail := func(err error) ([]namedEngine, error) {
		for _, e := range opened {
			if cerr := e.engine.Close(); cerr != nil {
				log.Errorf("error closing %s storage backend: %v", e.name, cerr)
			}
		}
		return nil, err
	}

	if c.SQLite != nil && c.SQLite.Path != "" {
		engine, err := openSQLite(ctx, c.SQLite.Path)
		if err != nil {
			return fail(fmt.Errorf("could not add SQLite storage backend: %w", err))
		}
		opened = append(opened, namedEngine{"sqlite", engine})
	}

	if c.TimescaleDB != nil && c.TimescaleDB.ConnectionString != "" {
		engine, err := openTimescaleDB(ctx, c.TimescaleDB.ConnectionString)
		if err != nil {
			return fail(fmt.Errorf("could not add TimescaleDB storage backend: %w", err))
		}
		opened = append(opened, namedEngine{"timescaledb", engine})
	}

	return opened, nil
}

// AddEngine starts engine and its health monitor and adds it to the manager.
// Engines must be added before results are distributed.
func (s *StorageManager) AddEngine(ctx context.Context, wg *sync.WaitGroup, name string, engine storage.StorageEngineInterface) {
	se := StorageEngine{
		Name:   name,
		Engine: engine,
		C:      engine.StartStorageEngine(ctx, wg),
	}
	s.Engines = append(s.Engines, se)
	storage.StartHealthMonitor(ctx, s.Health, name, engine, HealthCheckInterval)
	log.Infof("%s storage backend enabled", name)
}

// Enabled reports whether any backend is configured
func (s *StorageManager) Enabled() bool {
	return len(s.Engines) > 0
}

// StoreResults writes results synchronously to every backend, returning the
// joined errors of the backends that failed
func (s *StorageManager) StoreResults(ctx context.Context, results []pipeline.Result) error {
	var errs []error
	for _, e := range s.Engines {
		if err := e.Engine.StoreResults(ctx, results); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	return errors.Join(errs...)
}

// RecentResults reads from the first configured backend
func (s *StorageManager) RecentResults(ctx context.Context, limit int) ([]pipeline.Result, error) {
	if len(s.Engines) == 0 {
		return nil, nil
	}
	return s.Engines[0].Engine.RecentResults(ctx, limit)
}

// Close closes every backend
func (s *StorageManager) Close() error {
	var errs []error
	for _, e := range s.Engines {
		if err := e.Engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	return errors.Join(errs...)
}

// startResultDistributor receives results and fans them out to the storage backends
func (s *StorageManager) startResultDistributor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case r := <-s.ResultDistributor:
			for _, e := range s.Engines {
				select {
				case e.C <- r:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
