// Package sqlite stores prediction results in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chrissnell/aeroaqua/internal/log"
	"github.com/chrissnell/aeroaqua/internal/pipeline"
	"github.com/chrissnell/aeroaqua/internal/storage"
	"github.com/chrissnell/aeroaqua/pkg/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationTable records the applied result schema version
const MigrationTable = "results_schema_migrations"

// Migrations returns the result schema migrations
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const insertSQL = `
INSERT OR REPLACE INTO results (
    run_id, stored_at, pipeline, date, latitude, longitude, altitude, timezone,
    cloud_type, rh_percent, temperature_c, interval_minutes, solar_energy_kwh_m2,
    predicted_liters_per_day, coefficient_set, sunrise, sunset, untrustworthy, model_path
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectRecentSQL = `
SELECT run_id, pipeline, date, latitude, longitude, altitude, timezone,
    cloud_type, rh_percent, temperature_c, interval_minutes, solar_energy_kwh_m2,
    predicted_liters_per_day, coefficient_set, sunrise, sunset, untrustworthy, model_path
FROM results
ORDER BY stored_at DESC, rowid DESC
LIMIT ?`

// Storage is a SQLite result store
type Storage struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the database at path and applies the schema
func New(ctx context.Context, path string) (*Storage, error) {
	log.Infof("opening SQLite result store %s...", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to result database: %w", err)
	}

	if err := migrate.Up(db, Migrations(), MigrationTable, "sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate result database: %w", err)
	}

	return &Storage{db: db, path: path}, nil
}

// StartStorageEngine creates a goroutine loop to receive results and store them
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- pipeline.Result {
	log.Info("starting SQLite storage engine...")
	resultChan := make(chan pipeline.Result, 10)
	wg.Add(1)
	go storage.ProcessResults(ctx, wg, resultChan, s.StoreResults, "SQLite")
	return resultChan
}

// StoreResults writes results in a single transaction.  A result whose run ID
// is already stored replaces the earlier row.
func (s *Storage) StoreResults(ctx context.Context, results []pipeline.Result) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range results {
		_, err := stmt.ExecContext(ctx,
			r.RunID, now, r.Pipeline, r.Date, r.Latitude, r.Longitude, r.Altitude, r.Timezone,
			r.CloudType, r.RHPercent, r.TemperatureC, r.IntervalMinutes, r.SolarEnergyKWhM2,
			r.PredictedLitersPerDay, r.CoefficientSet, nullTime(r.Sunrise), nullTime(r.Sunset),
			r.Untrustworthy, nullString(r.ModelPath))
		if err != nil {
			return fmt.Errorf("could not store result %s: %w", r.RunID, err)
		}
	}

	return tx.Commit()
}

// RecentResults returns up to limit results, most recently stored first
func (s *Storage) RecentResults(ctx context.Context, limit int) ([]pipeline.Result, error) {
	rows, err := s.db.QueryContext(ctx, selectRecentSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []pipeline.Result
	for rows.Next() {
		var (
			r               pipeline.Result
			sunrise, sunset sql.NullTime
			modelPath       sql.NullString
		)
		err := rows.Scan(&r.RunID, &r.Pipeline, &r.Date, &r.Latitude, &r.Longitude, &r.Altitude,
			&r.Timezone, &r.CloudType, &r.RHPercent, &r.TemperatureC, &r.IntervalMinutes,
			&r.SolarEnergyKWhM2, &r.PredictedLitersPerDay, &r.CoefficientSet, &sunrise, &sunset,
			&r.Untrustworthy, &modelPath)
		if err != nil {
			return nil, err
		}
		r.Sunrise = sunrise.Time
		r.Sunset = sunset.Time
		r.ModelPath = modelPath.String
		results = append(results, r)
	}

	return results, rows.Err()
}

// CheckHealth pings the database and counts the stored results
func (s *Storage) CheckHealth(ctx context.Context) *storage.HealthData {
	if s.db == nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "No database connection", nil)
	}

	if err := s.db.PingContext(ctx); err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "Database ping failed", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM results").Scan(&count); err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "Database query test failed", err)
	}

	return storage.CreateHealthData(storage.StatusHealthy, fmt.Sprintf("SQLite operational, %d results stored", count), nil)
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
