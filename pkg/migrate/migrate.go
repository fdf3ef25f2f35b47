// Package migrate applies versioned SQL schema migrations.
package migrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"sort"

	"github.com/chrissnell/aeroaqua/internal/log"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB represents either a database connection or transaction
type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// MigrationProvider defines how migrations are loaded and tracked
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
}

// Migrator handles the execution of migrations
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *sql.DB, provider MigrationProvider) *Migrator {
	return &Migrator{
		db:       db,
		provider: provider,
	}
}

// Up applies every pending migration found in fsys to db
func Up(db *sql.DB, fsys fs.FS, migrationTable, dbDriver string) error {
	return NewMigrator(db, NewFSProvider(fsys, migrationTable, dbDriver)).MigrateUp()
}

// MigrateUp runs all pending migrations up to the latest version
func (m *Migrator) MigrateUp() error {
	return m.MigrateTo(-1)
}

// MigrateDown reverts migrations until targetVersion is the newest applied
func (m *Migrator) MigrateDown(targetVersion int) error {
	current, err := m.provider.GetCurrentVersion(m.db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if targetVersion >= current {
		return fmt.Errorf("target version %d must be less than current version %d", targetVersion, current)
	}

	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version > migrations[j].Version
	})

	for _, mig := range migrations {
		if mig.Version > targetVersion && mig.Version <= current {
			if err := m.execute(mig, false); err != nil {
				return fmt.Errorf("failed to roll back migration %d: %w", mig.Version, err)
			}
		}
	}
	return nil
}

// MigrateTo runs migrations up or down to reach targetVersion; -1 means latest
func (m *Migrator) MigrateTo(targetVersion int) error {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return err
	}

	current, err := m.provider.GetCurrentVersion(m.db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	if targetVersion == -1 && len(migrations) > 0 {
		targetVersion = migrations[len(migrations)-1].Version
	}
	if targetVersion < current {
		return m.MigrateDown(targetVersion)
	}

	for _, mig := range migrations {
		if mig.Version > current && mig.Version <= targetVersion {
			if err := m.execute(mig, true); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
			}
		}
	}
	return nil
}

// GetCurrentVersion returns the current migration version
func (m *Migrator) GetCurrentVersion() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, err
	}
	return m.provider.GetCurrentVersion(m.db)
}

// GetPendingMigrations returns the migrations newer than the current version, oldest first
func (m *Migrator) GetPendingMigrations() ([]Migration, error) {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return nil, err
	}

	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	var pending []Migration
	for _, mig := range migrations {
		if mig.Version > current {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// execute runs one migration and records the resulting version in the same transaction
func (m *Migrator) execute(mig Migration, up bool) error {
	stmt, version, direction := mig.Up, mig.Version, "up"
	if !up {
		stmt, version, direction = mig.Down, mig.Version-1, "down"
	}
	if stmt == "" {
		return fmt.Errorf("migration %d has no %s SQL", mig.Version, direction)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if err := m.provider.SetVersion(tx, version); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	log.Infow("applied migration", "version", mig.Version, "name", mig.Name, "direction", direction)
	return nil
}
