package migrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// migrationFile matches 001_create_results.up.sql and 001_create_results.down.sql
var migrationFile = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSProvider loads migrations from a file system, usually an embed.FS
type FSProvider struct {
	fsys           fs.FS
	migrationTable string
	dbDriver       string // "sqlite" or "postgres"
}

// NewFSProvider returns a provider reading *.sql migrations from fsys
func NewFSProvider(fsys fs.FS, migrationTable, dbDriver string) *FSProvider {
	if migrationTable == "" {
		migrationTable = "schema_migrations"
	}
	if dbDriver == "" {
		dbDriver = "sqlite"
	}
	return &FSProvider{
		fsys:           fsys,
		migrationTable: migrationTable,
		dbDriver:       dbDriver,
	}
}

// GetMigrations loads every migration in the file system, sorted by version
func (p *FSProvider) GetMigrations() ([]Migration, error) {
	byVersion := make(map[int]*Migration)

	err := fs.WalkDir(p.fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		m := migrationFile.FindStringSubmatch(path.Base(name))
		if m == nil {
			return nil
		}

		version, err := strconv.Atoi(m[1])
		if err != nil {
			return fmt.Errorf("invalid version number in file %s: %w", name, err)
		}

		content, err := fs.ReadFile(p.fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		mig := byVersion[version]
		if mig == nil {
			mig = &Migration{Version: version, Name: strings.ReplaceAll(m[2], "_", " ")}
			byVersion[version] = mig
		}
		if m[3] == "up" {
			mig.Up = string(content)
		} else {
			mig.Down = string(content)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// CreateMigrationTable creates the migration tracking table
func (p *FSProvider) CreateMigrationTable(db *sql.DB) error {
	column := "DATETIME"
	if p.dbDriver == "postgres" {
		column = "TIMESTAMP"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at %s DEFAULT CURRENT_TIMESTAMP
		)
	`, p.migrationTable, column)

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the highest applied migration version
func (p *FSProvider) GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", p.migrationTable)).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// SetVersion makes version the highest applied migration; zero clears the table
func (p *FSProvider) SetVersion(db DB, version int) error {
	ph := "?"
	upsert := "INSERT OR REPLACE INTO %s (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)"
	if p.dbDriver == "postgres" {
		ph = "$1"
		upsert = `INSERT INTO %s (version, applied_at) VALUES ($1, CURRENT_TIMESTAMP)
			ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP`
	}

	if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s WHERE version > %s", p.migrationTable, ph), version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	if version == 0 {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf(upsert, p.migrationTable), version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}
