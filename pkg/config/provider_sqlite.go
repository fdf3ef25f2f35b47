package config

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/chrissnell/aeroaqua/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationTable records the applied configuration schema version
const MigrationTable = "config_schema_migrations"

// Migrations returns the configuration schema migrations
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const defaultConfigName = "default"

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens the configuration database at dbPath, creating it
// and applying pending schema migrations as needed.
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if err := migrate.Up(db, Migrations(), MigrationTable, "sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate configuration database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from the database with
// defaults applied for anything not stored.
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	location, err := s.GetLocation()
	if err != nil {
		return nil, fmt.Errorf("failed to load location: %w", err)
	}
	config.Location = *location

	model, err := s.GetModelConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load model config: %w", err)
	}
	config.Model = *model

	pipeline, err := s.GetPipelineConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline config: %w", err)
	}
	config.Pipeline = *pipeline

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	config.REST, err = s.GetRESTConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load REST config: %w", err)
	}

	config.Management, err = s.GetManagementConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load management config: %w", err)
	}

	logData, err := s.getLogConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load log config: %w", err)
	}
	config.Log = *logData

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

const configIDQuery = `(SELECT id FROM configs WHERE name = 'default')`

// GetLocation returns the stored location, or a zero value if none is stored
func (s *SQLiteProvider) GetLocation() (*LocationData, error) {
	var l LocationData
	err := s.db.QueryRow(`
		SELECT latitude, longitude, altitude, timezone
		FROM location_configs WHERE config_id = `+configIDQuery,
	).Scan(&l.Latitude, &l.Longitude, &l.Altitude, &l.Timezone)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query location: %w", err)
	}
	return &l, nil
}

// GetModelConfig returns the model path and its ordered candidates
func (s *SQLiteProvider) GetModelConfig() (*ModelData, error) {
	var m ModelData
	var path sql.NullString

	err := s.db.QueryRow(`SELECT path FROM model_configs WHERE config_id = ` + configIDQuery).Scan(&path)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query model config: %w", err)
	}
	m.Path = path.String

	rows, err := s.db.Query(`SELECT path FROM model_candidates WHERE config_id = ` + configIDQuery + ` ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query model candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan model candidate: %w", err)
		}
		m.Candidates = append(m.Candidates, c)
	}
	return &m, rows.Err()
}

// GetPipelineConfig returns the pipeline section
func (s *SQLiteProvider) GetPipelineConfig() (*PipelineData, error) {
	var p PipelineData
	var name, interval, integration, clearsky, coefficientSet sql.NullString
	var linke, bras sql.NullFloat64
	var workers sql.NullInt64

	err := s.db.QueryRow(`
		SELECT name, sample_interval, integration, clearsky,
		       linke_turbidity, bras_turbidity, coefficient_set, workers
		FROM pipeline_configs WHERE config_id = `+configIDQuery,
	).Scan(&name, &interval, &integration, &clearsky, &linke, &bras, &coefficientSet, &workers)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query pipeline config: %w", err)
	}

	p.Name = name.String
	p.Interval = interval.String
	p.Integration = integration.String
	p.ClearSky = clearsky.String
	p.LinkeTurbidity = linke.Float64
	p.BrasTurbidity = bras.Float64
	p.CoefficientSet = coefficientSet.String
	p.Workers = int(workers.Int64)
	return &p, nil
}

// GetStorageConfig returns the enabled storage backends
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	rows, err := s.db.Query(`
		SELECT backend_type, sqlite_path, timescale_connection_string
		FROM storage_configs
		WHERE config_id = ` + configIDQuery + ` AND enabled = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage configs: %w", err)
	}
	defer rows.Close()

	storage := &StorageData{}
	for rows.Next() {
		var backendType string
		var sqlitePath, connectionString sql.NullString

		if err := rows.Scan(&backendType, &sqlitePath, &connectionString); err != nil {
			return nil, fmt.Errorf("failed to scan storage config row: %w", err)
		}

		switch backendType {
		case "sqlite":
			if sqlitePath.Valid {
				storage.SQLite = &SQLiteData{Path: sqlitePath.String}
			}
		case "timescaledb":
			if connectionString.Valid {
				storage.TimescaleDB = &TimescaleDBData{ConnectionString: connectionString.String}
			}
		}
	}
	return storage, rows.Err()
}

// GetRESTConfig returns the REST section, or nil when the API is disabled
func (s *SQLiteProvider) GetRESTConfig() (*RESTServerData, error) {
	var cert, key, listenAddr sql.NullString
	var port sql.NullInt64

	err := s.db.QueryRow(`
		SELECT tls_cert, tls_key, port, listen_addr
		FROM rest_configs WHERE enabled = 1 AND config_id = `+configIDQuery,
	).Scan(&cert, &key, &port, &listenAddr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query REST config: %w", err)
	}

	return &RESTServerData{
		Cert:       cert.String,
		Key:        key.String,
		Port:       int(port.Int64),
		ListenAddr: listenAddr.String,
	}, nil
}

// GetManagementConfig returns the management section, or nil when disabled
func (s *SQLiteProvider) GetManagementConfig() (*ManagementData, error) {
	var cert, key, listenAddr, token sql.NullString
	var port sql.NullInt64

	err := s.db.QueryRow(`
		SELECT tls_cert, tls_key, port, listen_addr, auth_token
		FROM management_configs WHERE enabled = 1 AND config_id = `+configIDQuery,
	).Scan(&cert, &key, &port, &listenAddr, &token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query management config: %w", err)
	}

	return &ManagementData{
		Cert:       cert.String,
		Key:        key.String,
		Port:       int(port.Int64),
		ListenAddr: listenAddr.String,
		AuthToken:  token.String,
	}, nil
}

// SetManagementToken stores the management API token
func (s *SQLiteProvider) SetManagementToken(token string) error {
	res, err := s.db.Exec(`
		UPDATE management_configs SET auth_token = ?
		WHERE config_id = `+configIDQuery, nullString(token))
	if err != nil {
		return fmt.Errorf("failed to store management token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("management API is not configured")
	}
	return nil
}

func (s *SQLiteProvider) getLogConfig() (*LogData, error) {
	var file sql.NullString
	var size, backups, age sql.NullInt64

	err := s.db.QueryRow(`
		SELECT file, max_size_mb, max_backups, max_age_days
		FROM log_configs WHERE config_id = `+configIDQuery,
	).Scan(&file, &size, &backups, &age)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query log config: %w", err)
	}

	return &LogData{
		File:       file.String,
		MaxSizeMB:  int(size.Int64),
		MaxBackups: int(backups.Int64),
		MaxAgeDays: int(age.Int64),
	}, nil
}

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.upsertConfig(tx, defaultConfigName)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	if err := s.clearExistingConfig(tx, configID); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	l := configData.Location
	if _, err := tx.Exec(`
		INSERT INTO location_configs (config_id, latitude, longitude, altitude, timezone)
		VALUES (?, ?, ?, ?, ?)`,
		configID, l.Latitude, l.Longitude, l.Altitude, l.Timezone,
	); err != nil {
		return fmt.Errorf("failed to insert location: %w", err)
	}

	if err := s.insertModelConfig(tx, configID, &configData.Model); err != nil {
		return fmt.Errorf("failed to insert model config: %w", err)
	}

	p := configData.Pipeline
	if _, err := tx.Exec(`
		INSERT INTO pipeline_configs (
			config_id, name, sample_interval, integration, clearsky,
			linke_turbidity, bras_turbidity, coefficient_set, workers
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		configID, nullString(p.Name), nullString(p.Interval), nullString(p.Integration),
		nullString(p.ClearSky), nullFloat64(p.LinkeTurbidity), nullFloat64(p.BrasTurbidity),
		nullString(p.CoefficientSet), p.Workers,
	); err != nil {
		return fmt.Errorf("failed to insert pipeline config: %w", err)
	}

	if err := s.insertStorageConfigs(tx, configID, &configData.Storage); err != nil {
		return fmt.Errorf("failed to insert storage configs: %w", err)
	}

	if r := configData.REST; r != nil {
		if _, err := tx.Exec(`
			INSERT INTO rest_configs (config_id, enabled, tls_cert, tls_key, port, listen_addr)
			VALUES (?, 1, ?, ?, ?, ?)`,
			configID, nullString(r.Cert), nullString(r.Key), r.Port, nullString(r.ListenAddr),
		); err != nil {
			return fmt.Errorf("failed to insert REST config: %w", err)
		}
	}

	if m := configData.Management; m != nil {
		if _, err := tx.Exec(`
			INSERT INTO management_configs (config_id, enabled, tls_cert, tls_key, port, listen_addr, auth_token)
			VALUES (?, 1, ?, ?, ?, ?, ?)`,
			configID, nullString(m.Cert), nullString(m.Key), m.Port, nullString(m.ListenAddr), nullString(m.AuthToken),
		); err != nil {
			return fmt.Errorf("failed to insert management config: %w", err)
		}
	}

	lg := configData.Log
	if _, err := tx.Exec(`
		INSERT INTO log_configs (config_id, file, max_size_mb, max_backups, max_age_days)
		VALUES (?, ?, ?, ?, ?)`,
		configID, nullString(lg.File), lg.MaxSizeMB, lg.MaxBackups, lg.MaxAgeDays,
	); err != nil {
		return fmt.Errorf("failed to insert log config: %w", err)
	}

	return tx.Commit()
}

// SetStorageBackend enables or replaces one storage backend
func (s *SQLiteProvider) SetStorageBackend(storageType string, cfg any) error {
	var sqlitePath, connectionString sql.NullString

	switch c := cfg.(type) {
	case *SQLiteData:
		if storageType != "sqlite" {
			return fmt.Errorf("SQLite settings given for backend %q", storageType)
		}
		sqlitePath = nullString(c.Path)
	case *TimescaleDBData:
		if storageType != "timescaledb" {
			return fmt.Errorf("TimescaleDB settings given for backend %q", storageType)
		}
		connectionString = nullString(c.ConnectionString)
	default:
		return fmt.Errorf("unsupported storage config type %T", cfg)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.upsertConfig(tx, defaultConfigName)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO storage_configs (config_id, backend_type, enabled, sqlite_path, timescale_connection_string)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (config_id, backend_type) DO UPDATE SET
			enabled = 1,
			sqlite_path = excluded.sqlite_path,
			timescale_connection_string = excluded.timescale_connection_string`,
		configID, storageType, sqlitePath, connectionString,
	); err != nil {
		return fmt.Errorf("failed to set %s storage: %w", storageType, err)
	}
	return tx.Commit()
}

// DisableStorageBackend turns a storage backend off without forgetting its settings
func (s *SQLiteProvider) DisableStorageBackend(storageType string) error {
	res, err := s.db.Exec(`
		UPDATE storage_configs SET enabled = 0
		WHERE backend_type = ? AND enabled = 1 AND config_id = `+configIDQuery, storageType)
	if err != nil {
		return fmt.Errorf("failed to disable %s storage: %w", storageType, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage backend %s is not enabled", storageType)
	}
	return nil
}

func (s *SQLiteProvider) upsertConfig(tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.Exec(`
		INSERT INTO configs (name) VALUES (?)
		ON CONFLICT (name) DO UPDATE SET updated_at = CURRENT_TIMESTAMP`, name); err != nil {
		return 0, err
	}

	var id int64
	err := tx.QueryRow(`SELECT id FROM configs WHERE name = ?`, name).Scan(&id)
	return id, err
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	tables := []string{
		"location_configs",
		"model_configs",
		"model_candidates",
		"pipeline_configs",
		"storage_configs",
		"rest_configs",
		"management_configs",
		"log_configs",
	}

	for _, table := range tables {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE config_id = ?", configID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProvider) insertModelConfig(tx *sql.Tx, configID int64, model *ModelData) error {
	if _, err := tx.Exec(`INSERT INTO model_configs (config_id, path) VALUES (?, ?)`,
		configID, nullString(model.Path)); err != nil {
		return err
	}
	for i, c := range model.Candidates {
		if _, err := tx.Exec(`INSERT INTO model_candidates (config_id, position, path) VALUES (?, ?, ?)`,
			configID, i, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProvider) insertStorageConfigs(tx *sql.Tx, configID int64, storage *StorageData) error {
	if storage.SQLite != nil {
		if _, err := tx.Exec(`
			INSERT INTO storage_configs (config_id, backend_type, enabled, sqlite_path)
			VALUES (?, 'sqlite', 1, ?)`, configID, storage.SQLite.Path); err != nil {
			return err
		}
	}

	if storage.TimescaleDB != nil {
		if _, err := tx.Exec(`
			INSERT INTO storage_configs (config_id, backend_type, enabled, timescale_connection_string)
			VALUES (?, 'timescaledb', 1, ?)`, configID, storage.TimescaleDB.ConnectionString); err != nil {
			return err
		}
	}

	return nil
}

// Helper functions for nullable values
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat64(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f != 0}
}
