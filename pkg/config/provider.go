// Package config loads aeroaqua configuration from YAML files or a SQLite
// configuration database.
package config

import (
	"fmt"
	"time"

	"github.com/chrissnell/aeroaqua/pkg/solar"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetLocation() (*LocationData, error)
	GetModelConfig() (*ModelData, error)
	GetPipelineConfig() (*PipelineData, error)
	GetStorageConfig() (*StorageData, error)
	GetRESTConfig() (*RESTServerData, error)
	GetManagementConfig() (*ManagementData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Location   LocationData    `json:"location"`
	Model      ModelData       `json:"model"`
	Pipeline   PipelineData    `json:"pipeline"`
	Storage    StorageData     `json:"storage,omitempty"`
	REST       *RESTServerData `json:"rest,omitempty"`
	Management *ManagementData `json:"management,omitempty"`
	Log        LogData         `json:"log,omitempty"`
}

// LocationData is the default site for predictions
type LocationData struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Timezone  string  `json:"timezone"`
}

// ModelData locates the irradiance model artifact
type ModelData struct {
	Path       string   `json:"path,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

// PipelineData selects and tunes the prediction pipeline
type PipelineData struct {
	Name           string  `json:"name,omitempty"`
	Interval       string  `json:"interval,omitempty"`
	Integration    string  `json:"integration,omitempty"`
	ClearSky       string  `json:"clearsky,omitempty"`
	LinkeTurbidity float64 `json:"linke_turbidity,omitempty"`
	BrasTurbidity  float64 `json:"bras_turbidity,omitempty"`
	CoefficientSet string  `json:"coefficient_set,omitempty"`
	Workers        int     `json:"workers,omitempty"`
}

// StorageData holds the configuration for the result storage backends
type StorageData struct {
	SQLite      *SQLiteData      `json:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
}

// SQLiteData configures the SQLite result store
type SQLiteData struct {
	Path string `json:"path"`
}

// TimescaleDBData configures the TimescaleDB result store
type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

// RESTServerData configures the HTTP API
type RESTServerData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
}

// ManagementData configures the authenticated administration API
type ManagementData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"`
}

// LogData configures optional log file output
type LogData struct {
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
}

// Defaults for unset configuration values
const (
	DefaultRESTPort       = 8080
	DefaultManagementPort = 8081
	DefaultWorkers        = 4
)

// ApplyDefaults fills unset values
func (c *ConfigData) ApplyDefaults() {
	if c.Location == (LocationData{}) {
		d := solar.DefaultLocation()
		c.Location = LocationData{
			Latitude:  d.Latitude,
			Longitude: d.Longitude,
			Altitude:  d.Altitude,
			Timezone:  d.Timezone,
		}
	}
	if c.Location.Timezone == "" {
		c.Location.Timezone = "UTC"
	}
	if c.Pipeline.Interval == "" {
		c.Pipeline.Interval = solar.DefaultInterval.String()
	}
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = DefaultWorkers
	}
	if c.REST != nil && c.REST.Port == 0 {
		c.REST.Port = DefaultRESTPort
	}
}

// Validate checks values that would otherwise fail deep inside a pipeline run
func (c *ConfigData) Validate() error {
	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		return fmt.Errorf("location latitude %g out of range", c.Location.Latitude)
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		return fmt.Errorf("location longitude %g out of range", c.Location.Longitude)
	}
	if _, err := c.SolarLocation().TZ(); err != nil {
		return err
	}
	if _, err := c.Pipeline.IntervalDuration(); err != nil {
		return err
	}
	return nil
}

// SolarLocation converts the location section
func (c *ConfigData) SolarLocation() solar.Location {
	return solar.Location{
		Latitude:  c.Location.Latitude,
		Longitude: c.Location.Longitude,
		Altitude:  c.Location.Altitude,
		Timezone:  c.Location.Timezone,
	}
}

// IntervalDuration parses the sampling interval; empty means the default
func (p PipelineData) IntervalDuration() (time.Duration, error) {
	if p.Interval == "" {
		return solar.DefaultInterval, nil
	}
	d, err := time.ParseDuration(p.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid pipeline interval %q: %w", p.Interval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("pipeline interval %s must be positive", d)
	}
	return d, nil
}

// ClearSkyOptions converts the turbidity settings
func (p PipelineData) ClearSkyOptions() solar.ClearSkyOptions {
	return solar.ClearSkyOptions{
		LinkeTurbidity: p.LinkeTurbidity,
		BrasTurbidity:  p.BrasTurbidity,
	}
}

// NewProvider opens the named backend: "yaml" or "sqlite"
func NewProvider(backend, path string) (ConfigProvider, error) {
	switch backend {
	case "yaml", "":
		return NewYAMLProvider(path), nil
	case "sqlite":
		return NewSQLiteProvider(path)
	default:
		return nil, fmt.Errorf("unsupported config backend %q (use yaml or sqlite)", backend)
	}
}
