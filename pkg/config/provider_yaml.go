package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from the YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// ParseYAML decodes a YAML document into ConfigData with defaults applied
func ParseYAML(data []byte) (*ConfigData, error) {
	var doc ConfigYAML
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Location: LocationData{
			Latitude:  doc.Location.Latitude,
			Longitude: doc.Location.Longitude,
			Altitude:  doc.Location.Altitude,
			Timezone:  doc.Location.Timezone,
		},
		Model: ModelData{
			Path:       doc.Model.Path,
			Candidates: doc.Model.Candidates,
		},
		Pipeline: PipelineData{
			Name:           doc.Pipeline.Name,
			Interval:       doc.Pipeline.Interval,
			Integration:    doc.Pipeline.Integration,
			ClearSky:       doc.Pipeline.ClearSky,
			LinkeTurbidity: doc.Pipeline.LinkeTurbidity,
			BrasTurbidity:  doc.Pipeline.BrasTurbidity,
			CoefficientSet: doc.Pipeline.CoefficientSet,
			Workers:        doc.Pipeline.Workers,
		},
		Log: LogData{
			File:       doc.Log.File,
			MaxSizeMB:  doc.Log.MaxSizeMB,
			MaxBackups: doc.Log.MaxBackups,
			MaxAgeDays: doc.Log.MaxAgeDays,
		},
	}

	if doc.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{Path: doc.Storage.SQLite.Path}
	}
	if doc.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: doc.Storage.TimescaleDB.ConnectionString,
		}
	}
	if doc.REST != nil {
		config.REST = &RESTServerData{
			Cert:       doc.REST.Cert,
			Key:        doc.REST.Key,
			Port:       doc.REST.Port,
			ListenAddr: doc.REST.ListenAddr,
		}
	}

	if doc.Management != nil {
		config.Management = &ManagementData{
			Cert:       doc.Management.Cert,
			Key:        doc.Management.Key,
			Port:       doc.Management.Port,
			ListenAddr: doc.Management.ListenAddr,
			AuthToken:  doc.Management.AuthToken,
		}
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (y *YAMLProvider) loaded() (*ConfigData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return y.config, nil
}

// GetLocation returns the location section
func (y *YAMLProvider) GetLocation() (*LocationData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Location, nil
}

// GetModelConfig returns the model section
func (y *YAMLProvider) GetModelConfig() (*ModelData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Model, nil
}

// GetPipelineConfig returns the pipeline section
func (y *YAMLProvider) GetPipelineConfig() (*PipelineData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Pipeline, nil
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Storage, nil
}

// GetRESTConfig returns the REST section, or nil when the API is disabled
func (y *YAMLProvider) GetRESTConfig() (*RESTServerData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return c.REST, nil
}

// GetManagementConfig returns the management section, or nil when disabled
func (y *YAMLProvider) GetManagementConfig() (*ManagementData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return c.Management, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// ConfigYAML is the on-disk YAML layout
type ConfigYAML struct {
	Location   LocationYAML    `yaml:"location,omitempty"`
	Model      ModelYAML       `yaml:"model,omitempty"`
	Pipeline   PipelineYAML    `yaml:"pipeline,omitempty"`
	Storage    StorageYAML     `yaml:"storage,omitempty"`
	REST       *RESTServerYAML `yaml:"rest,omitempty"`
	Management *ManagementYAML `yaml:"management,omitempty"`
	Log        LogYAML         `yaml:"log,omitempty"`
}

type LocationYAML struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Altitude  float64 `yaml:"altitude"`
	Timezone  string  `yaml:"timezone"`
}

type ModelYAML struct {
	Path       string   `yaml:"path,omitempty"`
	Candidates []string `yaml:"candidates,omitempty"`
}

type PipelineYAML struct {
	Name           string  `yaml:"name,omitempty"`
	Interval       string  `yaml:"interval,omitempty"`
	Integration    string  `yaml:"integration,omitempty"`
	ClearSky       string  `yaml:"clearsky,omitempty"`
	LinkeTurbidity float64 `yaml:"linke-turbidity,omitempty"`
	BrasTurbidity  float64 `yaml:"bras-turbidity,omitempty"`
	CoefficientSet string  `yaml:"coefficient-set,omitempty"`
	Workers        int     `yaml:"workers,omitempty"`
}

type StorageYAML struct {
	SQLite      *SQLiteYAML      `yaml:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
}

type SQLiteYAML struct {
	Path string `yaml:"path"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type RESTServerYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
}

type ManagementYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
	AuthToken  string `yaml:"auth-token,omitempty"`
}

type LogYAML struct {
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max-size-mb,omitempty"`
	MaxBackups int    `yaml:"max-backups,omitempty"`
	MaxAgeDays int    `yaml:"max-age-days,omitempty"`
}
