// Package timescaledb stores prediction results in a TimescaleDB hypertable.
package timescaledb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/chrissnell/aeroaqua/internal/database"
	"github.com/chrissnell/aeroaqua/internal/log"
	"github.com/chrissnell/aeroaqua/internal/pipeline"
	"github.com/chrissnell/aeroaqua/internal/storage"
)

var errNilConnection = errors.New("TimescaleDB connection is nil")

// Storage holds the connection for a TimescaleDB storage backend
type Storage struct {
	TimescaleDBConn *gorm.DB
}

// Prediction is one stored result row
type Prediction struct {
	Time                  time.Time      `gorm:"column:time"`
	RunID                 string         `gorm:"column:run_id"`
	Pipeline              string         `gorm:"column:pipeline"`
	Date                  string         `gorm:"column:date"`
	Latitude              float64        `gorm:"column:latitude"`
	Longitude             float64        `gorm:"column:longitude"`
	Altitude              float64        `gorm:"column:altitude"`
	Timezone              string         `gorm:"column:timezone"`
	CloudType             float32        `gorm:"column:cloud_type"`
	RHPercent             float32        `gorm:"column:rh_percent"`
	TemperatureC          float32        `gorm:"column:temperature_c"`
	IntervalMinutes       float32        `gorm:"column:interval_minutes"`
	SolarEnergyKWhM2      float64        `gorm:"column:solar_energy_kwh_m2"`
	PredictedLitersPerDay float64        `gorm:"column:predicted_liters_per_day"`
	CoefficientSet        string         `gorm:"column:coefficient_set"`
	Sunrise               sql.NullTime   `gorm:"column:sunrise"`
	Sunset                sql.NullTime   `gorm:"column:sunset"`
	Untrustworthy         bool           `gorm:"column:untrustworthy"`
	ModelPath             sql.NullString `gorm:"column:model_path"`
}

// TableName implements gorm's Tabler
func (Prediction) TableName() string {
	return "predictions"
}

// NewPrediction converts a result into a row stamped with t
func NewPrediction(r pipeline.Result, t time.Time) Prediction {
	return Prediction{
		Time:                  t,
		RunID:                 r.RunID,
		Pipeline:              r.Pipeline,
		Date:                  r.Date,
		Latitude:              r.Latitude,
		Longitude:             r.Longitude,
		Altitude:              r.Altitude,
		Timezone:              r.Timezone,
		CloudType:             float32(r.CloudType),
		RHPercent:             float32(r.RHPercent),
		TemperatureC:          float32(r.TemperatureC),
		IntervalMinutes:       float32(r.IntervalMinutes),
		SolarEnergyKWhM2:      r.SolarEnergyKWhM2,
		PredictedLitersPerDay: r.PredictedLitersPerDay,
		CoefficientSet:        r.CoefficientSet,
		Sunrise:               sql.NullTime{Time: r.Sunrise, Valid: !r.Sunrise.IsZero()},
		Sunset:                sql.NullTime{Time: r.Sunset, Valid: !r.Sunset.IsZero()},
		Untrustworthy:         r.Untrustworthy,
		ModelPath:             sql.NullString{String: r.ModelPath, Valid: r.ModelPath != ""},
	}
}

// Result converts a stored row back into a result
func (p Prediction) Result() pipeline.Result {
	r := pipeline.Result{
		RunID:                 p.RunID,
		Pipeline:              p.Pipeline,
		Date:                  p.Date,
		Latitude:              p.Latitude,
		Longitude:             p.Longitude,
		Altitude:              p.Altitude,
		Timezone:              p.Timezone,
		CloudType:             float64(p.CloudType),
		RHPercent:             float64(p.RHPercent),
		TemperatureC:          float64(p.TemperatureC),
		IntervalMinutes:       float64(p.IntervalMinutes),
		SolarEnergyKWhM2:      p.SolarEnergyKWhM2,
		PredictedLitersPerDay: p.PredictedLitersPerDay,
		CoefficientSet:        p.CoefficientSet,
		Untrustworthy:         p.Untrustworthy,
		ModelPath:             p.ModelPath.String,
	}
	if p.Sunrise.Valid {
		r.Sunrise = p.Sunrise.Time
	}
	if p.Sunset.Valid {
		r.Sunset = p.Sunset.Time
	}
	// postgres returns date columns as a full timestamp
	if len(r.Date) > len(pipeline.DateLayout) {
		r.Date = r.Date[:len(pipeline.DateLayout)]
	}
	return r
}

// New connects to TimescaleDB and creates the predictions hypertable
func New(ctx context.Context, connectionString string) (*Storage, error) {
	var err error
	t := Storage{}

	t.TimescaleDBConn, err = database.CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}

	for _, step := range schemaSteps {
		log.Info(step.description + "...")
		if err := t.TimescaleDBConn.WithContext(ctx).Exec(step.sql).Error; err != nil {
			log.Warnf("warning: %s failed: %v", step.description, err)
			return nil, fmt.Errorf("%s: %w", step.description, err)
		}
	}

	return &t, nil
}

// StartStorageEngine creates a goroutine loop to receive results and send
// them off to TimescaleDB
func (t *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- pipeline.Result {
	log.Info("starting TimescaleDB storage engine...")
	resultChan := make(chan pipeline.Result, 10)
	wg.Add(1)
	go storage.ProcessResults(ctx, wg, resultChan, t.StoreResults, "TimescaleDB")
	return resultChan
}

// StoreResults inserts results in one batch
func (t *Storage) StoreResults(ctx context.Context, results []pipeline.Result) error {
	if len(results) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]Prediction, len(results))
	for i, r := range results {
		rows[i] = NewPrediction(r, now)
	}

	if err := t.TimescaleDBConn.WithContext(ctx).Create(&rows).Error; err != nil {
		log.Error("could not store results:", err)
		return err
	}
	return nil
}

// RecentResults returns up to limit results, newest first
func (t *Storage) RecentResults(ctx context.Context, limit int) ([]pipeline.Result, error) {
	var rows []Prediction
	err := t.TimescaleDBConn.WithContext(ctx).Order("time DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error querying database for recent results: %w", err)
	}

	results := make([]pipeline.Result, len(rows))
	for i, p := range rows {
		results[i] = p.Result()
	}
	return results, nil
}

// Close closes the underlying connection pool
func (t *Storage) Close() error {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
