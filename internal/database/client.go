// Package database opens gorm connections to PostgreSQL/TimescaleDB.
package database

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/aeroaqua/internal/log"
)

// NewLogger returns a gorm logger that writes through zap
func NewLogger() logger.Interface {
	return logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// CreateConnection opens a connection with the standard gorm configuration
func CreateConnection(connectionString string) (*gorm.DB, error) {
	log.Info("connecting to TimescaleDB...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: NewLogger()})
	if err != nil {
		log.Warn("warning: unable to create a TimescaleDB connection:", err)
		return nil, err
	}
	log.Info("TimescaleDB connection successful")

	return db, nil
}
