// Package database provides connection management for the persistent store.
//
// This package includes:
//   - Database connection management using GORM and PostgreSQL
//   - Support for TimescaleDB hypertables on the klines table
//   - Repositories for signals, trade records, and klines
//
// Data Models:
//
//	All data models (Signal, TradeRecord, Kline, ...) are defined in the
//	models_pkg package to avoid circular import dependencies.
package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	models "perpsignal/database/models_pkg"
)

// Database holds the GORM database connection and provides access to the
// underlying DB instance.
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance for direct access when needed.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Connect establishes the database connection using GORM.
func Connect(host string, port int, dbname, user, password string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		host, port, dbname, user, password)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Type aliases re-exported for callers that only need the model shapes.
type Signal = models.Signal
type TradeRecord = models.TradeRecord
type Kline = models.Kline
type PerformanceMetric = models.PerformanceMetric
type DailyStat = models.DailyStat
