// database/db.go - Database Connection (PostgreSQL)
package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"wizzzard/config"
	"wizzzard/logger"
)

var db *gorm.DB

// InitDB opens the PostgreSQL connection and runs migrations.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if !cfg.IsProduction() && cfg.LogLevel == "debug" {
		logLevel = gormlogger.Info
	}

	conn, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Log.Info("✅ PostgreSQL database connected successfully")

	if err := RunMigrations(conn); err != nil {
		return nil, err
	}

	db = conn
	return db, nil
}

// GetDB returns the database instance, or nil before InitDB.
func GetDB() *gorm.DB {
	return db
}

// CloseDB closes the database connection
func CloseDB() error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	logger.Log.Info("Database connection closed", zap.String("driver", "postgres"))
	db = nil
	return nil
}
