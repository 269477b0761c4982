// Package db opens the Postgres connection backing the price history tables.
package db

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"futures_dashboard/internal/platform/config"
)

// Opener opens a gorm connection for a DSN.
type Opener func(dsn string) (*gorm.DB, error)

// retryInterval is the pause between failed connection attempts.
var retryInterval = 3 * time.Second

// PostgresOpener opens a Postgres connection with gorm's SQL logging silenced.
func PostgresOpener(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
}

// ConnectWithRetry retries open until it succeeds or wait has elapsed.
func ConnectWithRetry(dsn string, wait time.Duration, open Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(wait)
	for {
		db, err := open(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("db connect failed after %v: %w", wait, err)
		}
		slog.Warn("db connect failed, retrying", "error", err, "retry_in", retryInterval)
		time.Sleep(retryInterval)
	}
}

// Migration describes the schema owned by one feature.
type Migration struct {
	Models     []any
	Statements []string
}

// OpenDB connects to Postgres and applies migrations when RunMigrations is set.
func OpenDB(cfg config.PostgresConfig, migrations ...Migration) (*gorm.DB, error) {
	db, err := ConnectWithRetry(cfg.DSN(), cfg.ConnectWait, PostgresOpener)
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := Migrate(db, migrations...); err != nil {
			return nil, err
		}
		slog.Info("migrations applied", "count", len(migrations))
	}
	return db, nil
}

// Migrate auto-migrates models and then executes raw statements in order.
func Migrate(db *gorm.DB, migrations ...Migration) error {
	for _, m := range migrations {
		if len(m.Models) > 0 {
			if err := db.AutoMigrate(m.Models...); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
		}
		for _, stmt := range m.Statements {
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to run migration statement: %w", err)
			}
		}
	}
	return nil
}
