package db

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gym-access-backend/config"
	"gym-access-backend/internal/model"
)

// Init opens the configured database and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logLevel := logger.Warn
	if cfg.LogSQL {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	slog.Info("database initialization complete", "driver", cfg.Driver)
	return db, nil
}

// Migrate creates the tables and the invariant-backing indexes.
func Migrate(db *gorm.DB) error {
	slog.Info("running database migrations")
	if err := db.AutoMigrate(
		&model.Equipment{},
		&model.UsageSession{},
		&model.QueueEntry{},
		&model.EquipmentIssue{},
		&model.PushSubscription{},
		&model.EquipmentLock{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}

	if err := applyInvariantIndexes(db); err != nil {
		return err
	}
	return nil
}

// applyInvariantIndexes backs the mutual-exclusion rules with partial unique
// indexes. Both postgres and sqlite accept this syntax.
func applyInvariantIndexes(db *gorm.DB) error {
	ddls := []string{
		// One open session per equipment.
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_usage_sessions_open_equipment " +
			"ON usage_sessions (equipment_id) WHERE ended_at IS NULL;",

		// One non-terminal queue entry per member and equipment.
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_queue_entries_active_member " +
			"ON queue_entries (equipment_id, member_id) WHERE state IN ('WAITING', 'NOTIFIED');",

		"CREATE INDEX IF NOT EXISTS idx_usage_sessions_equipment_ended " +
			"ON usage_sessions (equipment_id, ended_at DESC);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
