package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gym-access-backend/internal/db"
	"gym-access-backend/internal/model"
)

// NewSQLiteDB opens an isolated in-memory database with the full schema.
// The pool is capped at one connection so transactions serialize the way
// row locks would on postgres.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(gormDB); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return gormDB
}

// SeedEquipment inserts an equipment row with the given status.
func SeedEquipment(t *testing.T, gormDB *gorm.DB, id, category string, status model.EquipmentStatus) model.Equipment {
	t.Helper()

	eq := model.Equipment{
		ID:       id,
		Name:     "Equipment " + id,
		Category: category,
		Status:   status,
	}
	if err := gormDB.Create(&eq).Error; err != nil {
		t.Fatalf("failed to seed equipment %s: %v", id, err)
	}
	return eq
}
