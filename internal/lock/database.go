package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gym-access-backend/internal/clock"
	"gym-access-backend/internal/model"
	"gym-access-backend/internal/store"
)

// Database locks through lease rows in equipment_locks, so it holds across
// processes sharing the same database.
type Database struct {
	db    *gorm.DB
	ttl   time.Duration
	wait  time.Duration
	clock clock.Clock
}

// NewDatabase returns a lease-row locker.
func NewDatabase(db *gorm.DB, ttl, wait time.Duration, clk clock.Clock) *Database {
	return &Database{db: db, ttl: ttl, wait: wait, clock: clk}
}

// Probe checks that the lock table exists and accepts writes.
func (d *Database) Probe(ctx context.Context) error {
	if d.db == nil {
		return fmt.Errorf("no database handle")
	}
	if !d.db.Migrator().HasTable(&model.EquipmentLock{}) {
		return fmt.Errorf("table equipment_locks does not exist")
	}
	release, err := d.Acquire(ctx, "probe:"+uuid.NewString())
	if err != nil {
		return fmt.Errorf("failed to take probe lock: %w", err)
	}
	release()
	return nil
}

func (d *Database) Acquire(ctx context.Context, key string) (func(), error) {
	owner := uuid.NewString()
	err := waitFor(ctx, d.wait, func() (bool, error) {
		return d.tryAcquire(ctx, key, owner)
	})
	if err != nil {
		return nil, err
	}
	return func() {
		// Release must not depend on the caller's context still being alive.
		d.db.WithContext(context.Background()).
			Where("lock_key = ? AND owner = ?", key, owner).
			Delete(&model.EquipmentLock{})
	}, nil
}

func (d *Database) tryAcquire(ctx context.Context, key, owner string) (bool, error) {
	now := d.clock.Now()

	// Reap a lease left behind by a crashed holder.
	if err := d.db.WithContext(ctx).
		Where("lock_key = ? AND expires_at <= ?", key, now).
		Delete(&model.EquipmentLock{}).Error; err != nil {
		return false, fmt.Errorf("failed to reap lock %s: %w", key, err)
	}

	err := d.db.WithContext(ctx).Create(&model.EquipmentLock{
		Key:       key,
		Owner:     owner,
		LockedAt:  now,
		ExpiresAt: now.Add(d.ttl),
	}).Error
	if err == nil {
		return true, nil
	}
	if store.IsUniqueViolation(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to insert lock %s: %w", key, err)
}
