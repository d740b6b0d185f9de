package model

import "time"

// EquipmentLock is a lease row used by the database lock strategy.
type EquipmentLock struct {
	Key       string    `gorm:"column:lock_key;primaryKey;size:128"`
	Owner     string    `gorm:"size:64;not null"`
	LockedAt  time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}
