package model

import "time"

// EquipmentStatus is the single source of truth for whether a claim may proceed.
type EquipmentStatus string

const (
	EquipmentAvailable   EquipmentStatus = "AVAILABLE"
	EquipmentInUse       EquipmentStatus = "IN_USE"
	EquipmentReserved    EquipmentStatus = "RESERVED"
	EquipmentMaintenance EquipmentStatus = "MAINTENANCE"
	EquipmentOutOfOrder  EquipmentStatus = "OUT_OF_ORDER"
)

// Valid reports whether s is one of the known statuses.
func (s EquipmentStatus) Valid() bool {
	switch s {
	case EquipmentAvailable, EquipmentInUse, EquipmentReserved, EquipmentMaintenance, EquipmentOutOfOrder:
		return true
	}
	return false
}

// Equipment categories with a dedicated calorie rate.
const (
	CategoryCardio      = "CARDIO"
	CategoryStrength    = "STRENGTH"
	CategoryFunctional  = "FUNCTIONAL"
	CategoryFlexibility = "FLEXIBILITY"
)

// Equipment represents a physical gym resource.
type Equipment struct {
	ID         string          `gorm:"primaryKey;size:64" json:"id"`
	Name       string          `gorm:"size:128;not null" json:"name"`
	Category   string          `gorm:"size:32;not null;index" json:"category"`
	Location   string          `gorm:"size:128" json:"location"`
	Status     EquipmentStatus `gorm:"size:16;not null;index" json:"status"`
	UsageHours float64         `gorm:"not null;default:0" json:"usageHours"`
	CreatedAt  time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updatedAt"`
}
