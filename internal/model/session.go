package model

import "time"

// Measurements are the optional sensor readings reported when a session ends.
type Measurements struct {
	HeartRateAvg   *int     `json:"heartRateAvg,omitempty"`
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
	Repetitions    *int     `json:"repetitions,omitempty"`
	WeightKg       *float64 `json:"weightKg,omitempty"`
}

// UsageSession is one exclusive occupation of an equipment by a member.
// At most one session per equipment has a nil EndedAt.
type UsageSession struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	EquipmentID     string     `gorm:"size:64;not null;index" json:"equipmentId"`
	MemberID        string     `gorm:"size:64;not null;index" json:"memberId"`
	StartedAt       time.Time  `gorm:"not null" json:"startedAt"`
	EndedAt         *time.Time `gorm:"index" json:"endedAt"`
	AutoExpiresAt   time.Time  `gorm:"not null;index" json:"autoExpiresAt"`
	DurationSeconds int64      `gorm:"not null;default:0" json:"durationSeconds"`
	CaloriesBurned  int        `gorm:"not null;default:0" json:"caloriesBurned"`
	AutoReleased    bool       `gorm:"not null;default:false" json:"autoReleased"`
	Measurements    `gorm:"embedded"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	// Associations
	Equipment *Equipment `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

// Open reports whether the session has not been closed yet.
func (s *UsageSession) Open() bool {
	return s.EndedAt == nil
}
