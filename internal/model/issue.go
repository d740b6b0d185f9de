package model

import "time"

// IssueSeverity grades a reported equipment problem.
type IssueSeverity string

const (
	SeverityLow      IssueSeverity = "LOW"
	SeverityMedium   IssueSeverity = "MEDIUM"
	SeverityHigh     IssueSeverity = "HIGH"
	SeverityCritical IssueSeverity = "CRITICAL"
)

// Valid reports whether s is a known severity.
func (s IssueSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Blocking reports whether the severity takes the equipment out of order.
func (s IssueSeverity) Blocking() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// EquipmentIssue records a problem reported by a member.
type EquipmentIssue struct {
	ID          string        `gorm:"primaryKey;size:36" json:"id"`
	EquipmentID string        `gorm:"size:64;not null;index" json:"equipmentId"`
	MemberID    string        `gorm:"size:64;not null" json:"memberId"`
	Severity    IssueSeverity `gorm:"size:16;not null" json:"severity"`
	Description string        `gorm:"size:1024" json:"description"`
	Blocking    bool          `gorm:"not null" json:"blocking"`
	ReportedAt  time.Time     `gorm:"not null;index" json:"reportedAt"`
}
