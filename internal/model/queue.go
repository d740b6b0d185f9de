package model

import "time"

// QueueState is the lifecycle state of a queue entry.
type QueueState string

const (
	QueueWaiting   QueueState = "WAITING"
	QueueNotified  QueueState = "NOTIFIED"
	QueueConfirmed QueueState = "CONFIRMED"
	QueueCancelled QueueState = "CANCELLED"
	QueueCompleted QueueState = "COMPLETED"
	QueueExpired   QueueState = "EXPIRED"
)

// ActiveQueueStates are the non-terminal states.
var ActiveQueueStates = []QueueState{QueueWaiting, QueueNotified}

// Terminal reports whether no further transition is possible.
func (s QueueState) Terminal() bool {
	return s != QueueWaiting && s != QueueNotified
}

// QueueEntry is a member's place in the waiting line for one equipment.
// Positions among WAITING entries of an equipment are dense and start at 1.
type QueueEntry struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	EquipmentID    string     `gorm:"size:64;not null;index:idx_queue_equipment_state" json:"equipmentId"`
	MemberID       string     `gorm:"size:64;not null;index" json:"memberId"`
	Position       int        `gorm:"not null" json:"position"`
	State          QueueState `gorm:"size:16;not null;index:idx_queue_equipment_state" json:"state"`
	JoinedAt       time.Time  `gorm:"not null" json:"joinedAt"`
	NotifiedAt     *time.Time `json:"notifiedAt"`
	ClaimExpiresAt *time.Time `gorm:"index" json:"claimExpiresAt"`
	ResolvedAt     *time.Time `json:"resolvedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}
