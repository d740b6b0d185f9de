package notification

import (
	"context"
	"time"

	"gym-access-backend/internal/model"
)

// EventType names what happened.
type EventType string

const (
	EventStatusChanged EventType = "equipment.status_changed"
	EventAvailable     EventType = "equipment.available"
	EventYourTurn      EventType = "queue.your_turn"
	EventClaimExpired  EventType = "queue.claim_expired"
	EventAutoReleased  EventType = "session.auto_released"
	EventIssueReported EventType = "equipment.issue_reported"
)

// Event is the payload delivered to every sink. Events with a MemberID are
// directed at that member; all others are broadcast.
type Event struct {
	Type          EventType             `json:"type"`
	EquipmentID   string                `json:"equipmentId"`
	EquipmentName string                `json:"equipmentName,omitempty"`
	Status        model.EquipmentStatus `json:"status,omitempty"`
	MemberID      string                `json:"memberId,omitempty"`
	QueueEntryID  string                `json:"queueEntryId,omitempty"`
	ClaimDeadline *time.Time            `json:"claimDeadline,omitempty"`
	Message       string                `json:"message,omitempty"`
	OccurredAt    time.Time             `json:"occurredAt"`
}

// Directed reports whether the event targets a single member.
func (e Event) Directed() bool {
	return e.MemberID != ""
}

// Notifier is the fan-out used by the access coordinator. Calls never block
// on delivery and never report delivery failures.
type Notifier interface {
	PublishResourceStatusChanged(equipmentID string, status model.EquipmentStatus)
	NotifyMember(memberID string, ev Event)
	Broadcast(ev Event)
}

// Sink delivers events over one channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishResourceStatusChanged(string, model.EquipmentStatus) {}
func (Nop) NotifyMember(string, Event)                                 {}
func (Nop) Broadcast(Event)                                            {}
