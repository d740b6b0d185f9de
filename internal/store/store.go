package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gym-access-backend/internal/model"
)

// EquipmentStore is the Resource Store.
type EquipmentStore interface {
	CreateEquipment(ctx context.Context, eq *model.Equipment) error
	GetEquipment(ctx context.Context, id string) (*model.Equipment, error)
	GetEquipmentForUpdate(ctx context.Context, id string) (*model.Equipment, error)
	ListEquipment(ctx context.Context, category string) ([]model.Equipment, error)
	UpdateEquipmentStatus(ctx context.Context, id string, status model.EquipmentStatus) error
	AddUsageHours(ctx context.Context, id string, hours float64) error
	CreateIssue(ctx context.Context, issue *model.EquipmentIssue) error
}

// SessionLedger stores usage sessions.
type SessionLedger interface {
	CreateSession(ctx context.Context, s *model.UsageSession) error
	GetSession(ctx context.Context, id string) (*model.UsageSession, error)
	FindOpenSession(ctx context.Context, equipmentID string) (*model.UsageSession, error)
	FindOpenSessionForMember(ctx context.Context, equipmentID, memberID string) (*model.UsageSession, error)
	CloseSession(ctx context.Context, s *model.UsageSession) (bool, error)
	ListExpiredSessions(ctx context.Context, now time.Time) ([]model.UsageSession, error)
	RecentClosedSessions(ctx context.Context, equipmentID string, limit int) ([]model.UsageSession, error)
	ListMemberSessions(ctx context.Context, memberID string, limit int) ([]model.UsageSession, error)
}

// QueueLedger stores waiting-list entries.
type QueueLedger interface {
	CreateQueueEntry(ctx context.Context, e *model.QueueEntry) error
	GetQueueEntry(ctx context.Context, id string) (*model.QueueEntry, error)
	FindActiveQueueEntry(ctx context.Context, equipmentID, memberID string) (*model.QueueEntry, error)
	FindNotifiedEntry(ctx context.Context, equipmentID string) (*model.QueueEntry, error)
	HeadWaiting(ctx context.Context, equipmentID string) (*model.QueueEntry, error)
	MaxWaitingPosition(ctx context.Context, equipmentID string) (int, error)
	ListActiveQueue(ctx context.Context, equipmentID string) ([]model.QueueEntry, error)
	TransitionQueueEntry(ctx context.Context, id string, from []model.QueueState, t QueueTransition) (bool, error)
	ShiftPositionsAfter(ctx context.Context, equipmentID string, position int) error
	ListExpiredClaims(ctx context.Context, now time.Time) ([]model.QueueEntry, error)
	CompletedQueueEntries(ctx context.Context, equipmentID string, since time.Time) ([]model.QueueEntry, error)
}

// Store defines all durable operations of the access subsystem.
type Store interface {
	EquipmentStore
	SessionLedger
	QueueLedger

	// WithTx runs fn in a transaction carried by the context. Nested calls
	// join the outer transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

type txKey struct{}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func txFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}

// conn returns the transaction carried by ctx, or the pool.
func (s *gormStore) conn(ctx context.Context) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

// forUpdate adds a row lock on dialects that support it. sqlite serializes
// writers on its own.
func (s *gormStore) forUpdate(db *gorm.DB) *gorm.DB {
	if s.db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}
