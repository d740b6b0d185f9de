package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"gym-access-backend/internal/model"
)

func (s *gormStore) CreateQueueEntry(ctx context.Context, e *model.QueueEntry) error {
	if err := s.conn(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to create queue entry for equipment %s: %w", e.EquipmentID, err)
	}
	return nil
}

func (s *gormStore) GetQueueEntry(ctx context.Context, id string) (*model.QueueEntry, error) {
	var e model.QueueEntry
	if err := s.conn(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// FindActiveQueueEntry returns the member's WAITING or NOTIFIED entry, or nil.
func (s *gormStore) FindActiveQueueEntry(ctx context.Context, equipmentID, memberID string) (*model.QueueEntry, error) {
	return s.firstEntry(ctx,
		s.conn(ctx).Where("equipment_id = ? AND member_id = ? AND state IN ?", equipmentID, memberID, model.ActiveQueueStates))
}

// FindNotifiedEntry returns the entry currently holding the claim window, or nil.
func (s *gormStore) FindNotifiedEntry(ctx context.Context, equipmentID string) (*model.QueueEntry, error) {
	return s.firstEntry(ctx,
		s.conn(ctx).Where("equipment_id = ? AND state = ?", equipmentID, model.QueueNotified).Order("notified_at ASC"))
}

// HeadWaiting returns the WAITING entry with the smallest position, or nil.
func (s *gormStore) HeadWaiting(ctx context.Context, equipmentID string) (*model.QueueEntry, error) {
	return s.firstEntry(ctx,
		s.conn(ctx).Where("equipment_id = ? AND state = ?", equipmentID, model.QueueWaiting).Order("position ASC"))
}

func (s *gormStore) firstEntry(ctx context.Context, q *gorm.DB) (*model.QueueEntry, error) {
	var e model.QueueEntry
	if err := q.First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query queue entry: %w", err)
	}
	return &e, nil
}

func (s *gormStore) MaxWaitingPosition(ctx context.Context, equipmentID string) (int, error) {
	var maxPos int
	err := s.conn(ctx).Model(&model.QueueEntry{}).
		Select("COALESCE(MAX(position), 0)").
		Where("equipment_id = ? AND state = ?", equipmentID, model.QueueWaiting).
		Scan(&maxPos).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read max queue position for equipment %s: %w", equipmentID, err)
	}
	return maxPos, nil
}

// ListActiveQueue returns the NOTIFIED entry first (if any), then WAITING
// entries by position.
func (s *gormStore) ListActiveQueue(ctx context.Context, equipmentID string) ([]model.QueueEntry, error) {
	var entries []model.QueueEntry
	err := s.conn(ctx).
		Where("equipment_id = ? AND state IN ?", equipmentID, model.ActiveQueueStates).
		Order(fmt.Sprintf("CASE WHEN state = '%s' THEN 0 ELSE 1 END, position ASC", model.QueueNotified)).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list queue for equipment %s: %w", equipmentID, err)
	}
	return entries, nil
}

// TransitionQueueEntry moves an entry to a new state only if its current
// state is one of from. It reports whether the row was updated.
func (s *gormStore) TransitionQueueEntry(ctx context.Context, id string, from []model.QueueState, t QueueTransition) (bool, error) {
	res := s.conn(ctx).Model(&model.QueueEntry{}).
		Where("id = ? AND state IN ?", id, from).
		Updates(t.columns())
	if res.Error != nil {
		return false, fmt.Errorf("failed to move queue entry %s to %s: %w", id, t.State, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ShiftPositionsAfter closes the gap left by a WAITING entry at position.
func (s *gormStore) ShiftPositionsAfter(ctx context.Context, equipmentID string, position int) error {
	err := s.conn(ctx).Model(&model.QueueEntry{}).
		Where("equipment_id = ? AND state = ? AND position > ?", equipmentID, model.QueueWaiting, position).
		UpdateColumn("position", gorm.Expr("position - 1")).Error
	if err != nil {
		return fmt.Errorf("failed to shift queue positions for equipment %s: %w", equipmentID, err)
	}
	return nil
}

// ListExpiredClaims returns NOTIFIED entries whose claim window has closed.
func (s *gormStore) ListExpiredClaims(ctx context.Context, now time.Time) ([]model.QueueEntry, error) {
	var entries []model.QueueEntry
	err := s.conn(ctx).
		Where("state = ? AND claim_expires_at <= ?", model.QueueNotified, now).
		Order("claim_expires_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired claims: %w", err)
	}
	return entries, nil
}

func (s *gormStore) CompletedQueueEntries(ctx context.Context, equipmentID string, since time.Time) ([]model.QueueEntry, error) {
	var entries []model.QueueEntry
	err := s.conn(ctx).
		Where("equipment_id = ? AND state = ? AND resolved_at >= ?", equipmentID, model.QueueCompleted, since).
		Order("resolved_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list completed queue entries for equipment %s: %w", equipmentID, err)
	}
	return entries, nil
}
