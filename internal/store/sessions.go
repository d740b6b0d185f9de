package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gym-access-backend/internal/model"
)

func (s *gormStore) CreateSession(ctx context.Context, sess *model.UsageSession) error {
	if err := s.conn(ctx).Omit("Equipment").Create(sess).Error; err != nil {
		return fmt.Errorf("failed to create session for equipment %s: %w", sess.EquipmentID, err)
	}
	return nil
}

func (s *gormStore) GetSession(ctx context.Context, id string) (*model.UsageSession, error) {
	var sess model.UsageSession
	if err := s.conn(ctx).First(&sess, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sess, nil
}

// FindOpenSession returns the open session on an equipment, or nil.
func (s *gormStore) FindOpenSession(ctx context.Context, equipmentID string) (*model.UsageSession, error) {
	var sess model.UsageSession
	err := s.conn(ctx).
		Where("equipment_id = ? AND ended_at IS NULL", equipmentID).
		First(&sess).Error
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open session for equipment %s: %w", equipmentID, err)
	}
	return &sess, nil
}

// FindOpenSessionForMember returns the member's open session on an equipment, or nil.
func (s *gormStore) FindOpenSessionForMember(ctx context.Context, equipmentID, memberID string) (*model.UsageSession, error) {
	var sess model.UsageSession
	err := s.conn(ctx).
		Where("equipment_id = ? AND member_id = ? AND ended_at IS NULL", equipmentID, memberID).
		First(&sess).Error
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open session for member %s: %w", memberID, err)
	}
	return &sess, nil
}

// CloseSession writes the closing fields only if the session is still open.
// It reports false when another writer closed it first.
func (s *gormStore) CloseSession(ctx context.Context, sess *model.UsageSession) (bool, error) {
	if sess.EndedAt == nil {
		return false, fmt.Errorf("session %s has no end time", sess.ID)
	}
	res := s.conn(ctx).Model(&model.UsageSession{}).
		Where("id = ? AND ended_at IS NULL", sess.ID).
		Updates(map[string]any{
			"ended_at":         *sess.EndedAt,
			"duration_seconds": sess.DurationSeconds,
			"calories_burned":  sess.CaloriesBurned,
			"auto_released":    sess.AutoReleased,
			"heart_rate_avg":   sess.HeartRateAvg,
			"distance_meters":  sess.DistanceMeters,
			"repetitions":      sess.Repetitions,
			"weight_kg":        sess.WeightKg,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to close session %s: %w", sess.ID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListExpiredSessions returns open sessions whose auto-expiry deadline has passed.
func (s *gormStore) ListExpiredSessions(ctx context.Context, now time.Time) ([]model.UsageSession, error) {
	var sessions []model.UsageSession
	err := s.conn(ctx).
		Where("ended_at IS NULL AND auto_expires_at <= ?", now).
		Order("auto_expires_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	return sessions, nil
}

func (s *gormStore) RecentClosedSessions(ctx context.Context, equipmentID string, limit int) ([]model.UsageSession, error) {
	var sessions []model.UsageSession
	err := s.conn(ctx).
		Where("equipment_id = ? AND ended_at IS NOT NULL", equipmentID).
		Order("ended_at DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list closed sessions for equipment %s: %w", equipmentID, err)
	}
	return sessions, nil
}

func (s *gormStore) ListMemberSessions(ctx context.Context, memberID string, limit int) ([]model.UsageSession, error) {
	var sessions []model.UsageSession
	err := s.conn(ctx).
		Where("member_id = ?", memberID).
		Order("started_at DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for member %s: %w", memberID, err)
	}
	return sessions, nil
}
