package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"gym-access-backend/internal/model"
)

func (s *gormStore) CreateEquipment(ctx context.Context, eq *model.Equipment) error {
	if err := s.conn(ctx).Create(eq).Error; err != nil {
		return fmt.Errorf("failed to create equipment %s: %w", eq.ID, err)
	}
	return nil
}

func (s *gormStore) GetEquipment(ctx context.Context, id string) (*model.Equipment, error) {
	var eq model.Equipment
	if err := s.conn(ctx).First(&eq, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &eq, nil
}

// GetEquipmentForUpdate reads the equipment row and locks it for the rest of
// the surrounding transaction.
func (s *gormStore) GetEquipmentForUpdate(ctx context.Context, id string) (*model.Equipment, error) {
	var eq model.Equipment
	if err := s.forUpdate(s.conn(ctx)).First(&eq, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &eq, nil
}

func (s *gormStore) ListEquipment(ctx context.Context, category string) ([]model.Equipment, error) {
	var items []model.Equipment
	q := s.conn(ctx).Order("name ASC")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}
	return items, nil
}

func (s *gormStore) UpdateEquipmentStatus(ctx context.Context, id string, status model.EquipmentStatus) error {
	res := s.conn(ctx).Model(&model.Equipment{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update status of equipment %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) AddUsageHours(ctx context.Context, id string, hours float64) error {
	res := s.conn(ctx).Model(&model.Equipment{}).Where("id = ?", id).
		Update("usage_hours", gorm.Expr("usage_hours + ?", hours))
	if res.Error != nil {
		return fmt.Errorf("failed to add usage hours to equipment %s: %w", id, res.Error)
	}
	return nil
}

func (s *gormStore) CreateIssue(ctx context.Context, issue *model.EquipmentIssue) error {
	if err := s.conn(ctx).Create(issue).Error; err != nil {
		return fmt.Errorf("failed to record issue for equipment %s: %w", issue.EquipmentID, err)
	}
	return nil
}
