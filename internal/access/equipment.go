package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"gym-access-backend/internal/analytics"
	"gym-access-backend/internal/model"
	"gym-access-backend/internal/notification"
	"gym-access-backend/internal/store"
)

// CreateEquipment registers a new equipment item. Status defaults to AVAILABLE.
func (c *Coordinator) CreateEquipment(ctx context.Context, eq *model.Equipment) (_ *model.Equipment, err error) {
	defer func() { c.observe("create_equipment", err) }()
	if strings.TrimSpace(eq.Name) == "" || strings.TrimSpace(eq.Category) == "" {
		return nil, invalidArgument("name and category are required")
	}
	if eq.ID == "" {
		eq.ID = uuid.NewString()
	}
	eq.Category = strings.ToUpper(strings.TrimSpace(eq.Category))
	if eq.Status == "" {
		eq.Status = model.EquipmentAvailable
	}
	if !eq.Status.Valid() || eq.Status == model.EquipmentInUse {
		return nil, invalidArgument("equipment cannot be created as %s", eq.Status)
	}
	eq.UsageHours = 0

	if err := c.store.CreateEquipment(ctx, eq); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, invalidArgument("equipment %s already exists", eq.ID)
		}
		return nil, c.storeError(err)
	}
	c.logger.Info("equipment created", "equipment_id", eq.ID, "category", eq.Category)
	return eq, nil
}

func (c *Coordinator) GetEquipment(ctx context.Context, id string) (*model.Equipment, error) {
	eq, err := c.store.GetEquipment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, resourceNotFound(id)
	}
	if err != nil {
		return nil, c.storeError(err)
	}
	return eq, nil
}

// ListEquipment lists all equipment, optionally of one category.
func (c *Coordinator) ListEquipment(ctx context.Context, category string) ([]model.Equipment, error) {
	items, err := c.store.ListEquipment(ctx, strings.ToUpper(strings.TrimSpace(category)))
	if err != nil {
		return nil, c.storeError(err)
	}
	return items, nil
}

// SetEquipmentStatus is the administrative status change.
//
// MAINTENANCE and OUT_OF_ORDER may be set from any status. AVAILABLE may be
// set only when no session is open, and advances the queue. RESERVED may be
// set only from AVAILABLE. IN_USE is reserved to claims.
func (c *Coordinator) SetEquipmentStatus(ctx context.Context, equipmentID string, status model.EquipmentStatus) (_ *model.Equipment, err error) {
	defer func() { c.observe("set_status", err) }()
	if !status.Valid() {
		return nil, invalidArgument("unknown status %q", status)
	}
	if status == model.EquipmentInUse {
		return nil, invalidArgument("IN_USE is set by claiming the equipment")
	}

	release := c.lock(ctx, equipmentID)
	defer release()

	var updated *model.Equipment
	err = c.runTx(ctx, func(ctx context.Context, fx *effects) error {
		eq, err := c.equipmentForUpdate(ctx, equipmentID)
		if err != nil {
			return err
		}
		if eq.Status == status {
			updated = eq
			return nil
		}

		switch status {
		case model.EquipmentAvailable:
			open, err := c.store.FindOpenSession(ctx, eq.ID)
			if err != nil {
				return err
			}
			if open != nil {
				return newError(KindInvalidTransition, "", "equipment %s has an open session", eq.ID)
			}
		case model.EquipmentReserved:
			if eq.Status != model.EquipmentAvailable {
				return newError(KindInvalidTransition, "", "equipment %s can only be reserved when AVAILABLE, it is %s", eq.ID, eq.Status)
			}
		}

		if err := c.store.UpdateEquipmentStatus(ctx, eq.ID, status); err != nil {
			return err
		}
		eq.Status = status
		c.statusChanged(fx, eq)

		if status == model.EquipmentAvailable {
			if err := c.advanceQueue(ctx, fx, eq); err != nil {
				return err
			}
		}
		updated = eq
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("equipment status set", "equipment_id", equipmentID, "status", status)
	return updated, nil
}

// ReportIssue records a problem. A blocking severity takes the equipment out
// of order; an open session on it is left running.
func (c *Coordinator) ReportIssue(ctx context.Context, equipmentID, memberID string, severity model.IssueSeverity, description string) (_ *model.EquipmentIssue, err error) {
	defer func() { c.observe("report_issue", err) }()
	if equipmentID == "" || memberID == "" {
		return nil, invalidArgument("equipment id and member id are required")
	}
	severity = model.IssueSeverity(strings.ToUpper(string(severity)))
	if !severity.Valid() {
		return nil, invalidArgument("unknown severity %q", severity)
	}

	release := c.lock(ctx, equipmentID)
	defer release()

	var issue *model.EquipmentIssue
	err = c.runTx(ctx, func(ctx context.Context, fx *effects) error {
		eq, err := c.equipmentForUpdate(ctx, equipmentID)
		if err != nil {
			return err
		}

		now := c.opts.clock.Now()
		in := &model.EquipmentIssue{
			ID:          uuid.NewString(),
			EquipmentID: eq.ID,
			MemberID:    memberID,
			Severity:    severity,
			Description: description,
			Blocking:    severity.Blocking(),
			ReportedAt:  now,
		}
		if err := c.store.CreateIssue(ctx, in); err != nil {
			return err
		}

		if in.Blocking {
			if err := c.store.UpdateEquipmentStatus(ctx, eq.ID, model.EquipmentOutOfOrder); err != nil {
				return err
			}
			eq.Status = model.EquipmentOutOfOrder
			c.statusChanged(fx, eq)
		}

		fx.emit(notification.Event{
			Type:          notification.EventIssueReported,
			EquipmentID:   eq.ID,
			EquipmentName: eq.Name,
			Status:        eq.Status,
			Message:       fmt.Sprintf("%s issue reported on %s.", severity, eq.Name),
			OccurredAt:    now,
		})
		issue = in
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("issue reported", "equipment_id", equipmentID, "member_id", memberID, "severity", severity, "blocking", issue.Blocking)
	return issue, nil
}

// GetActiveSession returns the open session on an equipment. With a
// memberID, only that member's session is returned.
func (c *Coordinator) GetActiveSession(ctx context.Context, equipmentID, memberID string) (*model.UsageSession, error) {
	if _, err := c.GetEquipment(ctx, equipmentID); err != nil {
		return nil, err
	}

	var (
		s   *model.UsageSession
		err error
	)
	if memberID == "" {
		s, err = c.store.FindOpenSession(ctx, equipmentID)
	} else {
		s, err = c.store.FindOpenSessionForMember(ctx, equipmentID, memberID)
	}
	if err != nil {
		return nil, c.storeError(err)
	}
	if s == nil {
		return nil, newError(KindSessionNotFound, "", "no active session on equipment %s", equipmentID)
	}
	return s, nil
}

// ListMemberSessions returns the member's sessions, newest first.
func (c *Coordinator) ListMemberSessions(ctx context.Context, memberID string, limit int) ([]model.UsageSession, error) {
	if memberID == "" {
		return nil, invalidArgument("member id is required")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	sessions, err := c.store.ListMemberSessions(ctx, memberID, limit)
	if err != nil {
		return nil, c.storeError(err)
	}
	return sessions, nil
}

// EquipmentStats returns the historical averages of an equipment.
func (c *Coordinator) EquipmentStats(ctx context.Context, equipmentID string) (*analytics.Stats, error) {
	if _, err := c.GetEquipment(ctx, equipmentID); err != nil {
		return nil, err
	}
	if c.opts.estimator == nil {
		return nil, &Error{Kind: KindStoreUnavailable, Message: "analytics disabled"}
	}
	st, err := c.opts.estimator.Stats(ctx, equipmentID)
	if err != nil {
		return nil, c.storeError(err)
	}
	return &st, nil
}
