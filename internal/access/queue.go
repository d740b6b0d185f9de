package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gym-access-backend/internal/model"
	"gym-access-backend/internal/notification"
	"gym-access-backend/internal/store"
)

// QueuedEntry is an active queue entry with its advisory wait.
type QueuedEntry struct {
	model.QueueEntry
	EstimatedWait time.Duration `json:"-"`
}

// QueueView is the active line in front of one equipment.
type QueueView struct {
	EquipmentID string
	Length      int
	Entries     []QueuedEntry
}

// JoinQueue appends memberID to the line for an occupied equipment.
func (c *Coordinator) JoinQueue(ctx context.Context, equipmentID, memberID string) (_ *model.QueueEntry, err error) {
	defer func() { c.observe("join_queue", err) }()
	if equipmentID == "" || memberID == "" {
		return nil, invalidArgument("equipment id and member id are required")
	}

	release := c.lock(ctx, equipmentID)
	defer release()

	var entry *model.QueueEntry
	err = c.runTx(ctx, func(ctx context.Context, fx *effects) error {
		eq, err := c.equipmentForUpdate(ctx, equipmentID)
		if err != nil {
			return err
		}

		notified, err := c.store.FindNotifiedEntry(ctx, eq.ID)
		if err != nil {
			return err
		}
		if eq.Status == model.EquipmentAvailable && notified == nil {
			return newError(KindResourceIdle, HintClaimDirectly, "equipment %s is available, claim it directly", eq.ID)
		}

		mine, err := c.store.FindOpenSessionForMember(ctx, eq.ID, memberID)
		if err != nil {
			return err
		}
		if mine != nil {
			return newError(KindAlreadyActive, "", "member %s already holds equipment %s", memberID, eq.ID)
		}

		existing, err := c.store.FindActiveQueueEntry(ctx, eq.ID, memberID)
		if err != nil {
			return err
		}
		if existing != nil {
			return alreadyQueued(memberID, eq.ID)
		}

		last, err := c.store.MaxWaitingPosition(ctx, eq.ID)
		if err != nil {
			return err
		}
		e := &model.QueueEntry{
			ID:          uuid.NewString(),
			EquipmentID: eq.ID,
			MemberID:    memberID,
			Position:    last + 1,
			State:       model.QueueWaiting,
			JoinedAt:    c.opts.clock.Now(),
		}
		if err := c.store.CreateQueueEntry(ctx, e); err != nil {
			if store.IsUniqueViolation(err) {
				return alreadyQueued(memberID, eq.ID)
			}
			return err
		}
		fx.invalidateQueue(eq.ID)
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("member joined queue", "equipment_id", equipmentID, "member_id", memberID, "position", entry.Position)
	return entry, nil
}

func alreadyQueued(memberID, equipmentID string) *Error {
	return newError(KindAlreadyQueued, "", "member %s is already queued for equipment %s", memberID, equipmentID)
}

// LeaveQueue cancels an active entry. A non-empty memberID must own it.
func (c *Coordinator) LeaveQueue(ctx context.Context, entryID, memberID string) (_ *model.QueueEntry, err error) {
	defer func() { c.observe("leave_queue", err) }()
	if entryID == "" {
		return nil, invalidArgument("queue entry id is required")
	}

	entry, err := c.getQueueEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	release := c.lock(ctx, entry.EquipmentID)
	defer release()

	var left *model.QueueEntry
	err = c.runTx(ctx, func(ctx context.Context, fx *effects) error {
		eq, err := c.equipmentForUpdate(ctx, entry.EquipmentID)
		if err != nil {
			return err
		}
		cur, err := c.getQueueEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if memberID != "" && cur.MemberID != memberID {
			return newError(KindNotOwner, "", "queue entry %s belongs to another member", entryID)
		}
		if cur.State.Terminal() {
			return newError(KindInvalidTransition, "", "queue entry %s is already %s", entryID, cur.State)
		}

		wasNotified := cur.State == model.QueueNotified
		if err := c.resolveEntry(ctx, fx, cur, model.QueueCancelled); err != nil {
			return err
		}
		if wasNotified {
			if err := c.advanceQueue(ctx, fx, eq); err != nil {
				return err
			}
		}
		left = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("member left queue", "equipment_id", left.EquipmentID, "member_id", left.MemberID, "entry_id", left.ID)
	return left, nil
}

func (c *Coordinator) getQueueEntry(ctx context.Context, id string) (*model.QueueEntry, error) {
	e, err := c.store.GetQueueEntry(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindQueueEntryNotFound, "", "queue entry %s does not exist", id)
	}
	if err != nil {
		return nil, c.storeError(err)
	}
	return e, nil
}

// AdvanceQueue notifies the head of the line if the equipment is free and
// nobody holds the claim window. Calling it again is harmless.
func (c *Coordinator) AdvanceQueue(ctx context.Context, equipmentID string) (err error) {
	defer func() { c.observe("advance_queue", err) }()

	release := c.lock(ctx, equipmentID)
	defer release()

	return c.runTx(ctx, func(ctx context.Context, fx *effects) error {
		eq, err := c.equipmentForUpdate(ctx, equipmentID)
		if err != nil {
			return err
		}
		return c.advanceQueue(ctx, fx, eq)
	})
}

func (c *Coordinator) advanceQueue(ctx context.Context, fx *effects, eq *model.Equipment) error {
	if eq.Status != model.EquipmentAvailable {
		return nil
	}
	notified, err := c.store.FindNotifiedEntry(ctx, eq.ID)
	if err != nil || notified != nil {
		return err
	}
	head, err := c.store.HeadWaiting(ctx, eq.ID)
	if err != nil || head == nil {
		return err
	}

	now := c.opts.clock.Now()
	deadline := now.Add(c.opts.claimWindow)
	ok, err := c.store.TransitionQueueEntry(ctx, head.ID, []model.QueueState{model.QueueWaiting}, store.QueueTransition{
		State:          model.QueueNotified,
		NotifiedAt:     &now,
		ClaimExpiresAt: &deadline,
	})
	if err != nil || !ok {
		return err
	}
	// The head left the WAITING set.
	if err := c.store.ShiftPositionsAfter(ctx, eq.ID, head.Position); err != nil {
		return err
	}

	fx.invalidateQueue(eq.ID)
	fx.advanced++
	fx.emit(notification.Event{
		Type:          notification.EventAvailable,
		EquipmentID:   eq.ID,
		EquipmentName: eq.Name,
		Status:        eq.Status,
		Message:       fmt.Sprintf("%s is now available.", eq.Name),
		OccurredAt:    now,
	})
	fx.emit(notification.Event{
		Type:          notification.EventYourTurn,
		EquipmentID:   eq.ID,
		EquipmentName: eq.Name,
		MemberID:      head.MemberID,
		QueueEntryID:  head.ID,
		ClaimDeadline: &deadline,
		Message:       fmt.Sprintf("It is your turn on %s. Claim it before %s.", eq.Name, deadline.Format("15:04")),
		OccurredAt:    now,
	})
	c.logger.Debug("queue advanced", "equipment_id", eq.ID, "member_id", head.MemberID, "claim_expires_at", deadline)
	return nil
}

// GetQueue returns the active line with advisory waits. The NOTIFIED entry,
// if any, comes first.
func (c *Coordinator) GetQueue(ctx context.Context, equipmentID string) (_ *QueueView, err error) {
	if _, err := c.GetEquipment(ctx, equipmentID); err != nil {
		return nil, err
	}

	load := func(ctx context.Context) ([]model.QueueEntry, error) {
		return c.store.ListActiveQueue(ctx, equipmentID)
	}
	var entries []model.QueueEntry
	if c.opts.cache != nil {
		entries, err = c.opts.cache.List(ctx, equipmentID, load)
	} else {
		entries, err = load(ctx)
	}
	if err != nil {
		return nil, c.storeError(err)
	}

	view := &QueueView{EquipmentID: equipmentID, Length: len(entries), Entries: make([]QueuedEntry, len(entries))}
	for i, e := range entries {
		view.Entries[i] = QueuedEntry{QueueEntry: e}
	}
	if c.opts.estimator == nil || len(entries) == 0 {
		return view, nil
	}

	est, err := c.opts.estimator.Estimate(ctx, equipmentID)
	if err != nil {
		c.logger.Warn("wait estimate unavailable", "equipment_id", equipmentID, "error", err)
		return view, nil
	}
	// A pending claim occupies the slot ahead of every WAITING entry.
	ahead := 0
	if entries[0].State == model.QueueNotified {
		ahead = 1
	}
	for i := range view.Entries {
		e := &view.Entries[i]
		if e.State == model.QueueNotified {
			continue
		}
		e.EstimatedWait = est.WaitFor(e.Position + ahead)
	}
	return view, nil
}
