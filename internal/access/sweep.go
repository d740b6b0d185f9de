package access

import (
	"context"
	"errors"
	"fmt"

	"gym-access-backend/internal/model"
	"gym-access-backend/internal/notification"
)

// ExpireSessions force-releases every open session past its auto-expiry.
// The stored deadline is used as the end time. Sessions closed concurrently
// are skipped, so repeated or overlapping runs release each session once.
func (c *Coordinator) ExpireSessions(ctx context.Context) (int, error) {
	now := c.opts.clock.Now()
	expired, err := c.store.ListExpiredSessions(ctx, now)
	if err != nil {
		return 0, c.storeError(err)
	}

	var (
		released int
		errs     []error
	)
	for _, s := range expired {
		ok, err := c.expireSession(ctx, s.ID, s.EquipmentID)
		if err != nil {
			c.logger.Error("failed to auto-release session", "session_id", s.ID, "equipment_id", s.EquipmentID, "error", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			released++
		}
	}
	return released, errors.Join(errs...)
}

func (c *Coordinator) expireSession(ctx context.Context, sessionID, equipmentID string) (closed bool, err error) {
	defer func() { c.observe("expire_session", err) }()

	release := c.lock(ctx, equipmentID)
	defer release()

	err = c.runTx(ctx, func(ctx context.Context, fx *effects) error {
		closed = false
		eq, err := c.equipmentForUpdate(ctx, equipmentID)
		if err != nil {
			return err
		}
		cur, err := c.getSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if !cur.Open() || cur.AutoExpiresAt.After(c.opts.clock.Now()) {
			return nil
		}
		closed, err = c.closeSession(ctx, fx, eq, cur, cur.AutoExpiresAt, true, nil)
		return err
	})
	if err == nil && closed {
		c.logger.Info("session auto-released", "session_id", sessionID, "equipment_id", equipmentID)
	}
	return closed, err
}

// ExpireClaims expires every NOTIFIED entry whose claim window has passed
// and notifies the next member in line.
func (c *Coordinator) ExpireClaims(ctx context.Context) (int, error) {
	now := c.opts.clock.Now()
	expired, err := c.store.ListExpiredClaims(ctx, now)
	if err != nil {
		return 0, c.storeError(err)
	}

	var (
		count int
		errs  []error
	)
	for _, e := range expired {
		ok, err := c.expireClaim(ctx, e.ID, e.EquipmentID)
		if err != nil {
			c.logger.Error("failed to expire claim", "entry_id", e.ID, "equipment_id", e.EquipmentID, "error", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			count++
		}
	}
	return count, errors.Join(errs...)
}

func (c *Coordinator) expireClaim(ctx context.Context, entryID, equipmentID string) (expired bool, err error) {
	defer func() { c.observe("expire_claim", err) }()

	release := c.lock(ctx, equipmentID)
	defer release()

	err = c.runTx(ctx, func(ctx context.Context, fx *effects) error {
		expired = false
		eq, err := c.equipmentForUpdate(ctx, equipmentID)
		if err != nil {
			return err
		}
		cur, err := c.getQueueEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if cur.State != model.QueueNotified || cur.ClaimExpiresAt == nil || cur.ClaimExpiresAt.After(c.opts.clock.Now()) {
			return nil
		}
		if err := c.resolveEntry(ctx, fx, cur, model.QueueExpired); err != nil {
			if KindOf(err) == KindInvalidTransition {
				return nil
			}
			return err
		}
		fx.expiredClaims++
		fx.emit(notification.Event{
			Type:          notification.EventClaimExpired,
			EquipmentID:   eq.ID,
			EquipmentName: eq.Name,
			MemberID:      cur.MemberID,
			QueueEntryID:  cur.ID,
			Message:       fmt.Sprintf("Your claim window on %s has expired.", eq.Name),
			OccurredAt:    c.opts.clock.Now(),
		})
		if err := c.advanceQueue(ctx, fx, eq); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err == nil && expired {
		c.logger.Info("claim expired", "entry_id", entryID, "equipment_id", equipmentID)
	}
	return expired, err
}
