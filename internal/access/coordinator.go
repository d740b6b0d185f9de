// Package access arbitrates exclusive, time-bounded use of gym equipment and
// the FIFO waiting line in front of each item.
//
// Every mutating operation runs as one store transaction; the partial unique
// indexes created by the db package back the two core invariants (one open
// session per equipment, one active queue entry per member and equipment).
// Notifications, cache invalidation and reward credits are applied only after
// the transaction commits.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gym-access-backend/internal/lock"
	"gym-access-backend/internal/model"
	"gym-access-backend/internal/notification"
	"gym-access-backend/internal/store"
)

type Coordinator struct {
	store  store.Store
	opts   options
	logger *slog.Logger
}

// New creates a coordinator over s.
func New(s store.Store, opts ...Option) *Coordinator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Coordinator{
		store:  s,
		opts:   o,
		logger: o.logger.With("component", "access"),
	}
}

// effects collects what must happen after a successful commit.
type effects struct {
	events        []notification.Event
	invalidate    map[string]struct{}
	closed        []model.UsageSession
	advanced      int
	expiredClaims int
}

func (fx *effects) invalidateQueue(equipmentID string) {
	if fx.invalidate == nil {
		fx.invalidate = make(map[string]struct{})
	}
	fx.invalidate[equipmentID] = struct{}{}
}

func (fx *effects) emit(ev notification.Event) {
	fx.events = append(fx.events, ev)
}

func (c *Coordinator) statusChanged(fx *effects, eq *model.Equipment) {
	fx.emit(notification.Event{
		Type:          notification.EventStatusChanged,
		EquipmentID:   eq.ID,
		EquipmentName: eq.Name,
		Status:        eq.Status,
		OccurredAt:    c.opts.clock.Now(),
	})
}

// runTx runs fn in a transaction, retrying once on a serialization failure.
// Errors that are not already an *Error become StoreUnavailable.
func (c *Coordinator) runTx(ctx context.Context, fn func(ctx context.Context, fx *effects) error) error {
	var (
		fx  *effects
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		fx = &effects{}
		err = c.store.WithTx(ctx, func(ctx context.Context) error {
			return fn(ctx, fx)
		})
		if err == nil || !store.IsSerializationFailure(err) {
			break
		}
		c.logger.Debug("transaction conflict, retrying", "attempt", attempt+1, "error", err)
	}

	if err != nil {
		var ae *Error
		switch {
		case errors.As(err, &ae):
			return ae
		case store.IsSerializationFailure(err):
			return &Error{Kind: KindResourceUnavailable, Hint: HintJoinQueue, Message: "equipment is contended, try again", Err: err}
		default:
			c.logger.Error("store operation failed", "error", err)
			return &Error{Kind: KindStoreUnavailable, Message: "store unavailable", Err: err}
		}
	}

	c.apply(fx)
	return nil
}

func (c *Coordinator) apply(fx *effects) {
	if c.opts.cache != nil {
		for id := range fx.invalidate {
			c.opts.cache.Invalidate(id)
		}
	}
	for _, ev := range fx.events {
		switch {
		case ev.Type == notification.EventStatusChanged && !ev.Directed():
			c.opts.notifier.PublishResourceStatusChanged(ev.EquipmentID, ev.Status)
		case ev.Directed():
			c.opts.notifier.NotifyMember(ev.MemberID, ev)
		default:
			c.opts.notifier.Broadcast(ev)
		}
	}
	for _, s := range fx.closed {
		c.opts.metrics.SessionClosed(s.AutoReleased)
		if c.opts.rewards != nil {
			c.opts.rewards.SessionCompleted(s)
		}
	}
	for i := 0; i < fx.advanced; i++ {
		c.opts.metrics.QueueAdvanced()
	}
	for i := 0; i < fx.expiredClaims; i++ {
		c.opts.metrics.ClaimExpired()
	}
}

// lock takes the per-equipment lock. A failure is logged and the caller
// proceeds on the transaction alone.
func (c *Coordinator) lock(ctx context.Context, equipmentID string) func() {
	release, err := c.opts.locker.Acquire(ctx, lock.Key(equipmentID))
	if err != nil {
		c.opts.metrics.LockFailed()
		c.logger.Warn("equipment lock not acquired, continuing without it", "equipment_id", equipmentID, "error", err)
		return func() {}
	}
	return release
}

func (c *Coordinator) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(KindOf(err))
		if result == "" {
			result = "error"
		}
	}
	c.opts.metrics.Operation(op, result)
}

func (c *Coordinator) equipmentForUpdate(ctx context.Context, id string) (*model.Equipment, error) {
	eq, err := c.store.GetEquipmentForUpdate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, resourceNotFound(id)
	}
	return eq, err
}

// ClaimResource gives memberID exclusive use of the equipment.
func (c *Coordinator) ClaimResource(ctx context.Context, equipmentID, memberID string) (_ *model.UsageSession, err error) {
	defer func() { c.observe("claim", err) }()
	if equipmentID == "" || memberID == "" {
		return nil, invalidArgument("equipment id and member id are required")
	}

	release := c.lock(ctx, equipmentID)
	defer release()

	var session *model.UsageSession
	err = c.runTx(ctx, func(ctx context.Context, fx *effects) error {
		eq, err := c.equipmentForUpdate(ctx, equipmentID)
		if err != nil {
			return err
		}

		mine, err := c.store.FindOpenSessionForMember(ctx, eq.ID, memberID)
		if err != nil {
			return err
		}
		if mine != nil {
			return newError(KindAlreadyActive, "", "member %s already holds equipment %s", memberID, eq.ID)
		}

		if eq.Status != model.EquipmentAvailable {
			return resourceUnavailable("equipment %s is %s", eq.ID, eq.Status)
		}

		notified, err := c.store.FindNotifiedEntry(ctx, eq.ID)
		if err != nil {
			return err
		}
		if notified != nil && notified.MemberID != memberID {
			return resourceUnavailable("equipment %s is held for the next member in the queue", eq.ID)
		}

		now := c.opts.clock.Now()
		s := &model.UsageSession{
			ID:            uuid.NewString(),
			EquipmentID:   eq.ID,
			MemberID:      memberID,
			StartedAt:     now,
			AutoExpiresAt: now.Add(c.opts.maxSession),
		}
		if err := c.store.CreateSession(ctx, s); err != nil {
			if store.IsUniqueViolation(err) {
				return resourceUnavailable("equipment %s was claimed concurrently", eq.ID)
			}
			return err
		}

		if err := c.store.UpdateEquipmentStatus(ctx, eq.ID, model.EquipmentInUse); err != nil {
			return err
		}
		eq.Status = model.EquipmentInUse
		c.statusChanged(fx, eq)

		entry, err := c.store.FindActiveQueueEntry(ctx, eq.ID, memberID)
		if err != nil {
			return err
		}
		if entry != nil {
			if err := c.resolveEntry(ctx, fx, entry, model.QueueCompleted); err != nil {
				return err
			}
		}

		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("equipment claimed", "equipment_id", equipmentID, "member_id", memberID, "session_id", session.ID)
	return session, nil
}

// resolveEntry moves an active entry to a terminal state and keeps the
// WAITING positions dense.
func (c *Coordinator) resolveEntry(ctx context.Context, fx *effects, entry *model.QueueEntry, to model.QueueState) error {
	now := c.opts.clock.Now()
	ok, err := c.store.TransitionQueueEntry(ctx, entry.ID, []model.QueueState{entry.State},
		store.QueueTransition{State: to, ResolvedAt: &now})
	if err != nil {
		return err
	}
	if !ok {
		return newError(KindInvalidTransition, "", "queue entry %s is no longer %s", entry.ID, entry.State)
	}
	if entry.State == model.QueueWaiting {
		if err := c.store.ShiftPositionsAfter(ctx, entry.EquipmentID, entry.Position); err != nil {
			return err
		}
	}
	entry.State = to
	entry.ResolvedAt = &now
	fx.invalidateQueue(entry.EquipmentID)
	return nil
}

// ReleaseResource ends an open session owned by memberID.
func (c *Coordinator) ReleaseResource(ctx context.Context, sessionID, memberID string, m *model.Measurements) (_ *model.UsageSession, err error) {
	defer func() { c.observe("release", err) }()
	if sessionID == "" || memberID == "" {
		return nil, invalidArgument("session id and member id are required")
	}

	s, err := c.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	release := c.lock(ctx, s.EquipmentID)
	defer release()

	var closed *model.UsageSession
	err = c.runTx(ctx, func(ctx context.Context, fx *effects) error {
		eq, err := c.equipmentForUpdate(ctx, s.EquipmentID)
		if err != nil {
			return err
		}
		cur, err := c.getSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if cur.MemberID != memberID {
			return newError(KindNotOwner, "", "session %s belongs to another member", sessionID)
		}
		if !cur.Open() {
			return newError(KindSessionNotFound, "", "session %s is already closed", sessionID)
		}

		ok, err := c.closeSession(ctx, fx, eq, cur, c.opts.clock.Now(), false, m)
		if err != nil {
			return err
		}
		if !ok {
			return newError(KindSessionNotFound, "", "session %s is already closed", sessionID)
		}
		closed = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("equipment released",
		"equipment_id", closed.EquipmentID, "member_id", memberID, "session_id", closed.ID,
		"duration_seconds", closed.DurationSeconds, "calories", closed.CaloriesBurned)
	return closed, nil
}

func (c *Coordinator) getSession(ctx context.Context, id string) (*model.UsageSession, error) {
	s, err := c.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindSessionNotFound, "", "session %s does not exist", id)
	}
	if err != nil {
		return nil, c.storeError(err)
	}
	return s, nil
}

// storeError converts an error from a read outside runTx.
func (c *Coordinator) storeError(err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	c.logger.Error("store read failed", "error", err)
	return &Error{Kind: KindStoreUnavailable, Message: "store unavailable", Err: err}
}

// closeSession writes the closing fields of s, credits usage hours, frees the
// equipment if it is still IN_USE and advances its queue. It reports false
// when the session had already been closed by someone else.
func (c *Coordinator) closeSession(ctx context.Context, fx *effects, eq *model.Equipment, s *model.UsageSession, endedAt time.Time, auto bool, m *model.Measurements) (bool, error) {
	elapsed := int64(endedAt.Sub(s.StartedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	s.EndedAt = &endedAt
	s.DurationSeconds = elapsed
	s.CaloriesBurned = Calories(elapsed, c.rateFor(eq.Category))
	s.AutoReleased = auto
	if m != nil {
		s.Measurements = *m
	}

	ok, err := c.store.CloseSession(ctx, s)
	if err != nil || !ok {
		return false, err
	}

	if err := c.store.AddUsageHours(ctx, eq.ID, float64(elapsed)/3600); err != nil {
		return false, err
	}
	eq.UsageHours += float64(elapsed) / 3600

	// A status forced by maintenance or an issue report is kept.
	if eq.Status == model.EquipmentInUse {
		if err := c.store.UpdateEquipmentStatus(ctx, eq.ID, model.EquipmentAvailable); err != nil {
			return false, err
		}
		eq.Status = model.EquipmentAvailable
		c.statusChanged(fx, eq)
	}

	fx.closed = append(fx.closed, *s)
	if auto {
		fx.emit(notification.Event{
			Type:          notification.EventAutoReleased,
			EquipmentID:   eq.ID,
			EquipmentName: eq.Name,
			MemberID:      s.MemberID,
			Message:       fmt.Sprintf("Your session on %s reached its time limit and was ended.", eq.Name),
			OccurredAt:    c.opts.clock.Now(),
		})
	}

	if err := c.advanceQueue(ctx, fx, eq); err != nil {
		return false, err
	}
	return true, nil
}
