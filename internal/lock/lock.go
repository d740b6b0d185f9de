// Package lock provides per-equipment mutual exclusion layered in front of
// the store transaction. The transaction stays authoritative; a lock only
// narrows the window in which concurrent writers collide.
package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"gym-access-backend/internal/clock"
)

// ErrNotAcquired is returned when a lock could not be taken within the wait budget.
var ErrNotAcquired = errors.New("lock not acquired")

const pollInterval = 25 * time.Millisecond

// Strategy names accepted by New.
const (
	StrategyNone     = "none"
	StrategyMemory   = "memory"
	StrategyDatabase = "database"
)

// Locker acquires a named lock. The returned release func is safe to call once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Key returns the lock key of an equipment.
func Key(equipmentID string) string {
	return "equipment:" + equipmentID
}

type noop struct{}

// NewNoop returns a locker that always succeeds immediately.
func NewNoop() Locker {
	return noop{}
}

func (noop) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// Config selects and tunes a strategy.
type Config struct {
	Strategy string
	TTL      time.Duration
	Wait     time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger
}

// New builds the configured strategy. The database strategy is probed first
// and falls back to no locking when its table is unusable.
func New(ctx context.Context, cfg Config, db *gorm.DB) Locker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}

	switch cfg.Strategy {
	case StrategyMemory:
		logger.Info("using in-process equipment locks", "ttl", cfg.TTL)
		return NewMemory(cfg.TTL, cfg.Wait)
	case StrategyDatabase:
		dl := NewDatabase(db, cfg.TTL, cfg.Wait, cfg.Clock)
		if err := dl.Probe(ctx); err != nil {
			logger.Warn("database locks unavailable, continuing without locks", "error", err)
			return NewNoop()
		}
		logger.Info("using database equipment locks", "ttl", cfg.TTL)
		return dl
	default:
		logger.Info("equipment locks disabled")
		return NewNoop()
	}
}

// waitFor polls try until it succeeds, ctx ends, or wait elapses.
func waitFor(ctx context.Context, wait time.Duration, try func() (bool, error)) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
