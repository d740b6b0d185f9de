package access

import (
	"context"
	"io"
	"log/slog"
	"time"

	"gym-access-backend/internal/analytics"
	"gym-access-backend/internal/clock"
	"gym-access-backend/internal/lock"
	"gym-access-backend/internal/metrics"
	"gym-access-backend/internal/model"
	"gym-access-backend/internal/notification"
	"gym-access-backend/internal/queuecache"
)

// QueueCache mirrors queue reads. Writers only invalidate it.
type QueueCache interface {
	List(ctx context.Context, equipmentID string, load queuecache.Loader) ([]model.QueueEntry, error)
	Invalidate(equipmentID string)
}

// RewardsHook is told about every closed session after commit.
type RewardsHook interface {
	SessionCompleted(s model.UsageSession)
}

// Estimator provides advisory timing figures.
type Estimator interface {
	Estimate(ctx context.Context, equipmentID string) (analytics.Estimate, error)
	Stats(ctx context.Context, equipmentID string) (analytics.Stats, error)
}

type options struct {
	clock        clock.Clock
	logger       *slog.Logger
	locker       lock.Locker
	notifier     notification.Notifier
	rewards      RewardsHook
	metrics      *metrics.Metrics
	cache        QueueCache
	estimator    Estimator
	maxSession   time.Duration
	claimWindow  time.Duration
	calorieRates map[string]float64
}

func defaultOptions() options {
	return options{
		clock:        clock.NewSystem(),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		locker:       lock.NewNoop(),
		notifier:     notification.Nop{},
		maxSession:   3 * time.Hour,
		claimWindow:  5 * time.Minute,
		calorieRates: mergeRates(nil),
	}
}

// Option is a functional option for configuring a Coordinator.
type Option func(*options)

// WithClock sets the time source.
// DEFAULT: system clock in UTC
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger.
// If the logger is nil, the coordinator will use a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
			return
		}
		o.logger = logger
	}
}

// WithLocker layers a per-equipment lock in front of each transaction.
// DEFAULT: no lock
func WithLocker(l lock.Locker) Option {
	return func(o *options) {
		if l != nil {
			o.locker = l
		}
	}
}

// WithNotifier sets the notification fan-out.
// DEFAULT: events are discarded
func WithNotifier(n notification.Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithRewards sets the hook credited after a session closes.
func WithRewards(r RewardsHook) Option {
	return func(o *options) { o.rewards = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithQueueCache enables the ephemeral queue cache.
func WithQueueCache(c QueueCache) Option {
	return func(o *options) { o.cache = c }
}

// WithEstimator enables wait estimates in GetQueue and EquipmentStats.
func WithEstimator(e Estimator) Option {
	return func(o *options) { o.estimator = e }
}

// WithMaxSessionDuration sets the auto-expiry window of a session.
// DEFAULT: 3h
func WithMaxSessionDuration(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxSession = d
		}
	}
}

// WithClaimWindow sets how long a notified member has to claim.
// DEFAULT: 5m
func WithClaimWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.claimWindow = d
		}
	}
}

// WithCalorieRates overrides kcal/min rates per category.
func WithCalorieRates(rates map[string]float64) Option {
	return func(o *options) {
		o.calorieRates = mergeRates(rates)
	}
}
