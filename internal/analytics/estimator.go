// Package analytics derives advisory timing figures from usage history.
// Nothing here gates a state transition.
package analytics

import (
	"context"
	"fmt"
	"time"

	"gym-access-backend/internal/clock"
	"gym-access-backend/internal/model"
)

// HistoryReader is the read side of the session and queue ledgers.
type HistoryReader interface {
	RecentClosedSessions(ctx context.Context, equipmentID string, limit int) ([]model.UsageSession, error)
	CompletedQueueEntries(ctx context.Context, equipmentID string, since time.Time) ([]model.QueueEntry, error)
	FindOpenSession(ctx context.Context, equipmentID string) (*model.UsageSession, error)
}

// Stats summarizes the history of one equipment.
type Stats struct {
	AverageSession time.Duration
	AverageWait    time.Duration
	SessionSamples int
	WaitSamples    int
}

// Estimate is the basis for per-position wait predictions.
type Estimate struct {
	// Remaining is the expected time left on the current occupant.
	Remaining      time.Duration
	AverageSession time.Duration
}

// WaitFor returns the expected wait of the entry at a 1-based position.
func (e Estimate) WaitFor(position int) time.Duration {
	if position < 1 {
		position = 1
	}
	return e.Remaining + time.Duration(position-1)*e.AverageSession
}

type Estimator struct {
	reader         HistoryReader
	clock          clock.Clock
	historySize    int
	defaultSession time.Duration
	waitLookback   time.Duration
}

// Option configures an Estimator.
type Option func(*Estimator)

func WithClock(c clock.Clock) Option {
	return func(e *Estimator) { e.clock = c }
}

// WithHistorySize sets how many closed sessions feed the average.
func WithHistorySize(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.historySize = n
		}
	}
}

// WithDefaultSession sets the average used when there is no history.
func WithDefaultSession(d time.Duration) Option {
	return func(e *Estimator) {
		if d > 0 {
			e.defaultSession = d
		}
	}
}

// WithWaitLookback sets how far back completed queue entries are considered.
func WithWaitLookback(d time.Duration) Option {
	return func(e *Estimator) {
		if d > 0 {
			e.waitLookback = d
		}
	}
}

// NewEstimator creates an estimator over the given ledgers.
func NewEstimator(reader HistoryReader, opts ...Option) *Estimator {
	e := &Estimator{
		reader:         reader,
		clock:          clock.NewSystem(),
		historySize:    100,
		defaultSession: 30 * time.Minute,
		waitLookback:   7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AverageSessionDuration is the mean duration of the last closed sessions,
// or the default when there are none.
func (e *Estimator) AverageSessionDuration(ctx context.Context, equipmentID string) (time.Duration, error) {
	avg, _, err := e.averageSession(ctx, equipmentID)
	return avg, err
}

func (e *Estimator) averageSession(ctx context.Context, equipmentID string) (time.Duration, int, error) {
	sessions, err := e.reader.RecentClosedSessions(ctx, equipmentID, e.historySize)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read session history: %w", err)
	}
	var total int64
	n := 0
	for _, s := range sessions {
		if s.DurationSeconds <= 0 {
			continue
		}
		total += s.DurationSeconds
		n++
	}
	if n == 0 {
		return e.defaultSession, 0, nil
	}
	return time.Duration(total/int64(n)) * time.Second, n, nil
}

// AverageWait is the mean time from joining the queue to claiming, over the
// lookback window. Without samples it falls back to the average session.
func (e *Estimator) AverageWait(ctx context.Context, equipmentID string) (time.Duration, error) {
	st, err := e.Stats(ctx, equipmentID)
	if err != nil {
		return 0, err
	}
	return st.AverageWait, nil
}

// Stats computes both averages in one pass.
func (e *Estimator) Stats(ctx context.Context, equipmentID string) (Stats, error) {
	avgSession, sessionSamples, err := e.averageSession(ctx, equipmentID)
	if err != nil {
		return Stats{}, err
	}

	since := e.clock.Now().Add(-e.waitLookback)
	entries, err := e.reader.CompletedQueueEntries(ctx, equipmentID, since)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read queue history: %w", err)
	}
	var total time.Duration
	n := 0
	for _, q := range entries {
		if q.ResolvedAt == nil || q.ResolvedAt.Before(q.JoinedAt) {
			continue
		}
		total += q.ResolvedAt.Sub(q.JoinedAt)
		n++
	}
	avgWait := avgSession
	if n > 0 {
		avgWait = total / time.Duration(n)
	}

	return Stats{
		AverageSession: avgSession,
		AverageWait:    avgWait,
		SessionSamples: sessionSamples,
		WaitSamples:    n,
	}, nil
}

// Estimate returns the remaining time on the current occupant and the
// average session used to extrapolate further positions.
func (e *Estimator) Estimate(ctx context.Context, equipmentID string) (Estimate, error) {
	avg, err := e.AverageSessionDuration(ctx, equipmentID)
	if err != nil {
		return Estimate{}, err
	}
	open, err := e.reader.FindOpenSession(ctx, equipmentID)
	if err != nil {
		return Estimate{}, fmt.Errorf("failed to read open session: %w", err)
	}

	est := Estimate{AverageSession: avg}
	if open == nil {
		return est, nil
	}

	now := e.clock.Now()
	remaining := avg - now.Sub(open.StartedAt)
	if untilExpiry := open.AutoExpiresAt.Sub(now); remaining > untilExpiry {
		remaining = untilExpiry
	}
	if remaining < 0 {
		remaining = 0
	}
	est.Remaining = remaining
	return est, nil
}
