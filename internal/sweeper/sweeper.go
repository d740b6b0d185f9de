// Package sweeper enforces session and claim deadlines in the background,
// independent of request traffic.
package sweeper

import (
	"context"
	"io"
	"log/slog"
	"time"

	"gym-access-backend/internal/clock"
	"gym-access-backend/internal/metrics"
)

// Expirer is the part of the coordinator the sweeper drives.
type Expirer interface {
	ExpireSessions(ctx context.Context) (int, error)
	ExpireClaims(ctx context.Context) (int, error)
}

// Result is the outcome of one pass.
type Result struct {
	SessionsReleased int
	ClaimsExpired    int
}

// Service orchestrates the periodic sweep.
type Service struct {
	expirer  Expirer
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a sweeper running every interval.
func New(expirer Expirer, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Service{
		expirer:  expirer,
		interval: interval,
		clock:    clock.NewSystem(),
		logger:   logger.With("component", "sweeper"),
		metrics:  m,
	}
}

// Run sweeps immediately and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("starting expiry sweeper", "interval", s.interval)

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper shutting down")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// SweepOnce runs the session sweep and then the claim sweep. The two are
// independent: a failure in one does not skip the other.
func (s *Service) SweepOnce(ctx context.Context) Result {
	start := s.clock.Now()
	var res Result

	n, err := s.expirer.ExpireSessions(ctx)
	res.SessionsReleased = n
	if err != nil {
		s.logger.Error("session sweep failed", "error", err)
	}

	n, err = s.expirer.ExpireClaims(ctx)
	res.ClaimsExpired = n
	if err != nil {
		s.logger.Error("claim sweep failed", "error", err)
	}

	s.metrics.SweepCompleted(s.clock.Now().Sub(start))
	if res.SessionsReleased > 0 || res.ClaimsExpired > 0 {
		s.logger.Info("sweep completed", "sessions_released", res.SessionsReleased, "claims_expired", res.ClaimsExpired)
	}
	return res
}
