package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeExpirer struct {
	sessions    int
	claims      int
	sessionErr  error
	sessionRuns int32
	claimRuns   int32
}

func (f *fakeExpirer) ExpireSessions(context.Context) (int, error) {
	atomic.AddInt32(&f.sessionRuns, 1)
	return f.sessions, f.sessionErr
}

func (f *fakeExpirer) ExpireClaims(context.Context) (int, error) {
	atomic.AddInt32(&f.claimRuns, 1)
	return f.claims, nil
}

func TestSweepOnce(t *testing.T) {
	f := &fakeExpirer{sessions: 2, claims: 1}
	s := New(f, time.Minute, nil, nil)

	res := s.SweepOnce(context.Background())
	assert.Equal(t, Result{SessionsReleased: 2, ClaimsExpired: 1}, res)
}

func TestSweepOnce_ClaimSweepRunsAfterSessionFailure(t *testing.T) {
	f := &fakeExpirer{sessionErr: errors.New("db down"), claims: 3}
	s := New(f, time.Minute, nil, nil)

	res := s.SweepOnce(context.Background())
	assert.Equal(t, 3, res.ClaimsExpired)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.claimRuns))
}

func TestRun_SweepsUntilCancelled(t *testing.T) {
	f := &fakeExpirer{}
	s := New(f, 10*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&f.sessionRuns) >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
