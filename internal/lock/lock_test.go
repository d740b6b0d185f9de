package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gym-access-backend/internal/clock"
	"gym-access-backend/internal/testutil"
)

func TestNoop(t *testing.T) {
	l := NewNoop()
	r1, err := l.Acquire(context.Background(), Key("tm-1"))
	require.NoError(t, err)
	r2, err := l.Acquire(context.Background(), Key("tm-1"))
	require.NoError(t, err)
	r1()
	r2()
}

func TestMemory_ExclusiveUntilRelease(t *testing.T) {
	l := NewMemory(time.Minute, 50*time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, Key("tm-1"))
	require.NoError(t, err)

	_, err = l.Acquire(ctx, Key("tm-1"))
	assert.ErrorIs(t, err, ErrNotAcquired)

	// Other keys are independent.
	other, err := l.Acquire(ctx, Key("tm-2"))
	require.NoError(t, err)
	other()

	release()
	again, err := l.Acquire(ctx, Key("tm-1"))
	require.NoError(t, err)
	again()
}

func TestMemory_WaitsForRelease(t *testing.T) {
	l := NewMemory(time.Minute, time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, Key("tm-1"))
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		release()
	}()

	next, err := l.Acquire(ctx, Key("tm-1"))
	require.NoError(t, err)
	next()
}

func TestDatabase_ExclusiveAndReapsExpired(t *testing.T) {
	gormDB := testutil.NewSQLiteDB(t)
	clk := clock.NewManual(time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC))
	l := NewDatabase(gormDB, 10*time.Second, 30*time.Millisecond, clk)
	ctx := context.Background()

	require.NoError(t, l.Probe(ctx))

	_, err := l.Acquire(ctx, Key("tm-1"))
	require.NoError(t, err)

	_, err = l.Acquire(ctx, Key("tm-1"))
	assert.ErrorIs(t, err, ErrNotAcquired)

	// The holder never released; once its lease lapses another caller wins.
	clk.Advance(11 * time.Second)
	release, err := l.Acquire(ctx, Key("tm-1"))
	require.NoError(t, err)
	release()

	again, err := l.Acquire(ctx, Key("tm-1"))
	require.NoError(t, err)
	again()
}

func TestNew_SelectsStrategy(t *testing.T) {
	gormDB := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	assert.IsType(t, noop{}, New(ctx, Config{Strategy: StrategyNone}, nil))
	assert.IsType(t, &Memory{}, New(ctx, Config{Strategy: StrategyMemory, TTL: time.Second}, nil))
	assert.IsType(t, &Database{}, New(ctx, Config{Strategy: StrategyDatabase, TTL: time.Second, Wait: time.Millisecond}, gormDB))

	// No usable database: fall back to no locking.
	assert.IsType(t, noop{}, New(ctx, Config{Strategy: StrategyDatabase}, nil))
}
