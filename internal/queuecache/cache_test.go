package queuecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gym-access-backend/internal/model"
)

type countingObserver struct {
	hits, misses int
}

func (o *countingObserver) CacheHit()  { o.hits++ }
func (o *countingObserver) CacheMiss() { o.misses++ }

func TestKeys(t *testing.T) {
	assert.Equal(t, "queue:length:tm-1", LengthKey("tm-1"))
	assert.Equal(t, "queue:list:tm-1", ListKey("tm-1"))
}

func TestCache_ListLoadsOnceUntilInvalidated(t *testing.T) {
	obs := &countingObserver{}
	c := New(time.Minute, obs)

	loads := 0
	entries := []model.QueueEntry{{ID: "q-1", Position: 1, State: model.QueueWaiting}}
	load := func(ctx context.Context) ([]model.QueueEntry, error) {
		loads++
		return entries, nil
	}

	got, err := c.List(context.Background(), "tm-1", load)
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	got, err = c.List(context.Background(), "tm-1", load)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
	assert.Equal(t, 1, loads)

	n, err := c.Length(context.Background(), "tm-1", load)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, loads)

	c.Invalidate("tm-1")
	_, err = c.List(context.Background(), "tm-1", load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)

	assert.Equal(t, 2, obs.misses)
	assert.Equal(t, 2, obs.hits)
}

func TestCache_CallerCannotMutateCachedList(t *testing.T) {
	c := New(time.Minute, nil)
	load := func(ctx context.Context) ([]model.QueueEntry, error) {
		return []model.QueueEntry{{ID: "q-1", Position: 1}}, nil
	}

	got, err := c.List(context.Background(), "tm-1", load)
	require.NoError(t, err)
	got[0].Position = 99

	again, err := c.List(context.Background(), "tm-1", load)
	require.NoError(t, err)
	assert.Equal(t, 1, again[0].Position)
}

func TestCache_LoadErrorIsNotCached(t *testing.T) {
	c := New(time.Minute, nil)
	boom := errors.New("db down")
	calls := 0
	load := func(ctx context.Context) ([]model.QueueEntry, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return nil, nil
	}

	_, err := c.Length(context.Background(), "tm-1", load)
	assert.ErrorIs(t, err, boom)

	n, err := c.Length(context.Background(), "tm-1", load)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
