package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Memory locks within a single process. Add is atomic on go-cache, so the
// first writer of a key wins until it releases or the TTL passes.
type Memory struct {
	entries *cache.Cache
	ttl     time.Duration
	wait    time.Duration
}

// NewMemory returns an in-process locker.
func NewMemory(ttl, wait time.Duration) *Memory {
	return &Memory{
		entries: cache.New(ttl, 2*ttl),
		ttl:     ttl,
		wait:    wait,
	}
}

func (m *Memory) Acquire(ctx context.Context, key string) (func(), error) {
	owner := uuid.NewString()
	err := waitFor(ctx, m.wait, func() (bool, error) {
		return m.entries.Add(key, owner, m.ttl) == nil, nil
	})
	if err != nil {
		return nil, err
	}
	return func() {
		if v, ok := m.entries.Get(key); ok && v.(string) == owner {
			m.entries.Delete(key)
		}
	}, nil
}
