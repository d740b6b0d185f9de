// Package queuecache mirrors per-equipment queue state in memory. It is never
// authoritative: writers invalidate, readers repopulate from the ledger.
package queuecache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"gym-access-backend/internal/model"
)

// Observer is told about every lookup outcome.
type Observer interface {
	CacheHit()
	CacheMiss()
}

// Loader reads the active queue of an equipment from the ledger.
type Loader func(ctx context.Context) ([]model.QueueEntry, error)

// LengthKey is the cache key of the queue length for an equipment.
func LengthKey(equipmentID string) string {
	return "queue:length:" + equipmentID
}

// ListKey is the cache key of the ordered queue for an equipment.
func ListKey(equipmentID string) string {
	return "queue:list:" + equipmentID
}

// Cache holds queue lengths and lists with a short TTL.
type Cache struct {
	store *cache.Cache
	ttl   time.Duration
	obs   Observer
}

// New creates a cache whose entries expire after ttl.
func New(ttl time.Duration, obs Observer) *Cache {
	return &Cache{
		store: cache.New(ttl, 2*ttl),
		ttl:   ttl,
		obs:   obs,
	}
}

// List returns the active queue of an equipment, loading it on a miss.
func (c *Cache) List(ctx context.Context, equipmentID string, load Loader) ([]model.QueueEntry, error) {
	if v, ok := c.store.Get(ListKey(equipmentID)); ok {
		c.hit()
		return clone(v.([]model.QueueEntry)), nil
	}
	c.miss()

	entries, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.store.Set(ListKey(equipmentID), clone(entries), c.ttl)
	c.store.Set(LengthKey(equipmentID), len(entries), c.ttl)
	return entries, nil
}

// Length returns the number of active entries in the queue of an equipment.
func (c *Cache) Length(ctx context.Context, equipmentID string, load Loader) (int, error) {
	if v, ok := c.store.Get(LengthKey(equipmentID)); ok {
		c.hit()
		return v.(int), nil
	}
	entries, err := c.List(ctx, equipmentID, load)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Invalidate drops both keys of the given equipment.
func (c *Cache) Invalidate(equipmentID string) {
	c.store.Delete(ListKey(equipmentID))
	c.store.Delete(LengthKey(equipmentID))
}

func (c *Cache) hit() {
	if c.obs != nil {
		c.obs.CacheHit()
	}
}

func (c *Cache) miss() {
	if c.obs != nil {
		c.obs.CacheMiss()
	}
}

func clone(entries []model.QueueEntry) []model.QueueEntry {
	out := make([]model.QueueEntry, len(entries))
	copy(out, entries)
	return out
}
