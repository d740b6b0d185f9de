package notification

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

type hubSubscriber struct {
	memberID string
	ch       chan Event
}

// Hub is the realtime channel. Each connected client owns a buffered
// channel; a slow client loses events instead of stalling delivery.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]*hubSubscriber
	dropped uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]*hubSubscriber)}
}

// Subscribe registers a client. memberID may be empty for anonymous
// clients, which only see broadcasts.
func (h *Hub) Subscribe(memberID string, buffer int) (string, <-chan Event) {
	if buffer <= 0 {
		buffer = 16
	}
	id := uuid.NewString()
	sub := &hubSubscriber{memberID: memberID, ch: make(chan Event, buffer)}

	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()
	return id, sub.ch
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		close(sub.ch)
		delete(h.subs, id)
	}
}

// Dropped returns the number of events lost to full client buffers.
func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}

func (h *Hub) Name() string { return "realtime" }

func (h *Hub) Deliver(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if ev.Directed() && sub.memberID != ev.MemberID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			atomic.AddUint64(&h.dropped, 1)
		}
	}
	return nil
}
