package notification

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"gym-access-backend/internal/clock"
	"gym-access-backend/internal/model"
)

const deliverTimeout = 10 * time.Second

// Observer is told about delivery outcomes.
type Observer interface {
	EventDelivered(sink string, err error)
	EventDropped()
}

// Dispatcher manages a pool of workers that push events to every sink.
type Dispatcher struct {
	size     int
	jobs     chan Event
	sinks    []Sink
	logger   *slog.Logger
	clock    clock.Clock
	observer Observer
	pending  atomic.Int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger == nil {
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		d.logger = logger
	}
}

// WithClock sets the clock used to stamp events.
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithObserver reports deliveries and drops, typically to metrics.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// WithSinks registers the delivery channels.
func WithSinks(sinks ...Sink) Option {
	return func(d *Dispatcher) { d.sinks = append(d.sinks, sinks...) }
}

// NewDispatcher creates a worker pool with a bounded job queue.
func NewDispatcher(size, queueSize int, opts ...Option) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size
	}
	d := &Dispatcher{
		size:   size,
		jobs:   make(chan Event, queueSize),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  clock.NewSystem(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.size; i++ {
		go d.worker(ctx, i)
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	d.logger.Debug("notification worker started", "worker", id)
	for {
		select {
		case ev := <-d.jobs:
			d.deliver(ctx, ev)
			d.pending.Add(-1)
		case <-ctx.Done():
			d.logger.Debug("notification worker shutting down", "worker", id)
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, sink := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, deliverTimeout)
		err := sink.Deliver(sctx, ev)
		cancel()
		if err != nil {
			d.logger.Warn("event delivery failed",
				"sink", sink.Name(), "type", ev.Type, "equipment_id", ev.EquipmentID, "error", err)
		}
		if d.observer != nil {
			d.observer.EventDelivered(sink.Name(), err)
		}
	}
}

// Dispatch queues an event without blocking. It reports false when the
// queue is full and the event was dropped.
func (d *Dispatcher) Dispatch(ev Event) bool {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = d.clock.Now()
	}
	d.pending.Add(1)
	select {
	case d.jobs <- ev:
		return true
	default:
		d.pending.Add(-1)
		d.logger.Warn("notification queue full, dropping event", "type", ev.Type, "equipment_id", ev.EquipmentID)
		if d.observer != nil {
			d.observer.EventDropped()
		}
		return false
	}
}

// Drain waits until every queued event has been delivered or timeout
// elapses. It reports whether the queue emptied.
func (d *Dispatcher) Drain(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for d.pending.Load() > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return true
}

func (d *Dispatcher) PublishResourceStatusChanged(equipmentID string, status model.EquipmentStatus) {
	d.Dispatch(Event{Type: EventStatusChanged, EquipmentID: equipmentID, Status: status})
}

func (d *Dispatcher) NotifyMember(memberID string, ev Event) {
	ev.MemberID = memberID
	d.Dispatch(ev)
}

func (d *Dispatcher) Broadcast(ev Event) {
	ev.MemberID = ""
	d.Dispatch(ev)
}
