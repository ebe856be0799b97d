package notify

import (
	"context"
	"fmt"
	"sync"

	"metareview/internal/observability"
	"metareview/internal/pkg/logger"
)

type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// Dispatcher delivers events to its sinks from a single background goroutine.
// Publish never blocks; a full queue drops the event. Sink failures are logged only.
type Dispatcher struct {
	log   *logger.Logger
	sinks []Sink
	queue chan Event

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(log *logger.Logger, buffer int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		log:   log.With("component", "notify"),
		sinks: sinks,
		queue: make(chan Event, buffer),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for ev := range d.queue {
			d.deliver(ctx, ev)
		}
	}()
}

func (d *Dispatcher) Publish(events ...Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("publish after close", "count", len(events))
		return
	}
	for _, ev := range events {
		if len(ev.Recipients) == 0 && len(ev.Emails) == 0 {
			continue
		}
		select {
		case d.queue <- ev:
		default:
			observability.NotificationsDropped.Inc()
			d.log.Warn("notification queue full, event dropped", "kind", ev.Kind, "recipients", ev.Recipients)
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, s := range d.sinks {
		err := safeDeliver(ctx, s, ev)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			d.log.Error("notification delivery failed", "sink", s.Name(), "kind", ev.Kind, "error", err)
		}
		observability.NotificationsDelivered.WithLabelValues(s.Name(), outcome).Inc()
	}
}

func safeDeliver(ctx context.Context, s Sink, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Deliver(ctx, ev)
}
