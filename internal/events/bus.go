package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// HandlerFunc reacts to a published event.
type HandlerFunc func(ctx context.Context, ev Event) error

type subscription struct {
	name   string
	events map[string]bool
	fn     HandlerFunc
}

// Bus delivers events to subscribers in registration order.  Delivery is
// best effort: each handler is attempted once, a failing or panicking
// handler is logged and skipped, and Publish never reports an error to the
// caller.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	log     *slog.Logger
	timeout time.Duration
}

// NewBus returns a Bus that bounds every handler call by timeout.
func NewBus(log *slog.Logger, timeout time.Duration) *Bus {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Bus{log: log, timeout: timeout}
}

// Subscribe registers fn under name.  When names is empty the handler
// receives every event.
func (b *Bus) Subscribe(name string, fn HandlerFunc, names ...string) {
	s := subscription{name: name, fn: fn}
	if len(names) > 0 {
		s.events = make(map[string]bool, len(names))
		for _, n := range names {
			s.events[n] = true
		}
	}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
}

// Publish hands ev to every matching subscriber.  The request context's
// cancellation is detached so a client disconnect does not abort side
// effects of an operation that already committed.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	base := context.WithoutCancel(ctx)
	for _, s := range subs {
		if s.events != nil && !s.events[ev.EventName()] {
			continue
		}
		if err := b.deliver(base, s, ev); err != nil {
			b.log.Warn("event handler failed",
				"handler", s.name,
				"event", ev.EventName(),
				"event_id", ev.EventID(),
				"booking_id", ev.AggregateID(),
				"err", err,
			)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, ev Event) (err error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(ctx, ev)
}
