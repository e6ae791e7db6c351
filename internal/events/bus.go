// Package events is the in-process multicast channel for domain events.
//
// Publish delivers synchronously, in order, to every subscriber registered at
// the moment of the call. There is no replay: a subscriber added after a
// publish never sees that event. A failing or panicking subscriber is logged
// and skipped; it never affects other subscribers or the publisher.
// Subscribers share one Event value and must treat it as read-only.
//
// An event published while another is being delivered, including from inside
// a handler, is queued and goes out once the current event has reached every
// subscriber. The call that started delivery drains the queue before it
// returns.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/tycoon"
)

var tracer = otel.Tracer("github.com/ONEONUORA/Tycoon-Monorepo/internal/events")

// Handler receives one event. A returned error is logged by the bus.
type Handler func(ctx context.Context, ev tycoon.Event) error

type subscriber struct {
	name    string
	handler Handler
}

// pending is a queued event with the subscribers current at its publish.
type pending struct {
	ctx  context.Context
	ev   tycoon.Event
	subs []subscriber
}

type Bus struct {
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	subs     []subscriber
	queue    []pending
	draining bool

	published atomic.Uint64
	failures  atomic.Uint64
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger, now: time.Now}
}

// Subscribe registers h for every future publish. Subscriptions live for the
// lifetime of the bus.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	b.subs = append(b.subs, subscriber{name: name, handler: h})
	b.mu.Unlock()
}

// Publish stamps ev with an id and timestamp when missing and delivers it to
// the current subscribers.
func (b *Bus) Publish(ctx context.Context, ev tycoon.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = b.now().UTC()
	}
	if ev.Metadata == nil {
		ev.Metadata = map[string]any{}
	}

	b.mu.Lock()
	b.queue = append(b.queue, pending{ctx: ctx, ev: ev, subs: b.subs})
	b.published.Add(1)
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	b.mu.Unlock()

	b.drain()
}

func (b *Bus) drain() {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.draining = false
			b.mu.Unlock()
			return
		}
		p := b.queue[0]
		b.queue[0] = pending{}
		b.queue = b.queue[1:]
		b.mu.Unlock()

		for _, s := range p.subs {
			b.deliver(p.ctx, s, p.ev)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, s subscriber, ev tycoon.Event) {
	ctx, span := tracer.Start(ctx, "events.deliver")
	span.SetAttributes(
		attribute.String("event.kind", string(ev.Kind)),
		attribute.String("event.id", ev.ID),
		attribute.String("subscriber", s.name),
	)
	defer span.End()

	err := safeCall(ctx, s.handler, ev)
	if err == nil {
		return
	}
	b.failures.Add(1)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	b.logger.Error("event subscriber failed",
		"subscriber", s.name,
		"kind", ev.Kind,
		"event_id", ev.ID,
		"error", err,
	)
}

// safeCall turns a handler panic into an error.
func safeCall(ctx context.Context, h Handler, ev tycoon.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, ev)
}

type Stats struct {
	Subscribers int
	Published   uint64
	Failures    uint64
}

func (b *Bus) Stats() Stats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return Stats{
		Subscribers: n,
		Published:   b.published.Load(),
		Failures:    b.failures.Load(),
	}
}
