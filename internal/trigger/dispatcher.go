// Package trigger routes domain events to gameplay trigger handlers.
//
// Routing is a registry keyed by event kind. Adding a trigger means calling
// Register at startup; the dispatch path never changes.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/events"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/tycoon"
)

// Handler evaluates one trigger for an event.
type Handler func(ctx context.Context, ev tycoon.Event) error

type namedHandler struct {
	name string
	fn   Handler
}

type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[tycoon.EventKind][]namedHandler
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[tycoon.EventKind][]namedHandler),
	}
}

// Register appends h to the handlers of kind. Handlers run in registration
// order.
func (d *Dispatcher) Register(kind tycoon.EventKind, name string, h Handler) {
	if !kind.Valid() {
		panic(fmt.Sprintf("trigger: register %q for unknown event kind %q", name, kind))
	}
	d.mu.Lock()
	d.handlers[kind] = append(d.handlers[kind], namedHandler{name: name, fn: h})
	d.mu.Unlock()
}

// Attach subscribes the dispatcher to bus.
func (d *Dispatcher) Attach(bus *events.Bus) {
	bus.Subscribe("trigger-dispatcher", func(ctx context.Context, ev tycoon.Event) error {
		d.Handle(ctx, ev)
		return nil
	})
}

// Handle invokes every handler registered for ev.Kind. A kind without
// handlers is a no-op. Handler failures are logged and do not stop the
// remaining handlers.
func (d *Dispatcher) Handle(ctx context.Context, ev tycoon.Event) {
	d.mu.RLock()
	hs := d.handlers[ev.Kind]
	d.mu.RUnlock()

	for _, h := range hs {
		if err := call(ctx, h.fn, ev); err != nil {
			d.logger.Error("trigger failed",
				"handler", h.name,
				"kind", ev.Kind,
				"event_id", ev.ID,
				"player_id", ev.PlayerID,
				"game_id", ev.GameID,
				"error", err,
			)
		}
	}
}

// Handlers returns the registered handler names for kind, in order.
func (d *Dispatcher) Handlers(kind tycoon.EventKind) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers[kind]))
	for _, h := range d.handlers[kind] {
		names = append(names, h.name)
	}
	return names
}

func call(ctx context.Context, h Handler, ev tycoon.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, ev)
}
