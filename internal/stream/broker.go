// Package stream fans domain events out to live per-game connections.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/events"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/tycoon"
)

// Broker is an in-process pub/sub for encoded events, keyed by game ID.
type Broker struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[int64]map[chan []byte]struct{}

	dropped atomic.Uint64
}

func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		logger: logger,
		subs:   make(map[int64]map[chan []byte]struct{}),
	}
}

// Attach subscribes the broker to every event on bus.
func (b *Broker) Attach(bus *events.Bus) {
	bus.Subscribe("stream-broker", func(_ context.Context, ev tycoon.Event) error {
		return b.Publish(ev)
	})
}

// Subscribe returns a channel that receives JSON-encoded events for gameID.
func (b *Broker) Subscribe(gameID int64) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[gameID] == nil {
		b.subs[gameID] = make(map[chan []byte]struct{})
	}
	b.subs[gameID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the game's subscribers.
func (b *Broker) Unsubscribe(gameID int64, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[gameID], ch)
	if len(b.subs[gameID]) == 0 {
		delete(b.subs, gameID)
	}
	b.mu.Unlock()
}

// Publish sends ev to all subscribers of its game without blocking.
func (b *Broker) Publish(ev tycoon.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[ev.GameID] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
			b.dropped.Add(1)
			b.logger.Warn("stream subscriber too slow, event dropped", "game_id", ev.GameID, "event_id", ev.ID)
		}
	}
	return nil
}

// Subscribers returns the number of live subscribers for gameID.
func (b *Broker) Subscribers(gameID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[gameID])
}

// Dropped returns how many frames were discarded for slow subscribers.
func (b *Broker) Dropped() uint64 { return b.dropped.Load() }
