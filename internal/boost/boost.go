// Package boost expires active boosts, both on schedule and on demand.
//
// Every deactivation goes through a conditional update on is_active, so the
// sweep and manual expiry can race on the same row and exactly one of them
// reports BOOST_EXPIRED. Events are published only after the transaction
// commits.
package boost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/events"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/tycoon"
)

var tracer = otel.Tracer("github.com/ONEONUORA/Tycoon-Monorepo/internal/boost")

type Manager struct {
	store  tycoon.Store
	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time

	lastSweep atomic.Int64 // unix nanos of the last successful sweep
}

func NewManager(store tycoon.Store, bus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{store: store, bus: bus, logger: logger, now: time.Now}
}

// Sweep deactivates every active boost whose expiry has passed and publishes
// one BOOST_EXPIRED per deactivation, in id order. A failure rolls the whole
// sweep back and is logged; the next sweep retries against current data.
func (m *Manager) Sweep(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "boost.Sweep")
	defer span.End()

	began := time.Now()
	start := m.now()
	expired, err := m.expireDue(ctx, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Error("boost sweep failed", "error", err)
		return
	}
	span.SetAttributes(attribute.Int("boost.expired", len(expired)))
	m.lastSweep.Store(start.UnixNano())

	if len(expired) > 0 {
		m.logger.Info("boost sweep completed", "expired", len(expired), "duration_ms", time.Since(began).Milliseconds())
	}
	for _, b := range expired {
		m.bus.Publish(ctx, tycoon.BoostExpired(b))
	}
}

// LastSweep returns when the last successful sweep started, or the zero time
// if none has succeeded yet.
func (m *Manager) LastSweep() time.Time {
	ns := m.lastSweep.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (m *Manager) expireDue(ctx context.Context, now time.Time) ([]tycoon.ActiveBoost, error) {
	var expired []tycoon.ActiveBoost
	err := m.store.Atomically(ctx, func(tx tycoon.Tx) error {
		due, err := tx.ExpiredBoosts(ctx, now)
		if err != nil {
			return err
		}
		for _, b := range due {
			changed, err := tx.DeactivateBoost(ctx, b.ID)
			if err != nil {
				return fmt.Errorf("deactivate boost %d: %w", b.ID, err)
			}
			if changed {
				b.IsActive = false
				expired = append(expired, b)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// ExpireBoost deactivates one boost ahead of its expiry, for example when its
// uses run out. A missing or already inactive boost is a no-op. Store failures
// are returned to the caller.
func (m *Manager) ExpireBoost(ctx context.Context, boostID int64) (err error) {
	ctx, span := tracer.Start(ctx, "boost.ExpireBoost", trace.WithAttributes(attribute.Int64("boost.id", boostID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var (
		expired tycoon.ActiveBoost
		changed bool
	)
	err = m.store.Atomically(ctx, func(tx tycoon.Tx) error {
		b, err := tx.Boost(ctx, boostID)
		if errors.Is(err, tycoon.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !b.IsActive {
			return nil
		}
		if changed, err = tx.DeactivateBoost(ctx, b.ID); err != nil {
			return err
		}
		b.IsActive = false
		expired = b
		return nil
	})
	if err != nil {
		return fmt.Errorf("expire boost %d: %w", boostID, err)
	}
	if !changed {
		return nil
	}

	m.logger.Info("boost expired manually", "boost_id", boostID, "user_id", expired.UserID, "game_id", expired.GameID)
	m.bus.Publish(ctx, tycoon.BoostExpired(expired))
	return nil
}
