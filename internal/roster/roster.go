// Package roster manages lobby membership and keeps turn orders contiguous.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/events"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/tycoon"
)

var tracer = otel.Tracer("github.com/ONEONUORA/Tycoon-Monorepo/internal/roster")

type Manager struct {
	store  tycoon.Store
	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(store tycoon.Store, bus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{store: store, bus: bus, logger: logger, now: time.Now}
}

// departure is what a committed leave reports to subscribers.
type departure struct {
	player    tycoon.GamePlayer
	remaining int
	closed    bool
}

// LeaveGameForUser removes userID from the PENDING game gameID. Players ranked
// above the leaver move down one place, so ranks stay 0..n-1. Shift, delete and
// the lobby close happen in one transaction; events go out after commit.
//
// It fails with tycoon.ErrNotFound for an unknown game or non-member and with
// tycoon.ErrInvalidState once the game has left PENDING.
func (m *Manager) LeaveGameForUser(ctx context.Context, gameID, userID int64) (err error) {
	ctx, span := tracer.Start(ctx, "roster.LeaveGameForUser")
	span.SetAttributes(attribute.Int64("game.id", gameID), attribute.Int64("user.id", userID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var d departure
	err = m.store.Atomically(ctx, func(tx tycoon.Tx) error {
		g, err := tx.Game(ctx, gameID)
		if err != nil {
			return err
		}
		if g.Status != tycoon.GameStatusPending {
			return fmt.Errorf("game %d is %s: %w", gameID, g.Status, tycoon.ErrInvalidState)
		}

		p, err := tx.GamePlayer(ctx, gameID, userID)
		if err != nil {
			return err
		}
		if p.Ranked() {
			if _, err := tx.ShiftTurnOrders(ctx, gameID, *p.TurnOrder); err != nil {
				return err
			}
		}
		if err := tx.DeleteGamePlayer(ctx, p.ID); err != nil {
			return err
		}

		n, err := tx.CountGamePlayers(ctx, gameID)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := tx.CloseGame(ctx, gameID, tycoon.GameStatusCancelled, m.now()); err != nil {
				return err
			}
		}
		d = departure{player: p, remaining: n, closed: n == 0}
		return nil
	})
	if err != nil {
		return fmt.Errorf("leave game %d for user %d: %w", gameID, userID, err)
	}

	m.logger.Info("player left game",
		"game_id", gameID,
		"user_id", userID,
		"remaining", d.remaining,
		"lobby_closed", d.closed,
	)
	m.publish(ctx, d)
	return nil
}

func (m *Manager) publish(ctx context.Context, d departure) {
	meta := map[string]any{"remainingPlayers": d.remaining}
	if d.player.Ranked() {
		meta["turnOrder"] = *d.player.TurnOrder
	}
	m.bus.Publish(ctx, tycoon.Event{
		Kind:     tycoon.EventPlayerLeft,
		PlayerID: d.player.UserID,
		GameID:   d.player.GameID,
		Metadata: meta,
	})

	if d.closed {
		m.bus.Publish(ctx, tycoon.Event{
			Kind:     tycoon.EventLobbyClosed,
			GameID:   d.player.GameID,
			Metadata: map[string]any{"status": string(tycoon.GameStatusCancelled)},
		})
	}
}
