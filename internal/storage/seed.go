package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/tycoon"
)

// SeedDemo creates a pending demo lobby with four seated players and one speed
// boost that expires a minute after startup.
// Idempotent: does nothing if any game already exists.
func (s *Store) SeedDemo(ctx context.Context, logger *slog.Logger) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&count); err != nil {
		return storeErr("count games", err)
	}
	if count > 0 {
		return nil
	}

	g, err := s.CreateGame(ctx, "TYCOON", tycoon.GameStatusPending)
	if err != nil {
		return err
	}
	for rank, userID := range []int64{10, 11, 12, 13} {
		if _, err := s.AddGamePlayer(ctx, g.ID, userID, &rank); err != nil {
			return err
		}
	}
	b, err := s.CreateActiveBoost(ctx, tycoon.ActiveBoost{
		UserID:    10,
		GameID:    g.ID,
		PerkID:    "speed",
		IsActive:  true,
		ExpiresAt: time.Now().Add(time.Minute),
	})
	if err != nil {
		return err
	}

	logger.Info("demo game seeded", "game_id", g.ID, "code", g.Code, "boost_id", b.ID)
	return nil
}
