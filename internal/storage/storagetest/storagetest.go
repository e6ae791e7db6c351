// Package storagetest opens migrated throwaway stores for tests.
package storagetest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/database"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/migrations"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/storage"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/tycoon"
)

// Open returns a store backed by a fresh database file under t.TempDir().
func Open(t *testing.T) *storage.Store {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.DriverLibSQL, filepath.Join(t.TempDir(), "tycoon.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return storage.New(db)
}

var gameSeq atomic.Int64

// Lobby creates a game with the given status and seats users in order, giving
// each the rank of its index.
func Lobby(t *testing.T, s *storage.Store, status tycoon.GameStatus, users ...int64) tycoon.Game {
	t.Helper()
	ctx := context.Background()

	g, err := s.CreateGame(ctx, fmt.Sprintf("game-%d", gameSeq.Add(1)), status)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	for rank, userID := range users {
		if _, err := s.AddGamePlayer(ctx, g.ID, userID, &rank); err != nil {
			t.Fatalf("add player %d: %v", userID, err)
		}
	}
	return g
}

// Ranks maps user id to turn order for every player of gameID; unranked
// players map to -1.
func Ranks(t *testing.T, s *storage.Store, gameID int64) map[int64]int {
	t.Helper()
	players, err := s.ListGamePlayers(context.Background(), gameID)
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	ranks := make(map[int64]int, len(players))
	for _, p := range players {
		if p.TurnOrder == nil {
			ranks[p.UserID] = -1
			continue
		}
		ranks[p.UserID] = *p.TurnOrder
	}
	return ranks
}
