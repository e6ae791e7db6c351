package tycoon

import (
	"context"
	"time"
)

// Store runs fn inside one transaction. The transaction commits when fn returns
// nil and rolls back otherwise; the error from fn is returned unchanged.
type Store interface {
	Atomically(ctx context.Context, fn func(Tx) error) error
}

type Tx interface {
	RosterTx
	BoostTx
}

type RosterTx interface {
	Game(ctx context.Context, id int64) (Game, error)
	GamePlayer(ctx context.Context, gameID, userID int64) (GamePlayer, error)
	// ShiftTurnOrders moves every player of gameID ranked strictly above rank
	// down by one and returns the number of rows changed.
	ShiftTurnOrders(ctx context.Context, gameID int64, above int) (int64, error)
	DeleteGamePlayer(ctx context.Context, id int64) error
	CountGamePlayers(ctx context.Context, gameID int64) (int, error)
	CloseGame(ctx context.Context, id int64, status GameStatus, at time.Time) error
}

type BoostTx interface {
	// ExpiredBoosts returns active boosts with expires_at strictly before now,
	// ordered by id.
	ExpiredBoosts(ctx context.Context, now time.Time) ([]ActiveBoost, error)
	Boost(ctx context.Context, id int64) (ActiveBoost, error)
	// DeactivateBoost flips is_active to false only if it is still true and
	// reports whether this call made the change.
	DeactivateBoost(ctx context.Context, id int64) (bool, error)
}
