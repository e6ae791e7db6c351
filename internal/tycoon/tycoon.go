// Package tycoon defines the core domain types, errors and the store contract
// shared by the roster and boost subsystems. It has zero external dependencies.
package tycoon

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrStore        = errors.New("store failure")
)

type GameStatus string

const (
	GameStatusPending   GameStatus = "PENDING"
	GameStatusStarted   GameStatus = "STARTED"
	GameStatusFinished  GameStatus = "FINISHED"
	GameStatusCancelled GameStatus = "CANCELLED"
)

type Game struct {
	ID        int64
	Code      string
	Status    GameStatus
	CreatedAt time.Time
	EndedAt   *time.Time
}

// GamePlayer is one seat in a game. TurnOrder is nil until the player has been
// assigned a seat; among non-nil values of one PENDING game the ranks are
// exactly 0..k-1.
type GamePlayer struct {
	ID        int64
	GameID    int64
	UserID    int64
	TurnOrder *int
	JoinedAt  time.Time
}

// Ranked reports whether the player holds a seat in the turn order.
func (p GamePlayer) Ranked() bool { return p.TurnOrder != nil }

// ActiveBoost is a time- or use-bounded perk attached to a player in a game.
// IsActive only ever moves from true to false.
type ActiveBoost struct {
	ID        int64
	UserID    int64
	GameID    int64
	PerkID    string
	IsActive  bool
	ExpiresAt time.Time
	CreatedAt time.Time
}
