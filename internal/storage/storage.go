// Package storage implements tycoon.Store on a SQLite database/sql handle.
//
// Timestamps are stored as INTEGER unix milliseconds and booleans as 0/1 so
// the same queries run unchanged on every supported driver.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/tycoon"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

var _ tycoon.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Atomically runs fn in a transaction, committing only if fn returns nil.
func (s *Store) Atomically(ctx context.Context, fn func(tycoon.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback()

	if err := fn(sqlTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) GetGame(ctx context.Context, id int64) (tycoon.Game, error) {
	return getGame(ctx, s.db, id)
}

func (s *Store) ListGamePlayers(ctx context.Context, gameID int64) ([]tycoon.GamePlayer, error) {
	if _, err := getGame(ctx, s.db, gameID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, game_id, user_id, turn_order, joined_at
		FROM game_players
		WHERE game_id = ?
		ORDER BY turn_order IS NULL, turn_order, id
	`, gameID)
	if err != nil {
		return nil, storeErr("list players", err)
	}
	defer rows.Close()

	players := []tycoon.GamePlayer{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, storeErr("scan player", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list players", err)
	}
	return players, nil
}

func (s *Store) GetActiveBoost(ctx context.Context, id int64) (tycoon.ActiveBoost, error) {
	return getBoost(ctx, s.db, id)
}

func (s *Store) CreateGame(ctx context.Context, code string, status tycoon.GameStatus) (tycoon.Game, error) {
	g := tycoon.Game{Code: code, Status: status, CreatedAt: nowMillis()}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO games (code, status, created_at)
		VALUES (?, ?, ?)
		RETURNING id
	`, code, string(status), toMillis(g.CreatedAt)).Scan(&g.ID)
	if err != nil {
		return tycoon.Game{}, storeErr("create game", err)
	}
	return g, nil
}

// AddGamePlayer seats userID in gameID. A nil turnOrder leaves the player
// unranked.
func (s *Store) AddGamePlayer(ctx context.Context, gameID, userID int64, turnOrder *int) (tycoon.GamePlayer, error) {
	p := tycoon.GamePlayer{GameID: gameID, UserID: userID, TurnOrder: turnOrder, JoinedAt: nowMillis()}
	var rank any
	if turnOrder != nil {
		rank = int64(*turnOrder)
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO game_players (game_id, user_id, turn_order, joined_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`, gameID, userID, rank, toMillis(p.JoinedAt)).Scan(&p.ID)
	if err != nil {
		return tycoon.GamePlayer{}, storeErr("add player", err)
	}
	return p, nil
}

func (s *Store) CreateActiveBoost(ctx context.Context, b tycoon.ActiveBoost) (tycoon.ActiveBoost, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = nowMillis()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO active_boosts (user_id, game_id, perk_id, is_active, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`, b.UserID, b.GameID, b.PerkID, boolInt(b.IsActive), toMillis(b.ExpiresAt), toMillis(b.CreatedAt)).Scan(&b.ID)
	if err != nil {
		return tycoon.ActiveBoost{}, storeErr("create boost", err)
	}
	return b, nil
}

func getGame(ctx context.Context, q queryer, id int64) (tycoon.Game, error) {
	var (
		g         tycoon.Game
		status    string
		createdAt int64
		endedAt   sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, code, status, created_at, ended_at FROM games WHERE id = ?
	`, id).Scan(&g.ID, &g.Code, &status, &createdAt, &endedAt)
	if isNoRows(err) {
		return tycoon.Game{}, fmt.Errorf("game %d: %w", id, tycoon.ErrNotFound)
	}
	if err != nil {
		return tycoon.Game{}, storeErr("get game", err)
	}
	g.Status = tycoon.GameStatus(status)
	g.CreatedAt = fromMillis(createdAt)
	if endedAt.Valid {
		t := fromMillis(endedAt.Int64)
		g.EndedAt = &t
	}
	return g, nil
}

func getBoost(ctx context.Context, q queryer, id int64) (tycoon.ActiveBoost, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, user_id, game_id, perk_id, is_active, expires_at, created_at
		FROM active_boosts WHERE id = ?
	`, id)
	b, err := scanBoost(row)
	if isNoRows(err) {
		return tycoon.ActiveBoost{}, fmt.Errorf("boost %d: %w", id, tycoon.ErrNotFound)
	}
	if err != nil {
		return tycoon.ActiveBoost{}, storeErr("get boost", err)
	}
	return b, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(sc scanner) (tycoon.GamePlayer, error) {
	var (
		p        tycoon.GamePlayer
		rank     sql.NullInt64
		joinedAt int64
	)
	if err := sc.Scan(&p.ID, &p.GameID, &p.UserID, &rank, &joinedAt); err != nil {
		return tycoon.GamePlayer{}, err
	}
	if rank.Valid {
		r := int(rank.Int64)
		p.TurnOrder = &r
	}
	p.JoinedAt = fromMillis(joinedAt)
	return p, nil
}

func scanBoost(sc scanner) (tycoon.ActiveBoost, error) {
	var (
		b                    tycoon.ActiveBoost
		active               int64
		expiresAt, createdAt int64
	)
	if err := sc.Scan(&b.ID, &b.UserID, &b.GameID, &b.PerkID, &active, &expiresAt, &createdAt); err != nil {
		return tycoon.ActiveBoost{}, err
	}
	b.IsActive = active != 0
	b.ExpiresAt = fromMillis(expiresAt)
	b.CreatedAt = fromMillis(createdAt)
	return b, nil
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", tycoon.ErrStore, op, err)
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nowMillis() time.Time { return fromMillis(toMillis(time.Now())) }

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
