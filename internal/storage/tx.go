package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/tycoon"
)

// sqlTx implements tycoon.Tx on an open transaction.
type sqlTx struct {
	q queryer
}

func (t sqlTx) Game(ctx context.Context, id int64) (tycoon.Game, error) {
	return getGame(ctx, t.q, id)
}

func (t sqlTx) GamePlayer(ctx context.Context, gameID, userID int64) (tycoon.GamePlayer, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT id, game_id, user_id, turn_order, joined_at
		FROM game_players
		WHERE game_id = ? AND user_id = ?
	`, gameID, userID)
	p, err := scanPlayer(row)
	if isNoRows(err) {
		return tycoon.GamePlayer{}, fmt.Errorf("user %d in game %d: %w", userID, gameID, tycoon.ErrNotFound)
	}
	if err != nil {
		return tycoon.GamePlayer{}, storeErr("get player", err)
	}
	return p, nil
}

func (t sqlTx) ShiftTurnOrders(ctx context.Context, gameID int64, above int) (int64, error) {
	result, err := t.q.ExecContext(ctx, `
		UPDATE game_players SET turn_order = turn_order - 1
		WHERE game_id = ? AND turn_order > ?
	`, gameID, int64(above))
	if err != nil {
		return 0, storeErr("shift turn order", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, storeErr("shift turn order", err)
	}
	return n, nil
}

func (t sqlTx) DeleteGamePlayer(ctx context.Context, id int64) error {
	result, err := t.q.ExecContext(ctx, `DELETE FROM game_players WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete player", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("player %d: %w", id, tycoon.ErrNotFound)
	}
	return nil
}

func (t sqlTx) CountGamePlayers(ctx context.Context, gameID int64) (int, error) {
	var count int
	err := t.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM game_players WHERE game_id = ?
	`, gameID).Scan(&count)
	if err != nil {
		return 0, storeErr("count players", err)
	}
	return count, nil
}

func (t sqlTx) CloseGame(ctx context.Context, id int64, status tycoon.GameStatus, at time.Time) error {
	result, err := t.q.ExecContext(ctx, `
		UPDATE games SET status = ?, ended_at = ? WHERE id = ?
	`, string(status), toMillis(at), id)
	if err != nil {
		return storeErr("close game", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("game %d: %w", id, tycoon.ErrNotFound)
	}
	return nil
}

func (t sqlTx) ExpiredBoosts(ctx context.Context, now time.Time) ([]tycoon.ActiveBoost, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT id, user_id, game_id, perk_id, is_active, expires_at, created_at
		FROM active_boosts
		WHERE is_active = 1 AND expires_at < ?
		ORDER BY id
	`, toMillis(now))
	if err != nil {
		return nil, storeErr("find expired boosts", err)
	}
	defer rows.Close()

	// Materialize before returning: the caller issues updates on the same
	// connection and SQLite can't have concurrent cursors.
	var boosts []tycoon.ActiveBoost
	for rows.Next() {
		b, err := scanBoost(rows)
		if err != nil {
			return nil, storeErr("scan boost", err)
		}
		boosts = append(boosts, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("find expired boosts", err)
	}
	return boosts, nil
}

func (t sqlTx) Boost(ctx context.Context, id int64) (tycoon.ActiveBoost, error) {
	return getBoost(ctx, t.q, id)
}

func (t sqlTx) DeactivateBoost(ctx context.Context, id int64) (bool, error) {
	result, err := t.q.ExecContext(ctx, `
		UPDATE active_boosts SET is_active = 0 WHERE id = ? AND is_active = 1
	`, id)
	if err != nil {
		return false, storeErr("deactivate boost", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, storeErr("deactivate boost", err)
	}
	return n == 1, nil
}
