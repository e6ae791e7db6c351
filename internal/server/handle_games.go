package server

import (
	"log/slog"
	"net/http"
	"time"
)

type PlayerItem struct {
	UserID    int64     `json:"userId"`
	TurnOrder *int      `json:"turnOrder"`
	JoinedAt  time.Time `json:"joinedAt"`
}

type PlayersResponse struct {
	GameID  int64        `json:"gameId"`
	Players []PlayerItem `json:"players"`
}

type gamePath struct {
	GameID int64 `path:"gameID"`
}

type gamePlayerPath struct {
	GameID int64 `path:"gameID"`
	UserID int64 `path:"userID"`
}

func handleListPlayers(logger *slog.Logger, players Players) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, ok := pathID(r, "gameID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid gameID")
			return
		}

		list, err := players.ListGamePlayers(r.Context(), gameID)
		if err != nil {
			writeDomainError(w, r, logger, err)
			return
		}

		resp := PlayersResponse{GameID: gameID, Players: make([]PlayerItem, 0, len(list))}
		for _, p := range list {
			resp.Players = append(resp.Players, PlayerItem{UserID: p.UserID, TurnOrder: p.TurnOrder, JoinedAt: p.JoinedAt})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleLeaveGame(logger *slog.Logger, roster Roster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, ok := pathID(r, "gameID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid gameID")
			return
		}
		userID, ok := pathID(r, "userID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid userID")
			return
		}

		if err := roster.LeaveGameForUser(r.Context(), gameID, userID); err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
