// Package feed streams a game's domain events over WebSocket.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/stream"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

type Handler struct {
	broker *stream.Broker
	logger *slog.Logger
	ping   time.Duration
}

func NewHandler(logger *slog.Logger, broker *stream.Broker) *Handler {
	return &Handler{broker: broker, logger: logger, ping: pingInterval}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/games/{gameID}/events", h.events)
	return r
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil || gameID < 1 {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid gameID"})
		return
	}

	// Subscribe before the handshake completes so no event published after
	// the client connects is missed.
	ch := h.broker.Subscribe(gameID)
	defer h.broker.Unsubscribe(gameID, ch)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	// Client messages are ignored; the read side only handles control frames.
	ctx := conn.CloseRead(r.Context())

	ping := time.NewTicker(h.ping)
	defer ping.Stop()

	h.logger.Debug("feed connected", "game_id", gameID)
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("feed disconnected", "game_id", gameID, "error", ctx.Err())
			return
		case data := <-ch:
			if err := write(ctx, conn, data); err != nil {
				h.logger.Debug("websocket write failed", "game_id", gameID, "error", err)
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				h.logger.Debug("websocket ping failed", "game_id", gameID, "error", err)
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
