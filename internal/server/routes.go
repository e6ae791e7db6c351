package server

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/tycoon"
)

type Players interface {
	ListGamePlayers(ctx context.Context, gameID int64) ([]tycoon.GamePlayer, error)
}

type Roster interface {
	LeaveGameForUser(ctx context.Context, gameID, userID int64) error
}

type Boosts interface {
	ExpireBoost(ctx context.Context, boostID int64) error
}

type Sweeps interface {
	TriggerNow(ctx context.Context) bool
}

// Deps are the domain services behind the API routes.
type Deps struct {
	Players Players
	Roster  Roster
	Boosts  Boosts
	Sweeps  Sweeps
}

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Tycoon API", "/openapi.json", "/docs"))

	r.Route("/api", func(r chi.Router) {
		r.Get("/games/{gameID}/players", handleListPlayers(logger, deps.Players))
		r.Delete("/games/{gameID}/players/{userID}", handleLeaveGame(logger, deps.Roster))
		r.Post("/boosts/{boostID}/expire", handleExpireBoost(logger, deps.Boosts))
		r.Post("/admin/boosts/sweep", handleTriggerSweep(deps.Sweeps))
	})
}
