package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/tycoon"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthCheck is one entry of the /healthz body, keyed by check name.
type HealthCheck struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Tycoon API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Lobby roster and boost lifecycle API for Tycoon games.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Checks the database and that the boost sweep ran recently.")
	getHealthz.AddRespStructure(map[string]HealthCheck{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(map[string]HealthCheck{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/games/{gameID}/players
	listPlayers, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}/players")
	listPlayers.SetSummary("List players")
	listPlayers.SetDescription("Returns a game's players ordered by turn order. Unranked players come last.")
	listPlayers.AddReqStructure(gamePath{})
	listPlayers.AddRespStructure(PlayersResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	listPlayers.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	listPlayers.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(listPlayers)

	// DELETE /api/games/{gameID}/players/{userID}
	leave, _ := r.NewOperationContext(http.MethodDelete, "/api/games/{gameID}/players/{userID}")
	leave.SetSummary("Leave lobby")
	leave.SetDescription("Removes a player from a pending game and closes the turn order gap. The last player out cancels the lobby.")
	leave.AddReqStructure(gamePlayerPath{})
	leave.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	leave.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	leave.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	leave.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(leave)

	// POST /api/boosts/{boostID}/expire
	expire, _ := r.NewOperationContext(http.MethodPost, "/api/boosts/{boostID}/expire")
	expire.SetSummary("Expire boost")
	expire.SetDescription("Deactivates a boost ahead of its expiry. Missing or inactive boosts are a no-op.")
	expire.AddReqStructure(boostPath{})
	expire.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	expire.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(expire)

	// POST /api/admin/boosts/sweep
	sweep, _ := r.NewOperationContext(http.MethodPost, "/api/admin/boosts/sweep")
	sweep.SetSummary("Run boost sweep")
	sweep.SetDescription("Starts an out-of-schedule sweep of expired boosts.")
	sweep.AddRespStructure(SweepResponse{}, openapi.WithHTTPStatus(http.StatusAccepted))
	sweep.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(sweep)

	// GET /ws/games/{gameID}/events
	feed, _ := r.NewOperationContext(http.MethodGet, "/ws/games/{gameID}/events")
	feed.SetSummary("Game event feed")
	feed.SetDescription("Upgrades to a WebSocket that streams the game's domain events as JSON text frames.")
	feed.AddReqStructure(gamePath{})
	feed.AddRespStructure(tycoon.Event{}, openapi.WithHTTPStatus(http.StatusSwitchingProtocols))
	_ = r.AddOperation(feed)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
