package server

import (
	"log/slog"
	"net/http"
)

type SweepResponse struct {
	Status string `json:"status"`
}

type boostPath struct {
	BoostID int64 `path:"boostID"`
}

func handleExpireBoost(logger *slog.Logger, boosts Boosts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		boostID, ok := pathID(r, "boostID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid boostID")
			return
		}

		if err := boosts.ExpireBoost(r.Context(), boostID); err != nil {
			writeDomainError(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleTriggerSweep(sweeps Sweeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !sweeps.TriggerNow(r.Context()) {
			writeError(w, http.StatusConflict, "sweep not started: one is already running or the scheduler is stopping")
			return
		}
		writeJSON(w, http.StatusAccepted, SweepResponse{Status: "started"})
	}
}
