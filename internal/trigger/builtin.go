package trigger

import (
	"context"
	"log/slog"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/tycoon"
)

// RegisterDefaults installs the built-in log-only triggers. DICE_ROLLED and
// PLAYER_LANDED are left without handlers: high-roll speed boosts and
// landing-specific boosts register here once they exist.
func RegisterDefaults(d *Dispatcher, logger *slog.Logger) {
	d.Register(tycoon.EventPropertyPurchase, "builder-threshold", func(_ context.Context, ev tycoon.Event) error {
		logger.Info("property purchased, checking for triggers", "player_id", ev.PlayerID, "game_id", ev.GameID)
		return nil
	})
	d.Register(tycoon.EventBoostActivated, "log-boost-activated", func(_ context.Context, ev tycoon.Event) error {
		logger.Info("boost activated", "player_id", ev.PlayerID, "boost_id", ev.Metadata["boostId"])
		return nil
	})
	d.Register(tycoon.EventBoostExpired, "log-boost-expired", func(_ context.Context, ev tycoon.Event) error {
		logger.Info("boost expired", "player_id", ev.PlayerID, "boost_id", ev.Metadata["boostId"], "perk_id", ev.Metadata["perkId"])
		return nil
	})
	d.Register(tycoon.EventGamePhaseChanged, "phase-boosts", func(_ context.Context, ev tycoon.Event) error {
		logger.Info("game phase changed, checking for phase-specific boosts", "game_id", ev.GameID, "phase", ev.Metadata["phase"])
		return nil
	})
}
