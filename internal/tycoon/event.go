package tycoon

import "time"

type EventKind string

const (
	EventPropertyPurchase EventKind = "PROPERTY_PURCHASE"
	EventDiceRolled       EventKind = "DICE_ROLLED"
	EventPlayerLanded     EventKind = "PLAYER_LANDED"
	EventBoostActivated   EventKind = "BOOST_ACTIVATED"
	EventBoostExpired     EventKind = "BOOST_EXPIRED"
	EventGamePhaseChanged EventKind = "GAME_PHASE_CHANGED"
	EventPlayerLeft       EventKind = "PLAYER_LEFT"
	EventLobbyClosed      EventKind = "LOBBY_CLOSED"
)

// EventKinds lists every kind in declaration order.
var EventKinds = []EventKind{
	EventPropertyPurchase,
	EventDiceRolled,
	EventPlayerLanded,
	EventBoostActivated,
	EventBoostExpired,
	EventGamePhaseChanged,
	EventPlayerLeft,
	EventLobbyClosed,
}

// Valid reports whether k is one of the enumerated kinds.
func (k EventKind) Valid() bool {
	for _, known := range EventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Event is an ephemeral domain event. It is never persisted.
type Event struct {
	ID         string         `json:"id"`
	Kind       EventKind      `json:"kind"`
	PlayerID   int64          `json:"playerId"`
	GameID     int64          `json:"gameId"`
	Metadata   map[string]any `json:"metadata"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// BoostExpired builds the BOOST_EXPIRED event for b.
func BoostExpired(b ActiveBoost) Event {
	return Event{
		Kind:     EventBoostExpired,
		PlayerID: b.UserID,
		GameID:   b.GameID,
		Metadata: map[string]any{
			"boostId": b.ID,
			"perkId":  b.PerkID,
		},
	}
}
