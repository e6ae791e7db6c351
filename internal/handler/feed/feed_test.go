package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/events"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/stream"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/tycoon"
)

func newFeedServer(t *testing.T) (*httptest.Server, *events.Bus, *stream.Broker) {
	t.Helper()
	bus := events.NewBus(slog.Default())
	broker := stream.NewBroker(slog.Default())
	broker.Attach(bus)

	r := chi.NewRouter()
	r.Mount("/ws", NewHandler(slog.Default(), broker).Routes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, bus, broker
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestFeedStreamsGameEvents(t *testing.T) {
	srv, bus, broker := newFeedServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv, "/ws/games/1/events"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	bus.Publish(ctx, tycoon.Event{Kind: tycoon.EventPlayerLeft, PlayerID: 99, GameID: 2})
	bus.Publish(ctx, tycoon.BoostExpired(tycoon.ActiveBoost{ID: 7, UserID: 5, GameID: 1, PerkID: "speed"}))
	bus.Publish(ctx, tycoon.Event{Kind: tycoon.EventPlayerLeft, PlayerID: 12, GameID: 1})

	for _, want := range []struct {
		kind   tycoon.EventKind
		player int64
	}{
		{tycoon.EventBoostExpired, 5},
		{tycoon.EventPlayerLeft, 12},
	} {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if typ != websocket.MessageText {
			t.Errorf("message type = %v, want text", typ)
		}
		var ev tycoon.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if ev.Kind != want.kind || ev.PlayerID != want.player || ev.GameID != 1 {
			t.Errorf("event = %+v, want %s from player %d in game 1", ev, want.kind, want.player)
		}
	}

	conn.Close(websocket.StatusNormalClosure, "done")

	deadline := time.Now().Add(2 * time.Second)
	for broker.Subscribers(1) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := broker.Subscribers(1); n != 0 {
		t.Errorf("subscribers after close = %d, want 0", n)
	}
}

func TestFeedRejectsBadGameID(t *testing.T) {
	srv, _, _ := newFeedServer(t)

	resp, err := http.Get(srv.URL + "/ws/games/nope/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
