package boost

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/events"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/storage"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/storage/storagetest"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/tycoon"
)

type sink struct {
	mu  sync.Mutex
	evs []tycoon.Event
}

func (s *sink) handle(_ context.Context, ev tycoon.Event) error {
	s.mu.Lock()
	s.evs = append(s.evs, ev)
	s.mu.Unlock()
	return nil
}

func (s *sink) events() []tycoon.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tycoon.Event(nil), s.evs...)
}

func newManager(t *testing.T, store tycoon.Store, now time.Time) (*Manager, *sink) {
	t.Helper()
	bus := events.NewBus(slog.Default())
	rec := &sink{}
	bus.Subscribe("test", rec.handle)
	m := NewManager(store, bus, slog.Default())
	m.now = func() time.Time { return now }
	return m, rec
}

func createBoost(t *testing.T, s *storage.Store, b tycoon.ActiveBoost) tycoon.ActiveBoost {
	t.Helper()
	b, err := s.CreateActiveBoost(context.Background(), b)
	if err != nil {
		t.Fatalf("create boost: %v", err)
	}
	return b
}

func isActive(t *testing.T, s *storage.Store, id int64) bool {
	t.Helper()
	b, err := s.GetActiveBoost(context.Background(), id)
	if err != nil {
		t.Fatalf("get boost %d: %v", id, err)
	}
	return b.IsActive
}

func TestSweepExpiresDueBoosts(t *testing.T) {
	s := storagetest.Open(t)
	g := storagetest.Lobby(t, s, tycoon.GameStatusStarted, 5, 6)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m, rec := newManager(t, s, now)

	due1 := createBoost(t, s, tycoon.ActiveBoost{UserID: 5, GameID: g.ID, PerkID: "speed", IsActive: true, ExpiresAt: now.Add(-time.Hour)})
	future := createBoost(t, s, tycoon.ActiveBoost{UserID: 5, GameID: g.ID, PerkID: "builder", IsActive: true, ExpiresAt: now.Add(time.Hour)})
	due2 := createBoost(t, s, tycoon.ActiveBoost{UserID: 6, GameID: g.ID, PerkID: "shield", IsActive: true, ExpiresAt: now.Add(-time.Millisecond)})
	atNow := createBoost(t, s, tycoon.ActiveBoost{UserID: 6, GameID: g.ID, PerkID: "jail-free", IsActive: true, ExpiresAt: now})

	m.Sweep(context.Background())

	if isActive(t, s, due1.ID) || isActive(t, s, due2.ID) {
		t.Error("due boost still active")
	}
	if !isActive(t, s, future.ID) {
		t.Error("future boost deactivated")
	}
	if !isActive(t, s, atNow.ID) {
		t.Error("boost expiring exactly now deactivated")
	}

	evs := rec.events()
	if len(evs) != 2 {
		t.Fatalf("events = %+v, want 2", evs)
	}
	for i, want := range []tycoon.ActiveBoost{due1, due2} {
		ev := evs[i]
		if ev.Kind != tycoon.EventBoostExpired || ev.PlayerID != want.UserID || ev.GameID != want.GameID {
			t.Errorf("event %d = %+v", i, ev)
		}
		if ev.Metadata["boostId"] != want.ID || ev.Metadata["perkId"] != want.PerkID {
			t.Errorf("event %d metadata = %v", i, ev.Metadata)
		}
	}
	if !m.LastSweep().Equal(now) {
		t.Errorf("last sweep = %v, want %v", m.LastSweep(), now)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	s := storagetest.Open(t)
	g := storagetest.Lobby(t, s, tycoon.GameStatusStarted, 5)
	now := time.Now()
	m, rec := newManager(t, s, now)
	createBoost(t, s, tycoon.ActiveBoost{UserID: 5, GameID: g.ID, PerkID: "speed", IsActive: true, ExpiresAt: now.Add(-time.Minute)})

	m.Sweep(context.Background())
	m.Sweep(context.Background())

	if n := len(rec.events()); n != 1 {
		t.Fatalf("events after two sweeps = %d, want 1", n)
	}
}

func TestSweepScenario(t *testing.T) {
	s := storagetest.Open(t)
	g := storagetest.Lobby(t, s, tycoon.GameStatusStarted, 5)
	if g.ID != 1 {
		t.Fatalf("game id = %d, want 1 on a fresh database", g.ID)
	}
	now := time.Now()
	m, rec := newManager(t, s, now)

	// Ids 1..6 are inactive leftovers.
	for range 6 {
		createBoost(t, s, tycoon.ActiveBoost{UserID: 5, GameID: 1, PerkID: "builder", ExpiresAt: now.Add(-time.Hour)})
	}
	b := createBoost(t, s, tycoon.ActiveBoost{UserID: 5, GameID: 1, PerkID: "speed", IsActive: true, ExpiresAt: now.Add(-time.Hour)})
	if b.ID != 7 {
		t.Fatalf("boost id = %d, want 7", b.ID)
	}

	m.Sweep(context.Background())

	if isActive(t, s, 7) {
		t.Error("boost 7 still active")
	}
	evs := rec.events()
	if len(evs) != 1 {
		t.Fatalf("events = %+v, want 1", evs)
	}
	ev := evs[0]
	if ev.Kind != tycoon.EventBoostExpired || ev.PlayerID != 5 || ev.GameID != 1 {
		t.Errorf("event = %+v", ev)
	}
	if ev.Metadata["boostId"] != int64(7) || ev.Metadata["perkId"] != "speed" {
		t.Errorf("metadata = %v", ev.Metadata)
	}
}

// flakyStore fails the nth DeactivateBoost of every transaction.
type flakyStore struct {
	*storage.Store
	failAt int
}

type flakyTx struct {
	tycoon.Tx
	calls  *int
	failAt int
}

var errFlaky = errors.New("disk I/O error")

func (f flakyStore) Atomically(ctx context.Context, fn func(tycoon.Tx) error) error {
	calls := 0
	return f.Store.Atomically(ctx, func(tx tycoon.Tx) error {
		return fn(flakyTx{Tx: tx, calls: &calls, failAt: f.failAt})
	})
}

func (f flakyTx) DeactivateBoost(ctx context.Context, id int64) (bool, error) {
	*f.calls++
	if *f.calls == f.failAt {
		return false, errFlaky
	}
	return f.Tx.DeactivateBoost(ctx, id)
}

func TestSweepFailureRollsBackAndPublishesNothing(t *testing.T) {
	s := storagetest.Open(t)
	g := storagetest.Lobby(t, s, tycoon.GameStatusStarted, 5)
	now := time.Now()
	m, rec := newManager(t, flakyStore{Store: s, failAt: 2}, now)

	var ids []int64
	for _, perk := range []string{"speed", "builder", "shield"} {
		b := createBoost(t, s, tycoon.ActiveBoost{UserID: 5, GameID: g.ID, PerkID: perk, IsActive: true, ExpiresAt: now.Add(-time.Minute)})
		ids = append(ids, b.ID)
	}

	m.Sweep(context.Background())

	for _, id := range ids {
		if !isActive(t, s, id) {
			t.Errorf("boost %d deactivated by a rolled back sweep", id)
		}
	}
	if n := len(rec.events()); n != 0 {
		t.Errorf("rolled back sweep published %d events", n)
	}
	if !m.LastSweep().IsZero() {
		t.Errorf("failed sweep recorded success at %v", m.LastSweep())
	}

	// The next healthy sweep picks the same rows up.
	m.store = s
	m.Sweep(context.Background())
	if n := len(rec.events()); n != len(ids) {
		t.Errorf("retry published %d events, want %d", n, len(ids))
	}
}

func TestExpireBoost(t *testing.T) {
	s := storagetest.Open(t)
	g := storagetest.Lobby(t, s, tycoon.GameStatusStarted, 5)
	now := time.Now()
	m, rec := newManager(t, s, now)
	ctx := context.Background()

	b := createBoost(t, s, tycoon.ActiveBoost{UserID: 5, GameID: g.ID, PerkID: "speed", IsActive: true, ExpiresAt: now.Add(time.Hour)})

	for i := 0; i < 2; i++ {
		if err := m.ExpireBoost(ctx, b.ID); err != nil {
			t.Fatalf("expire #%d: %v", i+1, err)
		}
	}
	if isActive(t, s, b.ID) {
		t.Error("boost still active")
	}
	evs := rec.events()
	if len(evs) != 1 {
		t.Fatalf("events = %+v, want exactly 1", evs)
	}
	if evs[0].Metadata["boostId"] != b.ID || evs[0].Metadata["perkId"] != "speed" {
		t.Errorf("metadata = %v", evs[0].Metadata)
	}

	// A later sweep must not report it again even though it is past expiry.
	m.now = func() time.Time { return now.Add(2 * time.Hour) }
	m.Sweep(ctx)
	if n := len(rec.events()); n != 1 {
		t.Errorf("sweep after manual expiry produced %d events total, want 1", n)
	}
}

func TestExpireBoostMissingIsNoop(t *testing.T) {
	s := storagetest.Open(t)
	m, rec := newManager(t, s, time.Now())

	if err := m.ExpireBoost(context.Background(), 4242); err != nil {
		t.Fatalf("expire missing: %v", err)
	}
	if n := len(rec.events()); n != 0 {
		t.Errorf("events = %d, want 0", n)
	}
}

func TestExpireBoostSurfacesStoreFailure(t *testing.T) {
	s := storagetest.Open(t)
	g := storagetest.Lobby(t, s, tycoon.GameStatusStarted, 5)
	m, rec := newManager(t, flakyStore{Store: s, failAt: 1}, time.Now())
	b := createBoost(t, s, tycoon.ActiveBoost{UserID: 5, GameID: g.ID, PerkID: "speed", IsActive: true, ExpiresAt: time.Now()})

	err := m.ExpireBoost(context.Background(), b.ID)
	if !errors.Is(err, errFlaky) {
		t.Fatalf("err = %v, want store failure", err)
	}
	if !isActive(t, s, b.ID) {
		t.Error("failed expiry deactivated the boost")
	}
	if n := len(rec.events()); n != 0 {
		t.Errorf("events = %d, want 0", n)
	}
}

func TestSweepAndManualExpiryRace(t *testing.T) {
	s := storagetest.Open(t)
	g := storagetest.Lobby(t, s, tycoon.GameStatusStarted, 5)
	now := time.Now()
	m, rec := newManager(t, s, now)

	var ids []int64
	for range 20 {
		b := createBoost(t, s, tycoon.ActiveBoost{UserID: 5, GameID: g.ID, PerkID: "speed", IsActive: true, ExpiresAt: now.Add(-time.Second)})
		ids = append(ids, b.ID)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Sweep(context.Background())
	}()
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.ExpireBoost(context.Background(), id); err != nil {
				t.Errorf("expire %d: %v", id, err)
			}
		}()
	}
	wg.Wait()

	seen := map[int64]int{}
	for _, ev := range rec.events() {
		seen[ev.Metadata["boostId"].(int64)]++
	}
	for _, id := range ids {
		if seen[id] != 1 {
			t.Errorf("boost %d: %d events, want 1", id, seen[id])
		}
		if isActive(t, s, id) {
			t.Errorf("boost %d still active", id)
		}
	}
}
