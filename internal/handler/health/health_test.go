package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/database"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/handler/health"
)

type mockChecker struct{ err error }

func (m mockChecker) Check(_ context.Context) error { return m.err }

func at(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestHandler(t *testing.T) {
	db, err := database.Open(context.Background(), database.DriverLibSQL, filepath.Join(t.TempDir(), "health.db"))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer db.Close()
	sqlite := health.CheckFunc(db.PingContext)

	tests := []struct {
		name       string
		checks     map[string]health.Checker
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name: "all healthy",
			checks: map[string]health.Checker{
				"sqlite": sqlite,
				"sweep":  health.Recent(at(time.Now()), time.Minute),
			},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"sqlite": "ok", "sweep": "ok"},
		},
		{
			name: "sqlite down",
			checks: map[string]health.Checker{
				"sqlite": mockChecker{err: errors.New("locked")},
				"sweep":  health.Recent(at(time.Now()), time.Minute),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"sqlite": "error", "sweep": "ok"},
		},
		{
			name: "sweep stale",
			checks: map[string]health.Checker{
				"sqlite": sqlite,
				"sweep":  health.Recent(at(time.Now().Add(-time.Hour)), 3*time.Minute),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"sqlite": "ok", "sweep": "error"},
		},
		{
			name: "sweep never ran",
			checks: map[string]health.Checker{
				"sqlite": sqlite,
				"sweep":  health.Recent(at(time.Time{}), time.Minute),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"sqlite": "ok", "sweep": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := health.NewHandler(slog.Default(), tt.checks)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body map[string]struct{ Status string }
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding response: %v", err)
			}

			for name, want := range tt.wantBody {
				if got := body[name].Status; got != want {
					t.Errorf("%s status = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestHandlerReportsDetails(t *testing.T) {
	h := health.NewHandler(slog.Default(), map[string]health.Checker{
		"sweep": health.WithDetails(
			health.Recent(at(time.Time{}), time.Minute),
			func() map[string]any { return map[string]any{"running": false, "skipped": 3} },
		),
		"stream": health.Stats(func() map[string]any { return map[string]any{"dropped": 7} }),
		"sqlite": mockChecker{},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body map[string]struct {
		Status  string
		Details map[string]any
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	sweep := body["sweep"]
	if sweep.Status != "error" {
		t.Errorf("sweep status = %q, want error", sweep.Status)
	}
	if sweep.Details["skipped"] != float64(3) || sweep.Details["running"] != false {
		t.Errorf("sweep details = %v", sweep.Details)
	}

	stream := body["stream"]
	if stream.Status != "ok" || stream.Details["dropped"] != float64(7) {
		t.Errorf("stream = %+v", stream)
	}

	if d := body["sqlite"].Details; d != nil {
		t.Errorf("sqlite details = %v, want none", d)
	}
}
