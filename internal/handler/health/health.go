// Package health serves the readiness endpoint.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Checker verifies that a dependency or background job is healthy.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Recent fails until last reports a time no older than maxAge.
func Recent(last func() time.Time, maxAge time.Duration) Checker {
	return CheckFunc(func(context.Context) error {
		at := last()
		if at.IsZero() {
			return errors.New("never succeeded")
		}
		if age := time.Since(at); age > maxAge {
			return fmt.Errorf("last success %s ago, limit %s", age.Round(time.Second), maxAge)
		}
		return nil
	})
}

// Reporter is implemented by checkers that add counters to their entry.
type Reporter interface {
	Details() map[string]any
}

type detailed struct {
	Checker
	details func() map[string]any
}

func (d detailed) Details() map[string]any { return d.details() }

// WithDetails attaches details to c's entry, reported whether or not c passes.
func WithDetails(c Checker, details func() map[string]any) Checker {
	return detailed{Checker: c, details: details}
}

// Stats is a check that always passes and only reports details.
func Stats(details func() map[string]any) Checker {
	return WithDetails(CheckFunc(func(context.Context) error { return nil }), details)
}

type Handler struct {
	checks map[string]Checker
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, checks map[string]Checker) *Handler {
	return &Handler{checks: checks, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.check)
	return r
}

type result struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	results := make(map[string]result, len(h.checks))
	status := http.StatusOK

	for name, c := range h.checks {
		res := result{Status: "ok"}
		if err := c.Check(ctx); err != nil {
			h.logger.Error("health check failed", "name", name, "error", err)
			res.Status = "error"
			status = http.StatusServiceUnavailable
		}
		if rep, ok := c.(Reporter); ok {
			res.Details = rep.Details()
		}
		results[name] = res
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(results)
}
