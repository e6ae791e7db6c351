package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/ONEONUORA/Tycoon-Monorepo/internal/boost"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/config"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/database"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/events"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/handler/feed"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/handler/health"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/migrations"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/roster"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/scheduler"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/server"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/storage"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/stream"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/telemetry"
	"github.com/ONEONUORA/Tycoon-Monorepo/internal/trigger"
)

const serviceName = "tycoon"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Tracing ---
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, serviceName)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("flushing traces", "error", err)
		}
	}()

	// --- SQLite ---
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	db, err := database.Open(ctx, cfg.DBDriver, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	applied, err := migrations.Run(ctx, db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "driver", cfg.DBDriver, "path", cfg.DBPath, "migrations_applied", applied)

	store := storage.New(db)
	if cfg.SeedDemo {
		if err := store.SeedDemo(ctx, logger); err != nil {
			return fmt.Errorf("seeding demo data: %w", err)
		}
	}

	// --- Events ---
	bus := events.NewBus(logger)
	dispatcher := trigger.NewDispatcher(logger)
	trigger.RegisterDefaults(dispatcher, logger)
	dispatcher.Attach(bus)

	broker := stream.NewBroker(logger)
	broker.Attach(bus)

	// --- Domain ---
	lobbies := roster.NewManager(store, bus, logger)
	boosts := boost.NewManager(store, bus, logger)
	sweeps := scheduler.New(boosts, cfg.SweepInterval, logger)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Players: store,
		Roster:  lobbies,
		Boosts:  boosts,
		Sweeps:  sweeps,
	}, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, map[string]health.Checker{
			"sqlite": health.CheckFunc(store.Ping),
			"sweep": health.WithDetails(health.Recent(boosts.LastSweep, 3*sweeps.Interval()), func() map[string]any {
				return map[string]any{"running": sweeps.Running(), "skipped": sweeps.Skipped()}
			}),
			"events": health.Stats(func() map[string]any {
				st := bus.Stats()
				return map[string]any{"subscribers": st.Subscribers, "published": st.Published, "failures": st.Failures}
			}),
			"stream": health.Stats(func() map[string]any {
				return map[string]any{"dropped": broker.Dropped()}
			}),
		}).Routes())
		r.Mount("/ws", feed.NewHandler(logger, broker).Routes())
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sweeps.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
