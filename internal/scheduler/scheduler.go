// Package scheduler runs the boost sweep at startup and on a fixed period.
//
// At most one sweep runs at a time. A tick or manual trigger that arrives while
// a sweep is in flight is skipped, not queued. Once Run has returned, manual
// triggers are refused.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type Sweeper interface {
	Sweep(ctx context.Context)
}

type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger

	running atomic.Bool
	skipped atomic.Uint64

	mu      sync.Mutex // guards stopped and wg.Add against Run's final Wait
	stopped bool
	wg      sync.WaitGroup
}

func New(sweeper Sweeper, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{sweeper: sweeper, interval: interval, logger: logger}
}

// Run sweeps once immediately, then every interval until ctx is done. It
// stops accepting manual triggers and waits for any in flight before
// returning.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("boost scheduler started", "interval", s.interval.String())
	defer s.stop()

	s.tick(ctx, "startup")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("boost scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx, "interval")
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, source string) {
	if !s.acquire(source) {
		return
	}
	defer s.running.Store(false)
	s.sweeper.Sweep(ctx)
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
}

// TriggerNow starts a sweep in the background and reports whether it did. It
// returns false when a sweep is already running or the scheduler has stopped.
// The sweep outlives ctx's cancellation but keeps its values.
func (s *Scheduler) TriggerNow(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.logger.Warn("boost sweep rejected, scheduler stopped", "source", "manual")
		return false
	}
	if !s.acquire("manual") {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.sweeper.Sweep(context.WithoutCancel(ctx))
	}()
	return true
}

// Wait blocks until every manually triggered sweep has finished.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Running reports whether a sweep is in flight.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Skipped returns how many triggers were dropped because a sweep was running.
func (s *Scheduler) Skipped() uint64 { return s.skipped.Load() }

// Interval returns the sweep period.
func (s *Scheduler) Interval() time.Duration { return s.interval }

func (s *Scheduler) acquire(source string) bool {
	if s.running.CompareAndSwap(false, true) {
		return true
	}
	s.skipped.Add(1)
	s.logger.Warn("boost sweep skipped, previous sweep still running", "source", source)
	return false
}
