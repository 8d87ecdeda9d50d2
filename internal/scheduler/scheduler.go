// Package scheduler repeats sync runs on a fixed interval and serialises on-demand runs with them.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xlog "github.com/AndreyKarmanov/aw-garmin/internal/log"
	"github.com/AndreyKarmanov/aw-garmin/internal/syncer"
)

// ErrRunInProgress is returned by Trigger while another run holds the lock.
var ErrRunInProgress = errors.New("sync run already in progress")

// Runner performs one sync pass.
type Runner interface {
	Run(ctx context.Context, opts syncer.RunOptions) (syncer.Summary, error)
}

// Status describes the most recent finished run.
type Status struct {
	FinishedAt time.Time
	Summary    syncer.Summary
	Err        error
}

// Scheduler owns the run lock. At most one run executes at a time.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	defaults syncer.RunOptions
	logger   zerolog.Logger

	running sync.Mutex

	mu   sync.RWMutex
	last *Status
}

// New constructs a Scheduler running defaults every interval.
func New(runner Runner, interval time.Duration, defaults syncer.RunOptions) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		defaults: defaults,
		logger:   xlog.WithComponent("scheduler"),
	}
}

// Start runs once immediately, then on every tick until ctx is cancelled.
// A tick that fires while a run is in progress is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")
	for {
		if _, err := s.Trigger(ctx, s.defaults); errors.Is(err, ErrRunInProgress) {
			s.logger.Info().Msg("previous run still in progress, skipping tick")
		}

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Trigger runs a sync pass now, or returns ErrRunInProgress without waiting.
func (s *Scheduler) Trigger(ctx context.Context, opts syncer.RunOptions) (syncer.Summary, error) {
	if !s.running.TryLock() {
		return syncer.Summary{}, ErrRunInProgress
	}
	defer s.running.Unlock()

	if err := ctx.Err(); err != nil {
		return syncer.Summary{}, err
	}

	summary, err := s.runner.Run(ctx, opts)
	s.mu.Lock()
	s.last = &Status{FinishedAt: time.Now().UTC(), Summary: summary, Err: err}
	s.mu.Unlock()
	return summary, err
}

// Last returns the most recent finished run, or nil before the first run ends.
func (s *Scheduler) Last() *Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	status := *s.last
	return &status
}
