package usecase

import (
	"context"
	"log/slog"
	"time"

	"ProSocialFlow/internal/logging"
	"ProSocialFlow/internal/ports"
)

// Sweeper wires a periodic driver with idle-session expiry.
type Sweeper struct {
	driver   ports.Scheduler
	sessions *SessionManager
	logger   *slog.Logger
}

// NewSweeper returns a helper to start/stop the session sweep job.
func NewSweeper(driver ports.Scheduler, sessions *SessionManager, log *slog.Logger) *Sweeper {
	return &Sweeper{driver: driver, sessions: sessions, logger: logging.OrDiscard(log)}
}

// Start registers the sweep with the provided scheduler.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.driver == nil || s.sessions == nil {
		return nil
	}

	job := func(trigger time.Time) {
		removed := s.sessions.Sweep(trigger)
		s.logger.Debug("session sweep", "removed", removed)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
