package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler re-runs the organizer on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	organizer *Organizer
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler for organizer.
func NewScheduler(organizer *Organizer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:      cron.New(),
		organizer: organizer,
		logger:    logger.With("component", "scheduler"),
	}
}

// Add registers a preparation of names on the standard five-field cron
// schedule. A run still in progress when the next one fires is skipped.
func (s *Scheduler) Add(ctx context.Context, schedule string, names []string) error {
	_, err := s.cron.AddFunc(schedule, func() { s.trigger(ctx, names) })
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	s.logger.Info("scheduled preparation", "schedule", schedule, "datasets", len(names))
	return nil
}

func (s *Scheduler) trigger(ctx context.Context, names []string) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("previous preparation still running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if _, err := s.organizer.Run(ctx, names); err != nil {
		s.logger.Warn("scheduled preparation failed", "error", err)
	}
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the scheduler and waits for a running preparation to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
