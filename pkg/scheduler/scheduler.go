// Package scheduler runs the periodic bucket index refresh.
package scheduler

import (
	"context"
	"io"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/sgaunet/aspectidx/pkg/bucketer"
	"github.com/sgaunet/aspectidx/pkg/config"
)

// Scheduler manages the background bucket refresh job
type Scheduler struct {
	cron    *cron.Cron
	manager *bucketer.Manager
	cfg     config.Config
	log     *slog.Logger
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg config.Config, manager *bucketer.Manager) *Scheduler {
	c := cron.New()
	return &Scheduler{
		cron:    c,
		manager: manager,
		cfg:     cfg,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the scheduler
func (s *Scheduler) SetLogger(log *slog.Logger) {
	s.log = log
}

// Start starts the scheduler and adds the refresh job
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.EnableBackgroundScan {
		s.log.Info("Background bucket refresh is disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.cfg.ScanCron, func() {
		s.log.Info("Starting scheduled bucket refresh")
		if err := s.manager.RefreshBuckets(ctx); err != nil {
			s.log.Error("Scheduled bucket refresh failed", slog.String("error", err.Error()))
		} else {
			s.log.Info("Scheduled bucket refresh completed successfully")
		}
	})
	if err != nil {
		return err
	}

	s.log.Info("Starting scheduler", slog.String("schedule", s.cfg.ScanCron))
	s.cron.Start()
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.log.Info("Stopping scheduler")
	s.cron.Stop()
}
