package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"apigate/internal/db"
	"apigate/internal/logger"
)

// Scheduler runs the daily retention purge. Usage rows only matter for the
// trailing 30-day rate-limit window and the dashboard, so anything older
// than the configured horizon is deleted.
type Scheduler struct {
	db            db.Service
	c             *cron.Cron
	logger        *slog.Logger
	retentionDays int
}

func New(dbService db.Service, retentionDays int, log *slog.Logger) *Scheduler {
	return &Scheduler{
		db:            dbService,
		c:             cron.New(),
		logger:        logger.Component(log, "scheduler"),
		retentionDays: retentionDays,
	}
}

// Start schedules the daily purge job. A non-positive retention disables it.
func (s *Scheduler) Start() error {
	if s.retentionDays <= 0 {
		s.logger.Info("retention purge disabled")
		return nil
	}
	if _, err := s.c.AddFunc("@daily", s.purge); err != nil {
		return fmt.Errorf("failed to schedule retention purge: %w", err)
	}
	s.c.Start()
	return nil
}

func (s *Scheduler) purge() {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	n, err := s.db.PurgeUsageBefore(cutoff)
	if err != nil {
		s.logger.Error("retention purge failed", "error", err)
		return
	}
	s.logger.Info("retention purge complete", "deleted", n, "cutoff", cutoff)
}

func (s *Scheduler) Stop() {
	s.c.Stop()
}
