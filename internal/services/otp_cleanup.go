package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/uzleague/league-api/internal/logging"
	"go.uber.org/zap"
)

// ExpiredRecordCleaner is anything that can sweep expired verification state
type ExpiredRecordCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// CleanupScheduler runs the expiry sweep on a cron schedule
type CleanupScheduler struct {
	cleaner  ExpiredRecordCleaner
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
	logger   *logging.SafeLogger
}

// NewCleanupScheduler creates a scheduler; schedule accepts cron specs and descriptors like "@every 1h"
func NewCleanupScheduler(cleaner ExpiredRecordCleaner, schedule string, logger *logging.SafeLogger) *CleanupScheduler {
	return &CleanupScheduler{
		cleaner:  cleaner,
		schedule: schedule,
		timeout:  time.Minute,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:   logger.With(zap.String("component", "otp_cleanup")),
	}
}

// Start registers the sweep, runs it once right away and starts the scheduler
func (s *CleanupScheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule otp cleanup %q: %w", s.schedule, err)
	}

	s.RunOnce(ctx)
	s.cron.Start()

	s.logger.Info("otp cleanup scheduled", zap.String("schedule", s.schedule))
	return nil
}

// RunOnce performs a single sweep and returns the number of deleted records
func (s *CleanupScheduler) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	deleted, err := s.cleaner.Cleanup(ctx)
	if err != nil {
		s.logger.Error("otp cleanup failed", zap.Error(err))
		return 0
	}

	s.logger.Info("otp cleanup completed",
		zap.Int64("deleted", deleted),
		zap.Duration("duration", time.Since(start)))
	return deleted
}

// Stop stops scheduling and waits for a running sweep to finish
func (s *CleanupScheduler) Stop() {
	<-s.cron.Stop().Done()
}
