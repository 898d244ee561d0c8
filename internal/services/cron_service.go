package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronService runs the scheduled inventory reconciliation sweep
type CronService struct {
	cron           *cron.Cron
	reconciliation *ReconciliationService
	schedule       string
	logger         *logrus.Logger
}

// NewCronService creates a new CronService. The schedule uses the
// seconds-granularity cron format, e.g. "0 0 3 * * *" for 03:00 daily.
func NewCronService(reconciliation *ReconciliationService, schedule string, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:           cron.New(cron.WithSeconds()),
		reconciliation: reconciliation,
		schedule:       schedule,
		logger:         logger,
	}
}

// Start registers the jobs and starts the scheduler
func (s *CronService) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.logger.Info("Starting scheduled inventory reconciliation")
		if _, err := s.reconciliation.SyncAll(context.Background()); err != nil {
			s.logger.WithError(err).Error("Scheduled reconciliation failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("Cron scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron scheduler stopped")
}
