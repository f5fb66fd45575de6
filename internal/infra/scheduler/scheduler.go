package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"pool_maintenance_service/internal/app"
)

const defaultResetTimeout = 10 * time.Minute

// ResetScheduler triggers the company-wide reset on a cron spec.
// It only decides when; ResetService owns the transaction.
type ResetScheduler struct {
	cronEngine   *cron.Cron
	resetService app.ResetService
	companyIDs   []int64
	cronSpec     string
	timeout      time.Duration
	logger       *logrus.Entry
}

func NewResetScheduler(
	resetService app.ResetService,
	companyIDs []int64,
	cronSpec string, // e.g. "0 3 * * 1" (03:00 every Monday)
	logger *logrus.Entry,
) *ResetScheduler {
	return &ResetScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.Local), // Use server's local time for cron
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		resetService: resetService,
		companyIDs:   companyIDs,
		cronSpec:     cronSpec,
		timeout:      defaultResetTimeout,
		logger:       logger,
	}
}

// Start registers the reset job and starts the cron engine.
func (s *ResetScheduler) Start() error {
	s.logger.WithField("cron_spec", s.cronSpec).Info("Starting reset scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpec, s.runReset); err != nil {
		return fmt.Errorf("could not add reset cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.logger.WithField("companies", len(s.companyIDs)).Info("Reset scheduler started")
	return nil
}

// runReset resets every configured company; a failing company is logged and the rest go on.
func (s *ResetScheduler) runReset() {
	s.logger.Info("Cron job triggered for company reset")
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	reports, err := s.resetService.ResetCompanies(ctx, s.companyIDs)
	for _, r := range reports {
		s.logger.WithFields(logrus.Fields{
			"run_id":           r.RunID,
			"company_id":       r.CompanyID,
			"records_created":  r.RecordsCreated,
			"nothing_to_reset": r.NothingToReset,
		}).Info("Scheduled reset finished")
	}
	if err != nil {
		s.logger.WithError(err).Error("Scheduled reset finished with failures")
	}
}

func (s *ResetScheduler) Stop() {
	s.logger.Info("Stopping reset scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Reset scheduler gracefully stopped")
}
