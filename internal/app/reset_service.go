// internal/app/reset_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pool_maintenance_service/internal/domain/maintenance"
)

// Reset steps reported by ResetError.
const (
	StepSelectRecords   = "select concluded records"
	StepLoadDefinitions = "load active definitions"
	StepCreateRecord    = "create successor record"
	StepCopyParameters  = "copy parameters"
)

// ResetService rolls every concluded cycle of a company into a new pending one.
type ResetService interface {
	ResetCompany(ctx context.Context, companyID int64) (*ResetReport, error)
	ResetCompanies(ctx context.Context, companyIDs []int64) ([]*ResetReport, error)
}

// ResetReport summarises one company reset. NothingToReset is a success, not an error.
type ResetReport struct {
	RunID            uuid.UUID
	CompanyID        int64
	RecordsCreated   int
	InstancesCreated int
	NothingToReset   bool
	StartedAt        time.Time
	FinishedAt       time.Time
}

// ResetError names the step at which a reset was rolled back.
type ResetError struct {
	RunID     uuid.UUID
	CompanyID int64
	Step      string
	Err       error
}

func (e *ResetError) Error() string {
	return fmt.Sprintf("reset of company %d failed at %q: %v", e.CompanyID, e.Step, e.Err)
}

func (e *ResetError) Unwrap() error {
	return e.Err
}

// ResetServiceImpl implements ResetService on a transactional maintenance.Store.
type ResetServiceImpl struct {
	store   maintenance.Store
	metrics Metrics
	logger  *logrus.Entry
	now     func() time.Time
}

func NewResetServiceImpl(store maintenance.Store, metrics Metrics, logger *logrus.Entry) *ResetServiceImpl {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &ResetServiceImpl{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ResetCompany runs the whole company in one transaction: either every (client, weekday)
// gets its successor or nothing changes.
func (s *ResetServiceImpl) ResetCompany(ctx context.Context, companyID int64) (*ResetReport, error) {
	report := &ResetReport{RunID: uuid.New(), CompanyID: companyID, StartedAt: s.now()}
	log := s.logger.WithFields(logrus.Fields{"run_id": report.RunID, "company_id": companyID})
	if companyID <= 0 {
		return nil, &ResetError{RunID: report.RunID, CompanyID: companyID, Step: StepSelectRecords,
			Err: fmt.Errorf("invalid company id %d", companyID)}
	}
	log.Info("Starting company reset")

	err := s.store.WithinTx(ctx, func(tx maintenance.Tx) error {
		fail := func(step string, err error) error {
			return &ResetError{RunID: report.RunID, CompanyID: companyID, Step: step, Err: err}
		}

		// 1. Latest concluded record per (client, weekday), locked until commit
		concluded, err := tx.ListResettableRecords(ctx, companyID)
		if err != nil {
			return fail(StepSelectRecords, err)
		}
		if len(concluded) == 0 {
			report.NothingToReset = true
			return nil
		}

		defs, err := tx.ListDefinitions(ctx, companyID, true)
		if err != nil {
			return fail(StepLoadDefinitions, err)
		}

		now := s.now()
		for _, old := range concluded {
			// 2. Successor for the same client, team and weekday
			next := &maintenance.Record{
				CompanyID: companyID,
				ClientID:  old.ClientID,
				TeamID:    old.TeamID,
				Weekday:   old.Weekday,
				Status:    maintenance.RecordPending,
				CreatedAt: now,
			}
			if err := tx.CreateRecord(ctx, next); err != nil {
				return fail(StepCreateRecord, err)
			}

			// 3. Carry every old instance, then 4. add definitions activated since
			oldInstances, err := tx.ListInstances(ctx, companyID, old.ID)
			if err != nil {
				return fail(StepCopyParameters, err)
			}
			seen := make(map[string]bool, len(oldInstances))
			instances := make([]*maintenance.Instance, 0, len(oldInstances)+len(defs))
			for _, prev := range oldInstances {
				seen[prev.ParameterName] = true
				instances = append(instances, &maintenance.Instance{
					CompanyID:     companyID,
					RecordID:      next.ID,
					ParameterName: prev.ParameterName,
					LastValue:     prev.CurrentValue,
					Status:        maintenance.StatusPending,
					UpdatedAt:     now,
				})
			}
			for _, def := range defs {
				if seen[def.Name] {
					continue
				}
				instances = append(instances, &maintenance.Instance{
					CompanyID:     companyID,
					RecordID:      next.ID,
					ParameterName: def.Name,
					Status:        maintenance.StatusPending,
					UpdatedAt:     now,
				})
			}
			if err := tx.CreateInstances(ctx, instances); err != nil {
				return fail(StepCopyParameters, err)
			}

			report.RecordsCreated++
			report.InstancesCreated += len(instances)
		}
		return nil
	})
	report.FinishedAt = s.now()

	if err != nil {
		var resetErr *ResetError
		if !errors.As(err, &resetErr) {
			// Begin or commit failed outside any step.
			err = &ResetError{RunID: report.RunID, CompanyID: companyID, Step: "commit", Err: err}
		}
		s.metrics.ResetFinished(false, 0)
		log.WithError(err).Error("Company reset rolled back")
		return nil, err
	}

	s.metrics.ResetFinished(true, report.RecordsCreated)
	if report.NothingToReset {
		log.Info("Nothing to reset")
	} else {
		log.WithFields(logrus.Fields{
			"records_created":   report.RecordsCreated,
			"instances_created": report.InstancesCreated,
			"duration":          report.FinishedAt.Sub(report.StartedAt).String(),
		}).Info("Company reset committed")
	}
	return report, nil
}

// ResetCompanies resets each company in its own transaction. A failing company does not stop
// the others; the returned error joins every failure.
func (s *ResetServiceImpl) ResetCompanies(ctx context.Context, companyIDs []int64) ([]*ResetReport, error) {
	reports := make([]*ResetReport, 0, len(companyIDs))
	var errs []error
	for _, id := range companyIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report, err := s.ResetCompany(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}
