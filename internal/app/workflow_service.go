// internal/app/workflow_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pool_maintenance_service/internal/domain/apperr"
	"pool_maintenance_service/internal/domain/dosing"
	"pool_maintenance_service/internal/domain/maintenance"
	"pool_maintenance_service/internal/domain/parameter"
)

// WorkflowService drives a maintenance cycle from opening to conclusion.
type WorkflowService interface {
	OpenCycle(ctx context.Context, cmd OpenCycleCommand) (*CycleView, error)
	GetCycle(ctx context.Context, companyID, recordID int64) (*CycleView, error)
	RecordMeasurement(ctx context.Context, cmd RecordMeasurementCommand) (*ParameterView, error)
	SetParameterStatus(ctx context.Context, cmd SetParameterStatusCommand) (*ParameterView, error)
	ConcludeRecord(ctx context.Context, cmd ConcludeCommand) (*maintenance.Record, error)
}

// AnomalyTrigger inspects a measurement after it has been committed. It must not fail the caller.
type AnomalyTrigger interface {
	Evaluate(ctx context.Context, rec *maintenance.Record, inst *maintenance.Instance, def *parameter.Definition)
}

// WorkflowServiceImpl implements WorkflowService on a transactional maintenance.Store.
type WorkflowServiceImpl struct {
	store   maintenance.Store
	trigger AnomalyTrigger
	metrics Metrics
	logger  *logrus.Entry
	now     func() time.Time
}

func NewWorkflowServiceImpl(store maintenance.Store, trigger AnomalyTrigger, metrics Metrics, logger *logrus.Entry) *WorkflowServiceImpl {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &WorkflowServiceImpl{
		store:   store,
		trigger: trigger,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// OpenCycle returns the pending record for (client, weekday), creating it when there is none.
// A new record copies the previous concluded cycle's values into lastValue.
func (s *WorkflowServiceImpl) OpenCycle(ctx context.Context, cmd OpenCycleCommand) (*CycleView, error) {
	if cmd.Weekday == "" {
		cmd.Weekday = maintenance.WeekdayOf(s.now())
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	cmd.Weekday, _ = maintenance.ParseWeekday(string(cmd.Weekday))
	log := s.logger.WithFields(logrus.Fields{"company_id": cmd.CompanyID, "client_id": cmd.ClientID, "weekday": cmd.Weekday})

	view, err := s.openCycle(ctx, cmd)
	if errors.Is(err, apperr.ErrConflict) {
		// Lost the insert race: the winner's record is committed by now.
		log.Info("Concurrent cycle creation detected, reading the winning record")
		view, err = s.readPendingCycle(ctx, cmd)
		if errors.Is(err, apperr.ErrNotFound) {
			err = fmt.Errorf("%w: pending record for client %d on %s changed concurrently", apperr.ErrConflict, cmd.ClientID, cmd.Weekday)
		}
	}
	if err != nil {
		log.WithError(err).Warn("Failed to open maintenance cycle")
		return nil, err
	}

	s.metrics.CycleOpened(view.Created)
	if view.Created {
		log.WithFields(logrus.Fields{"record_id": view.Record.ID, "parameters": len(view.Parameters)}).Info("Maintenance cycle opened")
	} else {
		log.WithField("record_id", view.Record.ID).Debug("Returning existing pending cycle")
	}
	return view, nil
}

func (s *WorkflowServiceImpl) openCycle(ctx context.Context, cmd OpenCycleCommand) (*CycleView, error) {
	var view *CycleView
	err := s.store.WithinTx(ctx, func(tx maintenance.Tx) error {
		// 1. Client must belong to the caller's company
		client, err := loadClient(ctx, tx, cmd.CompanyID, cmd.ClientID)
		if err != nil {
			return err
		}

		// 2. An existing pending record is returned as is
		pending, err := tx.GetPendingRecord(ctx, cmd.CompanyID, cmd.ClientID, cmd.Weekday)
		if err == nil {
			view, err = buildCycleView(ctx, tx, client, pending)
			return err
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		// 3. The team comes from the weekday assignment
		assoc, err := tx.GetAssociation(ctx, cmd.CompanyID, cmd.ClientID, cmd.Weekday)
		if err != nil {
			return err
		}

		now := s.now()
		rec := &maintenance.Record{
			CompanyID: cmd.CompanyID,
			ClientID:  cmd.ClientID,
			TeamID:    assoc.TeamID,
			Weekday:   cmd.Weekday,
			Status:    maintenance.RecordPending,
			CreatedAt: now,
		}
		if err := tx.CreateRecord(ctx, rec); err != nil {
			return err
		}

		// 4. Seed one instance per active definition, carrying the predecessor's values
		carried, err := carriedValues(ctx, tx, cmd.CompanyID, cmd.ClientID, cmd.Weekday)
		if err != nil {
			return err
		}
		defs, err := tx.ListDefinitions(ctx, cmd.CompanyID, true)
		if err != nil {
			return err
		}
		instances := make([]*maintenance.Instance, 0, len(defs))
		for _, def := range defs {
			instances = append(instances, &maintenance.Instance{
				CompanyID:     cmd.CompanyID,
				RecordID:      rec.ID,
				ParameterName: def.Name,
				LastValue:     carried[def.Name],
				Status:        maintenance.StatusPending,
				UpdatedAt:     now,
			})
		}
		if err := tx.CreateInstances(ctx, instances); err != nil {
			return err
		}

		view, err = buildCycleView(ctx, tx, client, rec)
		if err != nil {
			return err
		}
		view.Created = true
		return nil
	})
	return view, err
}

func (s *WorkflowServiceImpl) readPendingCycle(ctx context.Context, cmd OpenCycleCommand) (*CycleView, error) {
	var view *CycleView
	err := s.store.WithinTx(ctx, func(tx maintenance.Tx) error {
		client, err := loadClient(ctx, tx, cmd.CompanyID, cmd.ClientID)
		if err != nil {
			return err
		}
		rec, err := tx.GetPendingRecord(ctx, cmd.CompanyID, cmd.ClientID, cmd.Weekday)
		if err != nil {
			return err
		}
		view, err = buildCycleView(ctx, tx, client, rec)
		return err
	})
	return view, err
}

// carriedValues maps parameter name to the current value of the latest concluded record.
func carriedValues(ctx context.Context, tx maintenance.Tx, companyID, clientID int64, weekday maintenance.Weekday) (map[string]sql.NullFloat64, error) {
	carried := make(map[string]sql.NullFloat64)
	prev, err := tx.LatestConcludedRecord(ctx, companyID, clientID, weekday)
	if errors.Is(err, apperr.ErrNotFound) {
		return carried, nil
	}
	if err != nil {
		return nil, err
	}
	instances, err := tx.ListInstances(ctx, companyID, prev.ID)
	if err != nil {
		return nil, err
	}
	for _, inst := range instances {
		carried[inst.ParameterName] = inst.CurrentValue
	}
	return carried, nil
}

// GetCycle returns a record with its parameters and their current recommendations.
func (s *WorkflowServiceImpl) GetCycle(ctx context.Context, companyID, recordID int64) (*CycleView, error) {
	if companyID <= 0 || recordID <= 0 {
		return nil, apperr.Validationf("company_id and record id are required")
	}
	var view *CycleView
	err := s.store.WithinTx(ctx, func(tx maintenance.Tx) error {
		rec, err := loadRecord(ctx, tx, companyID, recordID, false)
		if err != nil {
			return err
		}
		client, err := tx.GetClient(ctx, companyID, rec.ClientID)
		if err != nil {
			return err
		}
		view, err = buildCycleView(ctx, tx, client, rec)
		return err
	})
	return view, err
}

// RecordMeasurement stores a rounded reading. Re-measuring a not_necessary parameter reopens it;
// applied, out_of_stock and not_adjustable parameters reject new readings.
func (s *WorkflowServiceImpl) RecordMeasurement(ctx context.Context, cmd RecordMeasurementCommand) (*ParameterView, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	log := s.logger.WithFields(logrus.Fields{"company_id": cmd.CompanyID, "record_id": cmd.RecordID, "parameter": cmd.Parameter})

	var view *ParameterView
	var rec *maintenance.Record
	err := s.store.WithinTx(ctx, func(tx maintenance.Tx) error {
		var err error
		rec, err = loadPendingRecord(ctx, tx, cmd.CompanyID, cmd.RecordID)
		if err != nil {
			return err
		}
		def, err := tx.GetDefinition(ctx, cmd.CompanyID, cmd.Parameter)
		if err != nil {
			return err
		}
		inst, err := instanceFor(ctx, tx, rec, def)
		if err != nil {
			return err
		}
		if inst.Status.LocksMeasurement() {
			return apperr.InvalidTransitionf("parameter %s is already %s", inst.ParameterName, inst.Status)
		}

		inst.CurrentValue = sql.NullFloat64{Float64: dosing.Round2(cmd.Value), Valid: true}
		if inst.Status == maintenance.StatusNotNecessary {
			inst.Status = maintenance.StatusPending
			inst.ChangedBy = sql.NullString{String: string(maintenance.ActorTechnician), Valid: true}
		}
		inst.UpdatedAt = s.now()
		if err := tx.UpsertInstance(ctx, inst); err != nil {
			return err
		}

		client, err := tx.GetClient(ctx, cmd.CompanyID, rec.ClientID)
		if err != nil {
			return err
		}
		v := newParameterView(inst, def, client)
		view = &v
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("Failed to record measurement")
		return nil, err
	}

	s.metrics.MeasurementRecorded(parameter.NormalizeName(view.Instance.ParameterName))
	log.WithField("value", view.Instance.CurrentValue.Float64).Info("Measurement recorded")
	s.evaluate(ctx, rec, view)
	return view, nil
}

// SetParameterStatus applies a status transition under the record lock.
func (s *WorkflowServiceImpl) SetParameterStatus(ctx context.Context, cmd SetParameterStatusCommand) (*ParameterView, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	log := s.logger.WithFields(logrus.Fields{
		"company_id": cmd.CompanyID,
		"record_id":  cmd.RecordID,
		"parameter":  cmd.Parameter,
		"status":     cmd.Status,
		"actor":      cmd.Actor,
	})

	var view *ParameterView
	err := s.store.WithinTx(ctx, func(tx maintenance.Tx) error {
		rec, err := loadPendingRecord(ctx, tx, cmd.CompanyID, cmd.RecordID)
		if err != nil {
			return err
		}
		def, err := tx.GetDefinition(ctx, cmd.CompanyID, cmd.Parameter)
		if err != nil {
			return err
		}
		inst, err := instanceFor(ctx, tx, rec, def)
		if err != nil {
			return err
		}
		client, err := tx.GetClient(ctx, cmd.CompanyID, rec.ClientID)
		if err != nil {
			return err
		}

		if err := applyTransition(inst, cmd, def, client); err != nil {
			return err
		}
		inst.Status = cmd.Status
		inst.ReasonNote = sql.NullString{String: strings.TrimSpace(cmd.Reason), Valid: strings.TrimSpace(cmd.Reason) != ""}
		inst.ChangedBy = sql.NullString{String: string(cmd.Actor), Valid: true}
		inst.UpdatedAt = s.now()
		if err := tx.UpsertInstance(ctx, inst); err != nil {
			return err
		}

		v := newParameterView(inst, def, client)
		view = &v
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("Failed to change parameter status")
		return nil, err
	}

	// No trigger here: a status change never brings a new reading.
	s.metrics.ParameterStatusChanged(cmd.Status, cmd.Actor)
	log.Info("Parameter status changed")
	return view, nil
}

// applyTransition checks cmd against the instance's state and fills the applied fields.
// It does not set the status itself.
func applyTransition(inst *maintenance.Instance, cmd SetParameterStatusCommand, def *parameter.Definition, client *maintenance.Client) error {
	name := inst.ParameterName
	if cmd.Actor == maintenance.ActorAdmin && cmd.Status != maintenance.StatusNotAdjustable {
		return apperr.InvalidTransitionf("administration assistance can only mark %s as %s", name, maintenance.StatusNotAdjustable)
	}

	if cmd.Status == maintenance.StatusPending {
		inst.CurrentValue = sql.NullFloat64{}
		inst.AppliedProduct = sql.NullString{}
		inst.AppliedQuantity = sql.NullFloat64{}
		return nil
	}
	if inst.Status != maintenance.StatusPending {
		return apperr.InvalidTransitionf("parameter %s is already %s", name, inst.Status)
	}

	rec, recErr := recommendFor(inst, def, client)
	switch cmd.Status {
	case maintenance.StatusNotAdjustable:
		if cmd.Actor != maintenance.ActorAdmin {
			if rec == nil && recErr == nil {
				return apperr.InvalidTransitionf("parameter %s has no measurement yet", name)
			}
			if !errors.Is(recErr, dosing.ErrDirectionUnsupported) {
				if recErr != nil {
					return recErr
				}
				return apperr.InvalidTransitionf("parameter %s can be adjusted; %s needs a direction without a recipe", name, maintenance.StatusNotAdjustable)
			}
		}
		inst.AppliedProduct = sql.NullString{}
		inst.AppliedQuantity = sql.NullFloat64{}

	case maintenance.StatusApplied, maintenance.StatusOutOfStock:
		if errors.Is(recErr, dosing.ErrDirectionUnsupported) {
			return apperr.InvalidTransitionf("parameter %s cannot be moved %s; mark it %s", name, rec.Direction, maintenance.StatusNotAdjustable)
		}
		if recErr != nil {
			return recErr
		}
		if rec == nil {
			return apperr.InvalidTransitionf("parameter %s has no measurement yet", name)
		}
		if !rec.HasProduct() {
			return apperr.InvalidTransitionf("parameter %s is in range; mark it %s", name, maintenance.StatusNotNecessary)
		}

		product := rec.Product
		if p := strings.TrimSpace(cmd.Product); p != "" {
			product = p
		}
		inst.AppliedProduct = sql.NullString{String: product, Valid: true}
		inst.AppliedQuantity = sql.NullFloat64{}
		if cmd.Quantity != nil {
			inst.AppliedQuantity = sql.NullFloat64{Float64: dosing.Round2(*cmd.Quantity), Valid: true}
		} else if cmd.Status == maintenance.StatusApplied {
			inst.AppliedQuantity = sql.NullFloat64{Float64: rec.Quantity, Valid: true}
		}

	case maintenance.StatusNotNecessary:
		if rec == nil && recErr == nil {
			return apperr.InvalidTransitionf("parameter %s has no measurement yet", name)
		}
		if recErr != nil && !errors.Is(recErr, dosing.ErrDirectionUnsupported) {
			return recErr
		}
		if !rec.InRange {
			return apperr.InvalidTransitionf("parameter %s is out of range; %s needs an in-range measurement", name, maintenance.StatusNotNecessary)
		}
		inst.AppliedProduct = sql.NullString{}
		inst.AppliedQuantity = sql.NullFloat64{}
	}
	return nil
}

// ConcludeRecord closes a pending record. concluded needs every active parameter measured;
// not_concluded does not.
func (s *WorkflowServiceImpl) ConcludeRecord(ctx context.Context, cmd ConcludeCommand) (*maintenance.Record, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	log := s.logger.WithFields(logrus.Fields{"company_id": cmd.CompanyID, "record_id": cmd.RecordID, "outcome": cmd.Outcome})

	var rec *maintenance.Record
	err := s.store.WithinTx(ctx, func(tx maintenance.Tx) error {
		var err error
		rec, err = loadPendingRecord(ctx, tx, cmd.CompanyID, cmd.RecordID)
		if err != nil {
			return err
		}
		if cmd.Outcome == maintenance.RecordConcluded {
			missing, err := tx.ListMissingMeasurements(ctx, cmd.CompanyID, rec.ID)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				return &apperr.IncompleteParametersError{RecordID: rec.ID, Missing: missing}
			}
		}
		rec.Status = cmd.Outcome
		rec.ClosedAt = sql.NullTime{Time: s.now(), Valid: true}
		return tx.CloseRecord(ctx, rec)
	})
	if err != nil {
		log.WithError(err).Warn("Failed to conclude maintenance record")
		return nil, err
	}

	s.metrics.RecordClosed(rec.Status)
	log.Info("Maintenance record closed")
	return rec, nil
}

// evaluate hands a newly committed measurement to the anomaly trigger.
func (s *WorkflowServiceImpl) evaluate(ctx context.Context, rec *maintenance.Record, view *ParameterView) {
	if s.trigger == nil || rec == nil || view == nil || !view.Instance.Measured() {
		return
	}
	s.trigger.Evaluate(ctx, rec, view.Instance, view.Definition)
}

// --- helpers shared with the reset service ---

// loadClient returns the client, telling a foreign client apart from a missing one.
func loadClient(ctx context.Context, tx maintenance.Tx, companyID, clientID int64) (*maintenance.Client, error) {
	client, err := tx.GetClient(ctx, companyID, clientID)
	if err == nil || !errors.Is(err, apperr.ErrNotFound) {
		return client, err
	}
	if owner, ownerErr := tx.ClientOwner(ctx, clientID); ownerErr == nil && owner != companyID {
		return nil, fmt.Errorf("%w: client %d belongs to another company", apperr.ErrTenantMismatch, clientID)
	}
	return nil, err
}

// loadRecord returns the record, telling a foreign record apart from a missing one.
func loadRecord(ctx context.Context, tx maintenance.Tx, companyID, recordID int64, lock bool) (*maintenance.Record, error) {
	rec, err := tx.GetRecord(ctx, companyID, recordID, lock)
	if err == nil || !errors.Is(err, apperr.ErrNotFound) {
		return rec, err
	}
	if owner, ownerErr := tx.RecordOwner(ctx, recordID); ownerErr == nil && owner != companyID {
		return nil, fmt.Errorf("%w: maintenance record %d belongs to another company", apperr.ErrTenantMismatch, recordID)
	}
	return nil, err
}

// loadPendingRecord locks the record; every instance mutation goes through this lock.
func loadPendingRecord(ctx context.Context, tx maintenance.Tx, companyID, recordID int64) (*maintenance.Record, error) {
	rec, err := loadRecord(ctx, tx, companyID, recordID, true)
	if err != nil {
		return nil, err
	}
	if rec.Status != maintenance.RecordPending {
		return nil, apperr.InvalidTransitionf("maintenance record %d is %s", rec.ID, rec.Status)
	}
	return rec, nil
}

// instanceFor returns the stored instance or a new pending one for an active definition.
func instanceFor(ctx context.Context, tx maintenance.Tx, rec *maintenance.Record, def *parameter.Definition) (*maintenance.Instance, error) {
	inst, err := tx.GetInstance(ctx, rec.CompanyID, rec.ID, def.Name, true)
	if err == nil {
		return inst, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if !def.Active {
		return nil, apperr.Validationf("parameter %s is not active", def.Name)
	}
	return &maintenance.Instance{
		CompanyID:     rec.CompanyID,
		RecordID:      rec.ID,
		ParameterName: def.Name,
		Status:        maintenance.StatusPending,
	}, nil
}

// recommendFor returns (nil, nil) for an unmeasured instance.
func recommendFor(inst *maintenance.Instance, def *parameter.Definition, client *maintenance.Client) (*dosing.Recommendation, error) {
	if !inst.Measured() {
		return nil, nil
	}
	if def == nil {
		return nil, fmt.Errorf("%w: parameter %s has no definition", apperr.ErrIncompleteConfiguration, inst.ParameterName)
	}
	var poolVolume float64
	if client != nil && client.PoolVolume.Valid {
		poolVolume = client.PoolVolume.Float64
	}
	rec, err := dosing.Recommend(def, inst.CurrentValue.Float64, poolVolume)
	return &rec, err
}

func newParameterView(inst *maintenance.Instance, def *parameter.Definition, client *maintenance.Client) ParameterView {
	v := ParameterView{Instance: inst, Definition: def}
	rec, err := recommendFor(inst, def, client)
	if err != nil {
		v.RecommendationError = err.Error()
		return v
	}
	v.Recommendation = rec
	return v
}

func buildCycleView(ctx context.Context, tx maintenance.Tx, client *maintenance.Client, rec *maintenance.Record) (*CycleView, error) {
	instances, err := tx.ListInstances(ctx, rec.CompanyID, rec.ID)
	if err != nil {
		return nil, err
	}
	defs, err := tx.ListDefinitions(ctx, rec.CompanyID, false)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*parameter.Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	view := &CycleView{Record: rec, Client: client, Parameters: make([]ParameterView, 0, len(instances))}
	for _, inst := range instances {
		view.Parameters = append(view.Parameters, newParameterView(inst, byName[inst.ParameterName], client))
	}
	return view, nil
}
