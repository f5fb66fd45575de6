// internal/infra/database/maintenance_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pool_maintenance_service/internal/domain/apperr"
	"pool_maintenance_service/internal/domain/maintenance"
	"pool_maintenance_service/internal/domain/parameter"
)

var (
	_ maintenance.Store = (*MaintenanceRepository)(nil)
	_ maintenance.Tx    = (*MaintenanceRepository)(nil)
)

// MaintenanceRepository stores records and parameter instances. A repository returned by
// WithinTx is bound to that transaction; the one from NewMaintenanceRepository runs on the pool.
type MaintenanceRepository struct {
	db      *sql.DB
	q       querier
	dialect Dialect
}

func NewMaintenanceRepository(db *sql.DB, dialect Dialect) *MaintenanceRepository {
	return &MaintenanceRepository{db: db, q: db, dialect: dialect}
}

// WithinTx runs fn in one transaction. Nested calls reuse the outer transaction.
func (r *MaintenanceRepository) WithinTx(ctx context.Context, fn func(tx maintenance.Tx) error) error {
	if _, inTx := r.q.(*sql.Tx); inTx {
		return fn(r)
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // no-op once committed

	if err := fn(&MaintenanceRepository{db: r.db, q: txn, dialect: r.dialect}); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// --- Clients and team assignments ---

func (r *MaintenanceRepository) GetClient(ctx context.Context, companyID, clientID int64) (*maintenance.Client, error) {
	query := `SELECT id, company_id, name, pool_volume FROM clients WHERE id = $1 AND company_id = $2`
	c := maintenance.Client{}
	err := r.q.QueryRowContext(ctx, query, clientID, companyID).Scan(&c.ID, &c.CompanyID, &c.Name, &c.PoolVolume)
	if err != nil {
		return nil, notFound(err, "client", "error getting client %d", clientID)
	}
	return &c, nil
}

func (r *MaintenanceRepository) ClientOwner(ctx context.Context, clientID int64) (int64, error) {
	var companyID int64
	err := r.q.QueryRowContext(ctx, `SELECT company_id FROM clients WHERE id = $1`, clientID).Scan(&companyID)
	if err != nil {
		return 0, notFound(err, "client", "error getting owner of client %d", clientID)
	}
	return companyID, nil
}

func (r *MaintenanceRepository) RecordOwner(ctx context.Context, recordID int64) (int64, error) {
	var companyID int64
	err := r.q.QueryRowContext(ctx, `SELECT company_id FROM maintenance_records WHERE id = $1`, recordID).Scan(&companyID)
	if err != nil {
		return 0, notFound(err, "maintenance record", "error getting owner of record %d", recordID)
	}
	return companyID, nil
}

func (r *MaintenanceRepository) GetAssociation(ctx context.Context, companyID, clientID int64, weekday maintenance.Weekday) (*maintenance.Association, error) {
	query := `SELECT company_id, client_id, weekday, team_id FROM client_team_assignments
               WHERE company_id = $1 AND client_id = $2 AND weekday = $3`
	a := maintenance.Association{}
	err := r.q.QueryRowContext(ctx, query, companyID, clientID, weekday).Scan(&a.CompanyID, &a.ClientID, &a.Weekday, &a.TeamID)
	if err != nil {
		return nil, notFound(err, "team assignment", "error getting team assignment for client %d on %s", clientID, weekday)
	}
	return &a, nil
}

// --- Maintenance records ---

const recordColumns = `id, company_id, client_id, team_id, weekday, status, created_at, closed_at`

func scanRecord(row rowScanner) (*maintenance.Record, error) {
	rec := maintenance.Record{}
	if err := row.Scan(&rec.ID, &rec.CompanyID, &rec.ClientID, &rec.TeamID, &rec.Weekday, &rec.Status, &rec.CreatedAt, &rec.ClosedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]*maintenance.Record, error) {
	records := make([]*maintenance.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning maintenance record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating maintenance record rows: %w", err)
	}
	return records, nil
}

func (r *MaintenanceRepository) GetRecord(ctx context.Context, companyID, recordID int64, lock bool) (*maintenance.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM maintenance_records WHERE id = $1 AND company_id = $2`
	if lock {
		query += r.dialect.lockClause()
	}
	rec, err := scanRecord(r.q.QueryRowContext(ctx, query, recordID, companyID))
	if err != nil {
		return nil, notFound(err, "maintenance record", "error getting maintenance record %d", recordID)
	}
	return rec, nil
}

func (r *MaintenanceRepository) GetPendingRecord(ctx context.Context, companyID, clientID int64, weekday maintenance.Weekday) (*maintenance.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM maintenance_records
               WHERE company_id = $1 AND client_id = $2 AND weekday = $3 AND status = $4`
	rec, err := scanRecord(r.q.QueryRowContext(ctx, query, companyID, clientID, weekday, maintenance.RecordPending))
	if err != nil {
		return nil, notFound(err, "pending maintenance record", "error getting pending record for client %d on %s", clientID, weekday)
	}
	return rec, nil
}

func (r *MaintenanceRepository) LatestConcludedRecord(ctx context.Context, companyID, clientID int64, weekday maintenance.Weekday) (*maintenance.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM maintenance_records
               WHERE company_id = $1 AND client_id = $2 AND weekday = $3 AND status = $4
               ORDER BY created_at DESC, id DESC LIMIT 1`
	rec, err := scanRecord(r.q.QueryRowContext(ctx, query, companyID, clientID, weekday, maintenance.RecordConcluded))
	if err != nil {
		return nil, notFound(err, "concluded maintenance record", "error getting latest concluded record for client %d on %s", clientID, weekday)
	}
	return rec, nil
}

func (r *MaintenanceRepository) ListResettableRecords(ctx context.Context, companyID int64) ([]*maintenance.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM maintenance_records r
               WHERE r.company_id = $1 AND r.status = 'concluded'
                 AND NOT EXISTS (
                     SELECT 1 FROM maintenance_records p
                     WHERE p.company_id = r.company_id AND p.client_id = r.client_id
                       AND p.weekday = r.weekday AND p.status = 'pending')
                 AND NOT EXISTS (
                     SELECT 1 FROM maintenance_records n
                     WHERE n.company_id = r.company_id AND n.client_id = r.client_id
                       AND n.weekday = r.weekday AND n.status = 'concluded'
                       AND (n.created_at > r.created_at OR (n.created_at = r.created_at AND n.id > r.id)))
               ORDER BY r.client_id, r.weekday` + r.dialect.lockClause()
	rows, err := r.q.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("error querying resettable records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (r *MaintenanceRepository) CreateRecord(ctx context.Context, rec *maintenance.Record) error {
	query := `INSERT INTO maintenance_records (company_id, client_id, team_id, weekday, status, created_at)
               VALUES ($1, $2, $3, $4, $5, $6)
               ON CONFLICT DO NOTHING
               RETURNING id`
	err := r.q.QueryRowContext(ctx, query, rec.CompanyID, rec.ClientID, rec.TeamID, rec.Weekday, rec.Status, rec.CreatedAt).Scan(&rec.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return fmt.Errorf("%w: a pending record already exists for client %d on %s", apperr.ErrConflict, rec.ClientID, rec.Weekday)
		}
		return fmt.Errorf("error creating maintenance record: %w", err)
	}
	return nil
}

func (r *MaintenanceRepository) CloseRecord(ctx context.Context, rec *maintenance.Record) error {
	query := `UPDATE maintenance_records SET status = $1, closed_at = $2
               WHERE id = $3 AND company_id = $4 AND status = $5`
	res, err := r.q.ExecContext(ctx, query, rec.Status, rec.ClosedAt, rec.ID, rec.CompanyID, maintenance.RecordPending)
	if err != nil {
		return fmt.Errorf("error closing maintenance record %d: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error closing maintenance record %d: %w", rec.ID, err)
	}
	if n == 0 {
		return apperr.InvalidTransitionf("maintenance record %d is no longer pending", rec.ID)
	}
	return nil
}

// --- Parameter instances ---

const instanceColumns = `id, company_id, maintenance_record_id, parameter_name, last_value, current_value,
       applied_product, applied_quantity, status, reason_note, changed_by, updated_at`

func scanInstance(row rowScanner) (*maintenance.Instance, error) {
	inst := maintenance.Instance{}
	err := row.Scan(
		&inst.ID, &inst.CompanyID, &inst.RecordID, &inst.ParameterName, &inst.LastValue, &inst.CurrentValue,
		&inst.AppliedProduct, &inst.AppliedQuantity, &inst.Status, &inst.ReasonNote, &inst.ChangedBy, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *MaintenanceRepository) ListInstances(ctx context.Context, companyID, recordID int64) ([]*maintenance.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM parameter_instances
               WHERE company_id = $1 AND maintenance_record_id = $2 ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query, companyID, recordID)
	if err != nil {
		return nil, fmt.Errorf("error querying parameter instances of record %d: %w", recordID, err)
	}
	defer rows.Close()

	instances := make([]*maintenance.Instance, 0)
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning parameter instance row: %w", err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parameter instance rows: %w", err)
	}
	return instances, nil
}

func (r *MaintenanceRepository) GetInstance(ctx context.Context, companyID, recordID int64, name string, lock bool) (*maintenance.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM parameter_instances
               WHERE company_id = $1 AND maintenance_record_id = $2 AND parameter_name = $3`
	if lock {
		query += r.dialect.lockClause()
	}
	inst, err := scanInstance(r.q.QueryRowContext(ctx, query, companyID, recordID, name))
	if err != nil {
		return nil, notFound(err, "parameter instance", "error getting parameter %s of record %d", name, recordID)
	}
	return inst, nil
}

func (r *MaintenanceRepository) CreateInstances(ctx context.Context, instances []*maintenance.Instance) error {
	if len(instances) == 0 {
		return nil
	}

	stmt, err := r.q.PrepareContext(ctx, `INSERT INTO parameter_instances
               (company_id, maintenance_record_id, parameter_name, last_value, current_value, applied_product,
                applied_quantity, status, reason_note, changed_by, updated_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
               RETURNING id`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for bulk create: %w", err)
	}
	defer stmt.Close()

	for _, inst := range instances {
		err := stmt.QueryRowContext(ctx, inst.CompanyID, inst.RecordID, inst.ParameterName, inst.LastValue, inst.CurrentValue,
			inst.AppliedProduct, inst.AppliedQuantity, inst.Status, inst.ReasonNote, inst.ChangedBy, inst.UpdatedAt).Scan(&inst.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: parameter %s already exists on record %d", apperr.ErrConflict, inst.ParameterName, inst.RecordID)
			}
			return fmt.Errorf("error creating parameter %s on record %d: %w", inst.ParameterName, inst.RecordID, err)
		}
	}
	return nil
}

func (r *MaintenanceRepository) UpsertInstance(ctx context.Context, inst *maintenance.Instance) error {
	query := `INSERT INTO parameter_instances
               (company_id, maintenance_record_id, parameter_name, last_value, current_value, applied_product,
                applied_quantity, status, reason_note, changed_by, updated_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
               ON CONFLICT (maintenance_record_id, parameter_name) DO UPDATE SET
                   last_value = excluded.last_value,
                   current_value = excluded.current_value,
                   applied_product = excluded.applied_product,
                   applied_quantity = excluded.applied_quantity,
                   status = excluded.status,
                   reason_note = excluded.reason_note,
                   changed_by = excluded.changed_by,
                   updated_at = excluded.updated_at
               WHERE parameter_instances.company_id = excluded.company_id
               RETURNING id`
	err := r.q.QueryRowContext(ctx, query, inst.CompanyID, inst.RecordID, inst.ParameterName, inst.LastValue, inst.CurrentValue,
		inst.AppliedProduct, inst.AppliedQuantity, inst.Status, inst.ReasonNote, inst.ChangedBy, inst.UpdatedAt).Scan(&inst.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The conflicting row belongs to another company.
			return fmt.Errorf("%w: parameter %s of record %d", apperr.ErrTenantMismatch, inst.ParameterName, inst.RecordID)
		}
		return fmt.Errorf("error upserting parameter %s of record %d: %w", inst.ParameterName, inst.RecordID, err)
	}
	return nil
}

func (r *MaintenanceRepository) ListMissingMeasurements(ctx context.Context, companyID, recordID int64) ([]string, error) {
	query := `SELECT i.parameter_name FROM parameter_instances i
               JOIN parameter_definitions d ON d.company_id = i.company_id AND d.name = i.parameter_name
               WHERE i.company_id = $1 AND i.maintenance_record_id = $2
                 AND i.current_value IS NULL AND d.active = TRUE
               ORDER BY i.parameter_name`
	rows, err := r.q.QueryContext(ctx, query, companyID, recordID)
	if err != nil {
		return nil, fmt.Errorf("error querying missing measurements of record %d: %w", recordID, err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning missing measurement: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating missing measurements: %w", err)
	}
	return names, nil
}

// --- Definitions, read inside the workflow's transaction ---

func (r *MaintenanceRepository) ListDefinitions(ctx context.Context, companyID int64, activeOnly bool) ([]*parameter.Definition, error) {
	return listDefinitions(ctx, r.q, companyID, activeOnly)
}

func (r *MaintenanceRepository) GetDefinition(ctx context.Context, companyID int64, name string) (*parameter.Definition, error) {
	return getDefinition(ctx, r.q, companyID, name)
}
