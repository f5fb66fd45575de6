package database

import (
	"context"
	"database/sql"
	"fmt"

	"pool_maintenance_service/internal/domain/apperr"
	"pool_maintenance_service/internal/domain/parameter"
)

var _ parameter.Repository = (*ParameterRepository)(nil)

type ParameterRepository struct {
	db *sql.DB
}

func NewParameterRepository(db *sql.DB) *ParameterRepository {
	return &ParameterRepository{db: db}
}

const definitionColumns = `id, company_id, name, value_min, value_max, value_target,
       product_increase, product_decrease, dosage_increase, dosage_decrease,
       increment_increase, increment_decrease, reference_volume, alert_above, alert_topic,
       active, created_at, updated_at`

func scanDefinition(row rowScanner) (*parameter.Definition, error) {
	d := parameter.Definition{}
	err := row.Scan(
		&d.ID, &d.CompanyID, &d.Name, &d.ValueMin, &d.ValueMax, &d.ValueTarget,
		&d.ProductIncrease, &d.ProductDecrease, &d.DosageIncrease, &d.DosageDecrease,
		&d.IncrementIncrease, &d.IncrementDecrease, &d.ReferenceVolume, &d.AlertAbove, &d.AlertTopic,
		&d.Active, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func listDefinitions(ctx context.Context, q querier, companyID int64, activeOnly bool) ([]*parameter.Definition, error) {
	query := `SELECT ` + definitionColumns + ` FROM parameter_definitions WHERE company_id = $1`
	if activeOnly {
		query += ` AND active = TRUE`
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("error listing parameter definitions: %w", err)
	}
	defer rows.Close()

	defs := make([]*parameter.Definition, 0)
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning parameter definition: %w", err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parameter definitions: %w", err)
	}
	return defs, nil
}

func getDefinition(ctx context.Context, q querier, companyID int64, name string) (*parameter.Definition, error) {
	query := `SELECT ` + definitionColumns + ` FROM parameter_definitions WHERE company_id = $1 AND name = $2`
	d, err := scanDefinition(q.QueryRowContext(ctx, query, companyID, name))
	if err != nil {
		return nil, notFound(err, "parameter definition "+name, "error getting parameter definition %s", name)
	}
	return d, nil
}

func (r *ParameterRepository) Create(ctx context.Context, d *parameter.Definition) error {
	query := `INSERT INTO parameter_definitions (company_id, name, value_min, value_max, value_target,
               product_increase, product_decrease, dosage_increase, dosage_decrease,
               increment_increase, increment_decrease, reference_volume, alert_above, alert_topic,
               active, created_at, updated_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
               RETURNING id`
	err := r.db.QueryRowContext(ctx, query, d.CompanyID, d.Name, d.ValueMin, d.ValueMax, d.ValueTarget,
		d.ProductIncrease, d.ProductDecrease, d.DosageIncrease, d.DosageDecrease,
		d.IncrementIncrease, d.IncrementDecrease, d.ReferenceVolume, d.AlertAbove, d.AlertTopic,
		d.Active, d.CreatedAt, d.UpdatedAt).Scan(&d.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: parameter %q already exists", apperr.ErrConflict, d.Name)
		}
		return fmt.Errorf("error creating parameter definition: %w", err)
	}
	return nil
}

func (r *ParameterRepository) Update(ctx context.Context, d *parameter.Definition) error {
	query := `UPDATE parameter_definitions SET
               value_min = $1, value_max = $2, value_target = $3,
               product_increase = $4, product_decrease = $5, dosage_increase = $6, dosage_decrease = $7,
               increment_increase = $8, increment_decrease = $9, reference_volume = $10,
               alert_above = $11, alert_topic = $12, active = $13, updated_at = $14
               WHERE company_id = $15 AND name = $16
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, d.ValueMin, d.ValueMax, d.ValueTarget,
		d.ProductIncrease, d.ProductDecrease, d.DosageIncrease, d.DosageDecrease,
		d.IncrementIncrease, d.IncrementDecrease, d.ReferenceVolume,
		d.AlertAbove, d.AlertTopic, d.Active, d.UpdatedAt, d.CompanyID, d.Name).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return notFound(err, "parameter definition "+d.Name, "error updating parameter definition %s", d.Name)
	}
	return nil
}

func (r *ParameterRepository) GetByName(ctx context.Context, companyID int64, name string) (*parameter.Definition, error) {
	return getDefinition(ctx, r.db, companyID, name)
}

func (r *ParameterRepository) List(ctx context.Context, companyID int64, activeOnly bool) ([]*parameter.Definition, error) {
	return listDefinitions(ctx, r.db, companyID, activeOnly)
}

func (r *ParameterRepository) SetActive(ctx context.Context, companyID int64, name string, active bool) (*parameter.Definition, error) {
	query := `UPDATE parameter_definitions SET active = $1 WHERE company_id = $2 AND name = $3
               RETURNING ` + definitionColumns
	d, err := scanDefinition(r.db.QueryRowContext(ctx, query, active, companyID, name))
	if err != nil {
		return nil, notFound(err, "parameter definition "+name, "error toggling parameter definition %s", name)
	}
	return d, nil
}
