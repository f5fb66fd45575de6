package parameter

import (
	"database/sql"
	"strings"

	"pool_maintenance_service/internal/domain/apperr"
)

// Validate checks the catalog invariants of a definition before it is stored.
// A definition may be stored incomplete (the dosing calculator reports that), but never inconsistent.
func (d *Definition) Validate() error {
	if d.CompanyID <= 0 {
		return apperr.Validationf("company_id is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		return apperr.Validationf("parameter name is required")
	}
	if d.ValueMin.Valid && d.ValueMax.Valid && d.ValueMin.Float64 > d.ValueMax.Float64 {
		return apperr.Validationf("value_min %.2f is above value_max %.2f", d.ValueMin.Float64, d.ValueMax.Float64)
	}
	if d.ValueTarget.Valid {
		if d.ValueMin.Valid && d.ValueTarget.Float64 < d.ValueMin.Float64 {
			return apperr.Validationf("value_target %.2f is below value_min %.2f", d.ValueTarget.Float64, d.ValueMin.Float64)
		}
		if d.ValueMax.Valid && d.ValueTarget.Float64 > d.ValueMax.Float64 {
			return apperr.Validationf("value_target %.2f is above value_max %.2f", d.ValueTarget.Float64, d.ValueMax.Float64)
		}
	}
	for field, v := range map[string]sql.NullFloat64{
		"dosage_increase":    d.DosageIncrease,
		"dosage_decrease":    d.DosageDecrease,
		"increment_increase": d.IncrementIncrease,
		"increment_decrease": d.IncrementDecrease,
	} {
		if v.Valid && v.Float64 < 0 {
			return apperr.Validationf("%s must not be negative", field)
		}
	}
	if d.ReferenceVolume.Valid && d.ReferenceVolume.Float64 <= 0 {
		return apperr.Validationf("reference_volume must be positive")
	}
	return nil
}
