// internal/domain/maintenance/instance.go
package maintenance

import (
	"database/sql"
	"time"
)

// Instance tracks one parameter within one maintenance cycle.
// Corresponds to the 'parameter_instances' table, unique on (maintenance_record_id, parameter_name).
type Instance struct {
	ID              int64
	CompanyID       int64
	RecordID        int64
	ParameterName   string
	LastValue       sql.NullFloat64 // carried over from the previous concluded cycle
	CurrentValue    sql.NullFloat64 // null until measured
	AppliedProduct  sql.NullString
	AppliedQuantity sql.NullFloat64
	Status          InstanceStatus
	ReasonNote      sql.NullString
	ChangedBy       sql.NullString // Actor of the last status change
	UpdatedAt       time.Time
}

// Measured reports whether the instance carries a current measurement.
func (i *Instance) Measured() bool {
	return i.CurrentValue.Valid
}
