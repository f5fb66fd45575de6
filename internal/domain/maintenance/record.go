// internal/domain/maintenance/record.go
package maintenance

import (
	"database/sql"
	"time"
)

// Record is one maintenance cycle for a (client, weekday) pair.
// Corresponds to the 'maintenance_records' table. A record is created pending,
// transitions once to a terminal status and is never reopened.
type Record struct {
	ID        int64
	CompanyID int64
	ClientID  int64
	TeamID    int64
	Weekday   Weekday
	Status    RecordStatus
	CreatedAt time.Time
	ClosedAt  sql.NullTime
}

// Client is the read-only view of a pool owner needed by the workflow.
type Client struct {
	ID         int64
	CompanyID  int64
	Name       string
	PoolVolume sql.NullFloat64 // litres, cubic metres or whatever unit the catalog's reference volume uses
}

// Association assigns a team to a client on a weekday. Unique per (client, weekday).
type Association struct {
	CompanyID int64
	ClientID  int64
	Weekday   Weekday
	TeamID    int64
}
