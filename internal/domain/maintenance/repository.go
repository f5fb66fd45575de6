// internal/domain/maintenance/repository.go
package maintenance

import (
	"context"

	"pool_maintenance_service/internal/domain/parameter"
)

// Tx is the unit of work over records, instances and the data they are joined with.
// Every method filters by companyID; lock=true takes a row lock where the store supports it.
type Tx interface {
	GetClient(ctx context.Context, companyID, clientID int64) (*Client, error)
	// ClientOwner and RecordOwner classify a miss as not-found versus tenant mismatch.
	ClientOwner(ctx context.Context, clientID int64) (int64, error)
	RecordOwner(ctx context.Context, recordID int64) (int64, error)
	GetAssociation(ctx context.Context, companyID, clientID int64, weekday Weekday) (*Association, error)

	GetRecord(ctx context.Context, companyID, recordID int64, lock bool) (*Record, error)
	GetPendingRecord(ctx context.Context, companyID, clientID int64, weekday Weekday) (*Record, error)
	LatestConcludedRecord(ctx context.Context, companyID, clientID int64, weekday Weekday) (*Record, error)
	// ListResettableRecords returns, per (client, weekday) without a pending record,
	// the most recent concluded record, locked for the rest of the transaction.
	ListResettableRecords(ctx context.Context, companyID int64) ([]*Record, error)
	// CreateRecord inserts a pending record; a concurrent pending record yields apperr.ErrConflict.
	CreateRecord(ctx context.Context, rec *Record) error
	// CloseRecord moves a pending record to its terminal status.
	CloseRecord(ctx context.Context, rec *Record) error

	ListInstances(ctx context.Context, companyID, recordID int64) ([]*Instance, error)
	GetInstance(ctx context.Context, companyID, recordID int64, name string, lock bool) (*Instance, error)
	CreateInstances(ctx context.Context, instances []*Instance) error
	// UpsertInstance writes the instance keyed by (record, parameter name).
	UpsertInstance(ctx context.Context, inst *Instance) error
	// ListMissingMeasurements names the instances with an active definition and no current value.
	ListMissingMeasurements(ctx context.Context, companyID, recordID int64) ([]string, error)

	ListDefinitions(ctx context.Context, companyID int64, activeOnly bool) ([]*parameter.Definition, error)
	GetDefinition(ctx context.Context, companyID int64, name string) (*parameter.Definition, error)
}

// Store runs units of work. fn's error rolls back every write made through tx.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
