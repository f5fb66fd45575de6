package app

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"pool_maintenance_service/internal/domain/apperr"
	"pool_maintenance_service/internal/domain/maintenance"
	"pool_maintenance_service/internal/domain/parameter"
	"pool_maintenance_service/internal/infra/database"
	"pool_maintenance_service/internal/testutil"
)

func TestOpenCycle_CreatesPendingRecordWithActiveParameters(t *testing.T) {
	f := newFixture(t)

	view := f.open(t)

	assert.True(t, view.Created)
	assert.Equal(t, maintenance.RecordPending, view.Record.Status)
	assert.EqualValues(t, 7, view.Record.TeamID)
	assert.Equal(t, monday, view.Record.Weekday)
	require.Len(t, view.Parameters, 2)
	for _, p := range view.Parameters {
		assert.Equal(t, maintenance.StatusPending, p.Instance.Status)
		assert.False(t, p.Instance.LastValue.Valid)
		assert.False(t, p.Instance.CurrentValue.Valid)
		assert.Nil(t, p.Recommendation)
	}

	again := f.open(t)
	assert.False(t, again.Created)
	assert.Equal(t, view.Record.ID, again.Record.ID)
	assert.Equal(t, 1, f.countPending(t))
}

func TestOpenCycle_DefaultsToToday(t *testing.T) {
	f := newFixture(t)

	// The fixture clock is a Monday.
	view, err := f.workflow.OpenCycle(context.Background(), OpenCycleCommand{CompanyID: companyID, ClientID: f.clientID})
	require.NoError(t, err)
	assert.Equal(t, monday, view.Record.Weekday)
}

func TestOpenCycle_CarriesPreviousValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.open(t)
	f.measure(t, first.Record.ID, "pH", 7.0)
	f.measure(t, first.Record.ID, "alkalinity", 100)
	_, err := f.workflow.ConcludeRecord(ctx, ConcludeCommand{CompanyID: companyID, RecordID: first.Record.ID, Outcome: maintenance.RecordConcluded})
	require.NoError(t, err)

	second := f.open(t)
	require.True(t, second.Created)
	assert.NotEqual(t, first.Record.ID, second.Record.ID)

	ph := instanceByName(t, second, "pH")
	assert.InDelta(t, 7.0, ph.LastValue.Float64, 0.001)
	assert.False(t, ph.CurrentValue.Valid)
	alk := instanceByName(t, second, "alkalinity")
	assert.InDelta(t, 100.0, alk.LastValue.Float64, 0.001)
}

// openConcurrently races callers on OpenCycle for one (client, monday) and returns the record ids they got.
func openConcurrently(t *testing.T, wf *WorkflowServiceImpl, company, clientID int64, callers int) []int64 {
	t.Helper()
	ids := make([]int64, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			view, err := wf.OpenCycle(context.Background(), OpenCycleCommand{CompanyID: company, ClientID: clientID, Weekday: monday})
			if err != nil {
				return err
			}
			ids[i] = view.Record.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())
	return ids
}

// SQLite runs on a single connection, so these callers are serialised and only the
// check-then-insert path is covered. TestOpenCycle_ConflictReturnsWinner forces the insert
// race; TestOpenCycle_ConcurrentCallsOnPostgres runs it for real when a DSN is given.
func TestOpenCycle_ConcurrentCallsYieldOneRecord(t *testing.T) {
	f := newFixture(t)

	ids := openConcurrently(t, f.workflow, companyID, f.clientID, 8)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, f.countPending(t))
}

func TestOpenCycle_ConcurrentCallsOnPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	db, dialect, err := database.Open(context.Background(), "pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// A fresh company per run keeps earlier runs' rows out of the way.
	company := time.Now().UnixNano()
	clientID := testutil.InsertClient(t, db, company, "Villa Azul", 50)
	testutil.AssignTeam(t, db, company, clientID, monday, 7)
	testutil.InsertDefinition(t, db, testutil.PHDefinition(company))

	wf := NewWorkflowServiceImpl(database.NewMaintenanceRepository(db, dialect), nil, nil, quietLogger())
	ids := openConcurrently(t, wf, company, clientID, 16)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	var pending int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM maintenance_records WHERE company_id = $1 AND status = 'pending'`,
		company).Scan(&pending))
	assert.Equal(t, 1, pending)
}

// staleCheckStore lets a competitor commit a pending record between the
// existence check and the insert of the first transaction.
type staleCheckStore struct {
	inner   *database.MaintenanceRepository
	compete func() error
	raced   bool
}

func (s *staleCheckStore) WithinTx(ctx context.Context, fn func(tx maintenance.Tx) error) error {
	if s.raced {
		return s.inner.WithinTx(ctx, fn)
	}
	s.raced = true
	if err := s.compete(); err != nil {
		return err
	}
	return s.inner.WithinTx(ctx, func(tx maintenance.Tx) error {
		return fn(staleTx{Tx: tx})
	})
}

type staleTx struct {
	maintenance.Tx
}

func (staleTx) GetPendingRecord(context.Context, int64, int64, maintenance.Weekday) (*maintenance.Record, error) {
	return nil, apperr.ErrNotFound
}

func TestOpenCycle_ConflictReturnsWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	winner := &maintenance.Record{
		CompanyID: companyID, ClientID: f.clientID, TeamID: 7, Weekday: monday,
		Status: maintenance.RecordPending, CreatedAt: testutil.Now,
	}
	store := &staleCheckStore{inner: f.store, compete: func() error { return f.store.CreateRecord(ctx, winner) }}
	svc := NewWorkflowServiceImpl(store, nil, nil, quietLogger())
	svc.now = fixedClock(testutil.Now)

	view, err := svc.OpenCycle(ctx, OpenCycleCommand{CompanyID: companyID, ClientID: f.clientID, Weekday: monday})
	require.NoError(t, err)
	assert.False(t, view.Created)
	assert.Equal(t, winner.ID, view.Record.ID)
	assert.Equal(t, 1, f.countPending(t))
}

func TestOpenCycle_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	foreign := testutil.InsertClient(t, f.db, otherCompanyID, "Elsewhere", 40)
	unassigned := testutil.InsertClient(t, f.db, companyID, "No Team", 40)

	tests := []struct {
		name string
		cmd  OpenCycleCommand
		want error
	}{
		{"missing client", OpenCycleCommand{CompanyID: companyID, Weekday: monday}, apperr.ErrValidation},
		{"bad weekday", OpenCycleCommand{CompanyID: companyID, ClientID: f.clientID, Weekday: "funday"}, apperr.ErrValidation},
		{"unknown client", OpenCycleCommand{CompanyID: companyID, ClientID: 9999, Weekday: monday}, apperr.ErrNotFound},
		{"foreign client", OpenCycleCommand{CompanyID: companyID, ClientID: foreign, Weekday: monday}, apperr.ErrTenantMismatch},
		{"no team assigned", OpenCycleCommand{CompanyID: companyID, ClientID: unassigned, Weekday: monday}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.workflow.OpenCycle(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, f.countPending(t))
}

func TestGetCycle_TenantIsolation(t *testing.T) {
	f := newFixture(t)
	view := f.open(t)

	got, err := f.workflow.GetCycle(context.Background(), companyID, view.Record.ID)
	require.NoError(t, err)
	assert.Len(t, got.Parameters, 2)

	_, err = f.workflow.GetCycle(context.Background(), otherCompanyID, view.Record.ID)
	assert.ErrorIs(t, err, apperr.ErrTenantMismatch)

	_, err = f.workflow.GetCycle(context.Background(), companyID, view.Record.ID+100)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordMeasurement_RoundsAndRecommends(t *testing.T) {
	f := newFixture(t)
	view := f.open(t)

	p := f.measure(t, view.Record.ID, "pH", 7.004)

	assert.Equal(t, 7.0, p.Instance.CurrentValue.Float64)
	require.NotNil(t, p.Recommendation)
	assert.Equal(t, "Acid Up", p.Recommendation.Product)
	assert.Equal(t, 10.00, p.Recommendation.Quantity)
	assert.Empty(t, p.RecommendationError)
}

func TestRecordMeasurement_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.open(t)
	id := view.Record.ID

	tests := []struct {
		name string
		cmd  RecordMeasurementCommand
		want error
	}{
		{"negative", RecordMeasurementCommand{CompanyID: companyID, RecordID: id, Parameter: "pH", Value: -1}, apperr.ErrValidation},
		{"not a number", RecordMeasurementCommand{CompanyID: companyID, RecordID: id, Parameter: "pH", Value: math.NaN()}, apperr.ErrValidation},
		{"no parameter", RecordMeasurementCommand{CompanyID: companyID, RecordID: id, Value: 7}, apperr.ErrValidation},
		{"unknown parameter", RecordMeasurementCommand{CompanyID: companyID, RecordID: id, Parameter: "salt", Value: 3}, apperr.ErrNotFound},
		{"foreign company", RecordMeasurementCommand{CompanyID: otherCompanyID, RecordID: id, Parameter: "pH", Value: 7}, apperr.ErrTenantMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.workflow.RecordMeasurement(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRecordMeasurement_ParameterActivatedMidCycle(t *testing.T) {
	f := newFixture(t)
	view := f.open(t)

	salt := &parameter.Definition{CompanyID: companyID, Name: "salt", Active: true}
	testutil.InsertDefinition(t, f.db, salt)

	p := f.measure(t, view.Record.ID, "salt", 3.2)
	assert.Equal(t, maintenance.StatusPending, p.Instance.Status)
	assert.Contains(t, p.RecommendationError, apperr.ErrIncompleteConfiguration.Error())

	// Inactive definitions cannot join a running cycle.
	testutil.InsertDefinition(t, f.db, &parameter.Definition{CompanyID: companyID, Name: "phosphate", Active: false})
	_, err := f.workflow.RecordMeasurement(context.Background(), RecordMeasurementCommand{
		CompanyID: companyID, RecordID: view.Record.ID, Parameter: "phosphate", Value: 1,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSetParameterStatus_AppliedUsesRecommendation(t *testing.T) {
	f := newFixture(t)
	view := f.open(t)
	f.measure(t, view.Record.ID, "pH", 7.0)

	p, err := f.setStatus(view.Record.ID, "pH", maintenance.StatusApplied, maintenance.ActorTechnician)
	require.NoError(t, err)
	assert.Equal(t, maintenance.StatusApplied, p.Instance.Status)
	assert.Equal(t, "Acid Up", p.Instance.AppliedProduct.String)
	assert.Equal(t, 10.00, p.Instance.AppliedQuantity.Float64)
	assert.Equal(t, string(maintenance.ActorTechnician), p.Instance.ChangedBy.String)

	// Applied locks the measurement and further terminal moves.
	_, err = f.workflow.RecordMeasurement(context.Background(), RecordMeasurementCommand{
		CompanyID: companyID, RecordID: view.Record.ID, Parameter: "pH", Value: 7.3,
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
	_, err = f.setStatus(view.Record.ID, "pH", maintenance.StatusOutOfStock, maintenance.ActorTechnician)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	// Back to pending clears everything.
	p, err = f.setStatus(view.Record.ID, "pH", maintenance.StatusPending, maintenance.ActorTechnician)
	require.NoError(t, err)
	assert.Equal(t, maintenance.StatusPending, p.Instance.Status)
	assert.False(t, p.Instance.CurrentValue.Valid)
	assert.False(t, p.Instance.AppliedProduct.Valid)
	assert.False(t, p.Instance.AppliedQuantity.Valid)
}

func TestSetParameterStatus_Overrides(t *testing.T) {
	f := newFixture(t)
	view := f.open(t)
	f.measure(t, view.Record.ID, "pH", 7.0)
	qty := 8.456

	p, err := f.workflow.SetParameterStatus(context.Background(), SetParameterStatusCommand{
		CompanyID: companyID, RecordID: view.Record.ID, Parameter: "pH",
		Status: maintenance.StatusApplied, Product: "Acid Up Plus", Quantity: &qty,
		Reason: "stronger product on hand", Actor: maintenance.ActorTechnician,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acid Up Plus", p.Instance.AppliedProduct.String)
	assert.Equal(t, 8.46, p.Instance.AppliedQuantity.Float64)
	assert.Equal(t, "stronger product on hand", p.Instance.ReasonNote.String)
}

func TestSetParameterStatus_OutOfStockKeepsQuantityEmpty(t *testing.T) {
	f := newFixture(t)
	view := f.open(t)
	f.measure(t, view.Record.ID, "pH", 7.0)

	p, err := f.setStatus(view.Record.ID, "pH", maintenance.StatusOutOfStock, maintenance.ActorTechnician)
	require.NoError(t, err)
	assert.Equal(t, "Acid Up", p.Instance.AppliedProduct.String)
	assert.False(t, p.Instance.AppliedQuantity.Valid)
}

func TestSetParameterStatus_NotNecessary(t *testing.T) {
	f := newFixture(t)
	view := f.open(t)
	id := view.Record.ID

	f.measure(t, id, "pH", 7.0)
	_, err := f.setStatus(id, "pH", maintenance.StatusNotNecessary, maintenance.ActorTechnician)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	// In range: applied is refused, not_necessary accepted.
	f.measure(t, id, "pH", 7.4)
	_, err = f.setStatus(id, "pH", maintenance.StatusApplied, maintenance.ActorTechnician)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
	p, err := f.setStatus(id, "pH", maintenance.StatusNotNecessary, maintenance.ActorTechnician)
	require.NoError(t, err)
	assert.Equal(t, maintenance.StatusNotNecessary, p.Instance.Status)

	// Re-measuring reopens the parameter.
	p = f.measure(t, id, "pH", 7.0)
	assert.Equal(t, maintenance.StatusPending, p.Instance.Status)
	assert.Equal(t, 7.0, p.Instance.CurrentValue.Float64)
}

func TestSetParameterStatus_NotAdjustable(t *testing.T) {
	f := newFixture(t)
	view := f.open(t)
	id := view.Record.ID

	// Unmeasured: the technician cannot, the administration can.
	_, err := f.setStatus(id, "alkalinity", maintenance.StatusNotAdjustable, maintenance.ActorTechnician)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	// pH can be moved up, so it is adjustable.
	f.measure(t, id, "pH", 7.0)
	_, err = f.setStatus(id, "pH", maintenance.StatusNotAdjustable, maintenance.ActorTechnician)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	// Alkalinity has no recipe to go down.
	f.measure(t, id, "alkalinity", 130)
	_, err = f.setStatus(id, "alkalinity", maintenance.StatusApplied, maintenance.ActorTechnician)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
	p, err := f.setStatus(id, "alkalinity", maintenance.StatusNotAdjustable, maintenance.ActorTechnician)
	require.NoError(t, err)
	assert.Equal(t, maintenance.StatusNotAdjustable, p.Instance.Status)
	assert.Equal(t, 130.0, p.Instance.CurrentValue.Float64)
	assert.False(t, p.Instance.AppliedProduct.Valid)
}

func TestSetParameterStatus_AdminAssist(t *testing.T) {
	f := newFixture(t)
	view := f.open(t)
	id := view.Record.ID

	_, err := f.setStatus(id, "pH", maintenance.StatusApplied, maintenance.ActorAdmin)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)

	p, err := f.setStatus(id, "pH", maintenance.StatusNotAdjustable, maintenance.ActorAdmin)
	require.NoError(t, err)
	assert.Equal(t, maintenance.StatusNotAdjustable, p.Instance.Status)
	assert.Equal(t, string(maintenance.ActorAdmin), p.Instance.ChangedBy.String)
	assert.False(t, p.Instance.CurrentValue.Valid)

	// Only pending instances can be assisted.
	f.measure(t, id, "alkalinity", 100)
	_, err = f.setStatus(id, "alkalinity", maintenance.StatusNotNecessary, maintenance.ActorTechnician)
	require.NoError(t, err)
	_, err = f.setStatus(id, "alkalinity", maintenance.StatusNotAdjustable, maintenance.ActorAdmin)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
}

func TestSetParameterStatus_IncompleteConfiguration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	noVolume := testutil.InsertClient(t, f.db, companyID, "Unknown Volume", 0)
	testutil.AssignTeam(t, f.db, companyID, noVolume, monday, 3)

	view, err := f.workflow.OpenCycle(ctx, OpenCycleCommand{CompanyID: companyID, ClientID: noVolume, Weekday: monday})
	require.NoError(t, err)

	p := f.measure(t, view.Record.ID, "pH", 7.0)
	assert.Nil(t, p.Recommendation)
	assert.NotEmpty(t, p.RecommendationError)

	_, err = f.setStatus(view.Record.ID, "pH", maintenance.StatusApplied, maintenance.ActorTechnician)
	assert.ErrorIs(t, err, apperr.ErrIncompleteConfiguration)
}

func TestConcludeRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.open(t)
	id := view.Record.ID
	conclude := func(outcome maintenance.RecordStatus) (*maintenance.Record, error) {
		return f.workflow.ConcludeRecord(ctx, ConcludeCommand{CompanyID: companyID, RecordID: id, Outcome: outcome})
	}

	_, err := conclude(maintenance.RecordConcluded)
	var incomplete *apperr.IncompleteParametersError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"alkalinity", "pH"}, incomplete.Missing)
	assert.ErrorIs(t, err, apperr.ErrIncompleteParameters)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
	assert.Equal(t, "cannot conclude: 2 parameters missing (alkalinity, pH)", err.Error())

	_, err = conclude(maintenance.RecordPending)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	f.measure(t, id, "pH", 7.4)
	f.measure(t, id, "alkalinity", 100)
	rec, err := conclude(maintenance.RecordConcluded)
	require.NoError(t, err)
	assert.Equal(t, maintenance.RecordConcluded, rec.Status)
	assert.True(t, rec.ClosedAt.Valid)

	_, err = conclude(maintenance.RecordNotConcluded)
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
	_, err = f.workflow.RecordMeasurement(ctx, RecordMeasurementCommand{CompanyID: companyID, RecordID: id, Parameter: "pH", Value: 7.2})
	assert.ErrorIs(t, err, apperr.ErrInvalidStateTransition)
}

func TestConcludeRecord_InactiveDefinitionsDoNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.open(t)

	f.measure(t, view.Record.ID, "pH", 7.4)
	_, err := database.NewParameterRepository(f.db).SetActive(ctx, companyID, "alkalinity", false)
	require.NoError(t, err)

	_, err = f.workflow.ConcludeRecord(ctx, ConcludeCommand{CompanyID: companyID, RecordID: view.Record.ID, Outcome: maintenance.RecordConcluded})
	require.NoError(t, err)
}

func TestConcludeRecord_NotConcludedIgnoresMissing(t *testing.T) {
	f := newFixture(t)
	view := f.open(t)

	rec, err := f.workflow.ConcludeRecord(context.Background(), ConcludeCommand{
		CompanyID: companyID, RecordID: view.Record.ID, Outcome: maintenance.RecordNotConcluded,
	})
	require.NoError(t, err)
	assert.Equal(t, maintenance.RecordNotConcluded, rec.Status)
	assert.Equal(t, 0, f.countPending(t))
}

func TestRecordMeasurement_RaisesDeduplicatedNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.open(t)

	f.measure(t, view.Record.ID, "alkalinity", 130)
	open, err := f.notifs.ListOpen(ctx, companyID, f.clientID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.EqualValues(t, "alkalinity-high", open[0].Topic)
	assert.EqualValues(t, "pending", open[0].Status)

	f.measure(t, view.Record.ID, "alkalinity", 135)
	f.measure(t, view.Record.ID, "pH", 7.0)
	open, err = f.notifs.ListOpen(ctx, companyID, f.clientID)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestSetParameterStatus_DoesNotReraiseResolvedNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.open(t)

	f.measure(t, view.Record.ID, "alkalinity", 130)
	open, err := f.notifs.ListOpen(ctx, companyID, f.clientID)
	require.NoError(t, err)
	require.Len(t, open, 1)

	_, err = NewNotificationServiceImpl(f.notifs, quietLogger()).Resolve(ctx, companyID, open[0].ID, nil)
	require.NoError(t, err)

	// Same reading, only the outcome changes.
	pv, err := f.setStatus(view.Record.ID, "alkalinity", maintenance.StatusNotAdjustable, maintenance.ActorTechnician)
	require.NoError(t, err)
	assert.Equal(t, maintenance.StatusNotAdjustable, pv.Instance.Status)

	open, err = f.notifs.ListOpen(ctx, companyID, f.clientID)
	require.NoError(t, err)
	assert.Empty(t, open)
}
