package app

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pool_maintenance_service/internal/domain/maintenance"
	"pool_maintenance_service/internal/domain/notification"
	"pool_maintenance_service/internal/infra/database"
	"pool_maintenance_service/internal/testutil"
)

const (
	companyID      = 1
	otherCompanyID = 2
	monday         = maintenance.Weekday("monday")
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fixture struct {
	db       *sql.DB
	store    *database.MaintenanceRepository
	notifs   *database.NotificationRepository
	workflow *WorkflowServiceImpl
	reset    *ResetServiceImpl
	clientID int64
}

// newFixture seeds one client (pool volume 50) assigned to team 7 on monday, with pH and alkalinity defined.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, dialect := testutil.OpenSQLite(t)
	f := &fixture{
		db:     db,
		store:  database.NewMaintenanceRepository(db, dialect),
		notifs: database.NewNotificationRepository(db),
	}
	f.clientID = testutil.InsertClient(t, db, companyID, "Villa Azul", 50)
	testutil.AssignTeam(t, db, companyID, f.clientID, monday, 7)
	testutil.InsertDefinition(t, db, testutil.PHDefinition(companyID))
	testutil.InsertDefinition(t, db, testutil.AlkalinityDefinition(companyID))

	trigger := NewNotificationTrigger(f.notifs, nil, DefaultThresholds(), nil, quietLogger(), time.Second)
	trigger.now = fixedClock(testutil.Now)
	f.workflow = NewWorkflowServiceImpl(f.store, trigger, nil, quietLogger())
	f.workflow.now = fixedClock(testutil.Now)
	f.reset = NewResetServiceImpl(f.store, nil, quietLogger())
	f.reset.now = fixedClock(testutil.Now.Add(7 * 24 * time.Hour))
	return f
}

func (f *fixture) open(t *testing.T) *CycleView {
	t.Helper()
	view, err := f.workflow.OpenCycle(context.Background(), OpenCycleCommand{CompanyID: companyID, ClientID: f.clientID, Weekday: monday})
	require.NoError(t, err)
	return view
}

func (f *fixture) measure(t *testing.T, recordID int64, name string, value float64) *ParameterView {
	t.Helper()
	view, err := f.workflow.RecordMeasurement(context.Background(), RecordMeasurementCommand{
		CompanyID: companyID, RecordID: recordID, Parameter: name, Value: value,
	})
	require.NoError(t, err)
	return view
}

func (f *fixture) setStatus(recordID int64, name string, status maintenance.InstanceStatus, actor maintenance.Actor) (*ParameterView, error) {
	return f.workflow.SetParameterStatus(context.Background(), SetParameterStatusCommand{
		CompanyID: companyID, RecordID: recordID, Parameter: name, Status: status, Actor: actor,
	})
}

func (f *fixture) countPending(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM maintenance_records WHERE status = 'pending'`).Scan(&n))
	return n
}

func instanceByName(t *testing.T, view *CycleView, name string) *maintenance.Instance {
	t.Helper()
	for _, p := range view.Parameters {
		if p.Instance.ParameterName == name {
			return p.Instance
		}
	}
	t.Fatalf("parameter %s not in cycle %d", name, view.Record.ID)
	return nil
}

// MockNotificationRepository implements notification.Repository for trigger tests.
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) CreateIfNoneOpen(ctx context.Context, n *notification.Notification) (bool, error) {
	args := m.Called(ctx, n)
	return args.Bool(0), args.Error(1)
}

func (m *MockNotificationRepository) GetByID(ctx context.Context, companyID, id int64) (*notification.Notification, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.Notification), args.Error(1)
}

func (m *MockNotificationRepository) ListOpen(ctx context.Context, companyID, clientID int64) ([]*notification.Notification, error) {
	args := m.Called(ctx, companyID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*notification.Notification), args.Error(1)
}

func (m *MockNotificationRepository) Update(ctx context.Context, n *notification.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockNotifier implements Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n *notification.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}
