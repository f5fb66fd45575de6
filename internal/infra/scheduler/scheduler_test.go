package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pool_maintenance_service/internal/app"
)

type MockResetService struct {
	mock.Mock
}

func (m *MockResetService) ResetCompany(ctx context.Context, companyID int64) (*app.ResetReport, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.ResetReport), args.Error(1)
}

func (m *MockResetService) ResetCompanies(ctx context.Context, companyIDs []int64) ([]*app.ResetReport, error) {
	args := m.Called(ctx, companyIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*app.ResetReport), args.Error(1)
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestStart_RejectsInvalidSpec(t *testing.T) {
	s := NewResetScheduler(new(MockResetService), []int64{1}, "every monday", quietLogger())
	assert.Error(t, s.Start())
}

func TestStartStop(t *testing.T) {
	s := NewResetScheduler(new(MockResetService), []int64{1}, "0 3 * * 1", quietLogger())
	require.NoError(t, s.Start())
	s.Stop()
}

func TestRunReset_PassesConfiguredCompanies(t *testing.T) {
	svc := new(MockResetService)
	svc.On("ResetCompanies", mock.Anything, []int64{1, 2}).Return([]*app.ResetReport{
		{CompanyID: 1, RecordsCreated: 3},
	}, errors.New("company 2 failed")).Once()

	s := NewResetScheduler(svc, []int64{1, 2}, "0 3 * * 1", quietLogger())
	assert.NotPanics(t, s.runReset)
	svc.AssertExpectations(t)
}
