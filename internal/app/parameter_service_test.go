package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pool_maintenance_service/internal/domain/apperr"
	"pool_maintenance_service/internal/infra/database"
	"pool_maintenance_service/internal/testutil"
)

func TestParameterService(t *testing.T) {
	db, _ := testutil.OpenSQLite(t)
	svc := NewParameterService(database.NewParameterRepository(db), quietLogger())
	svc.now = fixedClock(testutil.Now)
	ctx := context.Background()

	def := testutil.PHDefinition(companyID)
	def.Name = "  pH "
	created, err := svc.Create(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, "pH", created.Name)
	assert.NotZero(t, created.ID)

	_, err = svc.Create(ctx, testutil.PHDefinition(companyID))
	assert.ErrorIs(t, err, apperr.ErrConflict)

	bad := testutil.PHDefinition(companyID)
	bad.Name = "chlorine"
	bad.ValueTarget = testutil.Float(9)
	_, err = svc.Create(ctx, bad)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	upd := testutil.PHDefinition(companyID)
	upd.ReferenceVolume = testutil.Float(20)
	_, err = svc.Update(ctx, upd)
	require.NoError(t, err)
	got, err := svc.Get(ctx, companyID, "pH")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, got.ReferenceVolume.Float64, 0.001)

	off, err := svc.SetActive(ctx, companyID, "pH", false)
	require.NoError(t, err)
	assert.False(t, off.Active)

	active, err := svc.List(ctx, companyID, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = svc.Get(ctx, otherCompanyID, "pH")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.List(ctx, 0, false)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
