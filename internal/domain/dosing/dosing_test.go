package dosing

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pool_maintenance_service/internal/domain/apperr"
	"pool_maintenance_service/internal/domain/parameter"
)

func f(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }
func s(v string) sql.NullString   { return sql.NullString{String: v, Valid: true} }

func phDefinition() *parameter.Definition {
	return &parameter.Definition{
		Name:              "pH",
		ValueMin:          f(7.2),
		ValueMax:          f(7.6),
		ValueTarget:       f(7.4),
		ProductIncrease:   s("Acid Up"),
		DosageIncrease:    f(1.0),
		IncrementIncrease: f(0.2),
		ProductDecrease:   s("Acid Down"),
		DosageDecrease:    f(0.5),
		IncrementDecrease: f(0.1),
		ReferenceVolume:   f(10),
		Active:            true,
	}
}

func TestRecommend_IncreaseScenario(t *testing.T) {
	rec, err := Recommend(phDefinition(), 7.0, 50)
	require.NoError(t, err)

	assert.False(t, rec.InRange)
	assert.Equal(t, Increase, rec.Direction)
	assert.Equal(t, "Acid Up", rec.Product)
	assert.Equal(t, 10.00, rec.Quantity)
	assert.True(t, rec.HasProduct())
}

func TestRecommend_Decrease(t *testing.T) {
	// |7.4 - 8.0| / 0.1 * 0.5 * (20 / 10) = 6
	rec, err := Recommend(phDefinition(), 8.0, 20)
	require.NoError(t, err)

	assert.Equal(t, Decrease, rec.Direction)
	assert.Equal(t, "Acid Down", rec.Product)
	assert.Equal(t, 6.00, rec.Quantity)
}

func TestRecommend_InRange(t *testing.T) {
	for _, v := range []float64{7.2, 7.3, 7.4, 7.55, 7.6} {
		rec, err := Recommend(phDefinition(), v, 50)
		require.NoError(t, err, "value %v", v)
		assert.True(t, rec.InRange, "value %v", v)
		assert.Empty(t, rec.Product)
		assert.Zero(t, rec.Quantity)
		assert.False(t, rec.HasProduct())
	}
}

func TestRecommend_QuantityScalesWithPoolVolume(t *testing.T) {
	def := phDefinition()
	small, err := Recommend(def, 7.0, 10)
	require.NoError(t, err)
	large, err := Recommend(def, 7.0, 40)
	require.NoError(t, err)

	assert.Equal(t, 2.00, small.Quantity)
	assert.Equal(t, 8.00, large.Quantity)
	assert.InDelta(t, small.Quantity*4, large.Quantity, 0.001)
}

func TestRecommend_RoundsToTwoDecimals(t *testing.T) {
	def := phDefinition()
	def.ReferenceVolume = f(3)

	// 0.4 / 0.2 * 1.0 * (10 / 3) = 6.666...
	rec, err := Recommend(def, 7.0, 10)
	require.NoError(t, err)
	assert.Equal(t, 6.67, rec.Quantity)
}

func TestRecommend_DirectionUnsupported(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *parameter.Definition)
	}{
		{"missing product", func(d *parameter.Definition) { d.ProductIncrease = sql.NullString{} }},
		{"empty product", func(d *parameter.Definition) { d.ProductIncrease = s("") }},
		{"zero dosage", func(d *parameter.Definition) { d.DosageIncrease = f(0) }},
		{"missing increment", func(d *parameter.Definition) { d.IncrementIncrease = sql.NullFloat64{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := phDefinition()
			tt.mutate(def)

			rec, err := Recommend(def, 7.0, 50)
			assert.ErrorIs(t, err, ErrDirectionUnsupported)
			assert.Equal(t, Increase, rec.Direction)
			assert.False(t, rec.HasProduct())
		})
	}
}

func TestRecommend_IncompleteConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(d *parameter.Definition)
		poolVolume float64
	}{
		{"missing min", func(d *parameter.Definition) { d.ValueMin = sql.NullFloat64{} }, 50},
		{"missing max", func(d *parameter.Definition) { d.ValueMax = sql.NullFloat64{} }, 50},
		{"missing target", func(d *parameter.Definition) { d.ValueTarget = sql.NullFloat64{} }, 50},
		{"missing reference volume", func(d *parameter.Definition) { d.ReferenceVolume = sql.NullFloat64{} }, 50},
		{"zero reference volume", func(d *parameter.Definition) { d.ReferenceVolume = f(0) }, 50},
		{"zero pool volume", func(d *parameter.Definition) {}, 0},
		{"negative pool volume", func(d *parameter.Definition) {}, -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := phDefinition()
			tt.mutate(def)

			_, err := Recommend(def, 7.0, tt.poolVolume)
			assert.ErrorIs(t, err, apperr.ErrIncompleteConfiguration)
			assert.NotErrorIs(t, err, ErrDirectionUnsupported)
		})
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.0, Round2(10.000000000000009))
	assert.Equal(t, 1.01, Round2(1.005000001))
	assert.Equal(t, -2.35, Round2(-2.349999))
}
