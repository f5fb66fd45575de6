// Package dosing computes how much product brings a pool parameter back to its target.
// It is pure arithmetic over a parameter definition, a measurement and the pool volume.
package dosing

import (
	"errors"
	"fmt"
	"math"

	"pool_maintenance_service/internal/domain/apperr"
	"pool_maintenance_service/internal/domain/parameter"
)

// ErrDirectionUnsupported means the definition has no recipe for the needed direction.
// It signals "cannot adjust", which the workflow turns into not_adjustable.
var ErrDirectionUnsupported = errors.New("direction unsupported")

// Direction is the way the parameter has to move.
type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
)

// Recommendation is the outcome of Recommend. When InRange is true no product is needed.
type Recommendation struct {
	InRange   bool
	Direction Direction
	Product   string
	Quantity  float64
}

// HasProduct reports whether the recommendation names something to apply.
func (r Recommendation) HasProduct() bool {
	return !r.InRange && r.Product != ""
}

// Round2 rounds to the two-decimal fixed point used for every stored value.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Recommend computes the product and quantity needed to move current toward the definition's target.
func Recommend(def *parameter.Definition, current, poolVolume float64) (Recommendation, error) {
	if def == nil {
		return Recommendation{}, fmt.Errorf("%w: no definition", apperr.ErrIncompleteConfiguration)
	}
	if !def.ValueMin.Valid || !def.ValueMax.Valid || !def.ValueTarget.Valid {
		return Recommendation{}, fmt.Errorf("%w: %s has no min/max/target", apperr.ErrIncompleteConfiguration, def.Name)
	}
	if !def.ReferenceVolume.Valid || def.ReferenceVolume.Float64 <= 0 {
		return Recommendation{}, fmt.Errorf("%w: %s has no positive reference volume", apperr.ErrIncompleteConfiguration, def.Name)
	}
	if poolVolume <= 0 {
		return Recommendation{}, fmt.Errorf("%w: pool volume must be positive", apperr.ErrIncompleteConfiguration)
	}

	current = Round2(current)
	if current >= def.ValueMin.Float64 && current <= def.ValueMax.Float64 {
		return Recommendation{InRange: true}, nil
	}

	target := def.ValueTarget.Float64
	rec := Recommendation{Direction: Decrease}
	product, dosage, increment := def.ProductDecrease, def.DosageDecrease, def.IncrementDecrease
	if current < target {
		rec.Direction = Increase
		product, dosage, increment = def.ProductIncrease, def.DosageIncrease, def.IncrementIncrease
	}
	if !product.Valid || product.String == "" || !dosage.Valid || dosage.Float64 == 0 || !increment.Valid || increment.Float64 == 0 {
		return Recommendation{Direction: rec.Direction}, fmt.Errorf("%w: %s cannot %s", ErrDirectionUnsupported, def.Name, rec.Direction)
	}

	rec.Product = product.String
	rec.Quantity = Round2(math.Abs(target-current) / increment.Float64 * dosage.Float64 * (poolVolume / def.ReferenceVolume.Float64))
	return rec, nil
}
