package parameter

import "context"

// Repository defines catalog operations for parameter definitions. Every method is company-scoped.
type Repository interface {
	Create(ctx context.Context, def *Definition) error
	Update(ctx context.Context, def *Definition) error
	GetByName(ctx context.Context, companyID int64, name string) (*Definition, error)
	List(ctx context.Context, companyID int64, activeOnly bool) ([]*Definition, error)
	SetActive(ctx context.Context, companyID int64, name string, active bool) (*Definition, error)
}
