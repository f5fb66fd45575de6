// internal/domain/notification/repository.go
package notification

import "context"

// Repository defines persistence for notifications. Every method is company-scoped.
type Repository interface {
	// CreateIfNoneOpen inserts n unless an open notification exists for (client, topic).
	// It reports whether a row was inserted.
	CreateIfNoneOpen(ctx context.Context, n *Notification) (bool, error)
	GetByID(ctx context.Context, companyID, id int64) (*Notification, error)
	ListOpen(ctx context.Context, companyID, clientID int64) ([]*Notification, error)
	Update(ctx context.Context, n *Notification) error
}
