// internal/domain/notification/shared_types.go
package notification

// Topic identifies the kind of anomaly, e.g. "alkalinity-high".
type Topic string

// Status represents the handling state of a notification.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)
