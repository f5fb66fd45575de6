// internal/domain/notification/notification.go
package notification

import (
	"database/sql"
	"time"
)

// Notification is an anomaly alert raised for a client.
// Corresponds to the 'notifications' table; at most one open notification per (company, client, topic).
type Notification struct {
	ID                int64
	CompanyID         int64
	ClientID          int64
	Topic             Topic
	Subject           string
	Message           string
	Status            Status
	Assignee          sql.NullString
	Attachments       []string // references only, storage is external
	ExtraServiceValue sql.NullFloat64
	CreatedAt         time.Time
	ResolvedAt        sql.NullTime
}

// IsOpen reports whether the notification still blocks a new one for the same topic.
func (n *Notification) IsOpen() bool {
	return n.Status != StatusResolved
}
