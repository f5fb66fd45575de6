// internal/infra/database/notification_repository.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"pool_maintenance_service/internal/domain/apperr"
	"pool_maintenance_service/internal/domain/notification"
)

var _ notification.Repository = (*NotificationRepository)(nil)

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, company_id, client_id, topic, subject, message, status, assignee,
       attachments, extra_service_value, created_at, resolved_at`

func scanNotification(row rowScanner) (*notification.Notification, error) {
	n := notification.Notification{}
	var attachments string
	err := row.Scan(&n.ID, &n.CompanyID, &n.ClientID, &n.Topic, &n.Subject, &n.Message, &n.Status, &n.Assignee,
		&attachments, &n.ExtraServiceValue, &n.CreatedAt, &n.ResolvedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attachments), &n.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments of notification %d: %w", n.ID, err)
	}
	return &n, nil
}

func encodeAttachments(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode attachments: %w", err)
	}
	return string(data), nil
}

// CreateIfNoneOpen relies on the notifications_one_open partial index, so concurrent
// triggers for the same (client, topic) insert at most one open row.
func (r *NotificationRepository) CreateIfNoneOpen(ctx context.Context, n *notification.Notification) (bool, error) {
	attachments, err := encodeAttachments(n.Attachments)
	if err != nil {
		return false, err
	}
	query := `INSERT INTO notifications (company_id, client_id, topic, subject, message, status, assignee,
               attachments, extra_service_value, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
               ON CONFLICT DO NOTHING
               RETURNING id`
	err = r.db.QueryRowContext(ctx, query, n.CompanyID, n.ClientID, n.Topic, n.Subject, n.Message, n.Status, n.Assignee,
		attachments, n.ExtraServiceValue, n.CreatedAt).Scan(&n.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("error creating notification: %w", err)
	}
	return true, nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, companyID, id int64) (*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1 AND company_id = $2`
	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id, companyID))
	if err != nil {
		return nil, notFound(err, "notification", "error getting notification %d", id)
	}
	return n, nil
}

// ListOpen returns unresolved notifications; clientID 0 lists the whole company.
func (r *NotificationRepository) ListOpen(ctx context.Context, companyID, clientID int64) ([]*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE company_id = $1 AND status <> $2`
	args := []any{companyID, notification.StatusResolved}
	if clientID != 0 {
		query += ` AND client_id = $3`
		args = append(args, clientID)
	}
	query += ` ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying open notifications: %w", err)
	}
	defer rows.Close()

	list := make([]*notification.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification row: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return list, nil
}

func (r *NotificationRepository) Update(ctx context.Context, n *notification.Notification) error {
	attachments, err := encodeAttachments(n.Attachments)
	if err != nil {
		return err
	}
	query := `UPDATE notifications
               SET status = $1, assignee = $2, attachments = $3, extra_service_value = $4, resolved_at = $5
               WHERE id = $6 AND company_id = $7`
	res, err := r.db.ExecContext(ctx, query, n.Status, n.Assignee, attachments, n.ExtraServiceValue, n.ResolvedAt, n.ID, n.CompanyID)
	if err != nil {
		return fmt.Errorf("error updating notification %d: %w", n.ID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: notification %d", apperr.ErrNotFound, n.ID)
	}
	return nil
}
