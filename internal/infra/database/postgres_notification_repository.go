// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"rent_autopay/internal/domain/notification"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Append(ctx context.Context, n *notification.Notification) error {
	var data []byte
	if len(n.Data) > 0 {
		var err error
		data, err = json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("error encoding notification data: %w", err)
		}
	}
	query := `INSERT INTO notifications (id, tenant_id, type, title, message, priority, created_at, is_read, action_url, action_text, data)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.TenantID, n.Type, n.Title, n.Message, n.Priority, n.Timestamp, n.Read, n.ActionURL, n.ActionText, data)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return notification.ErrDuplicateNotification
		}
		return fmt.Errorf("error appending notification: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) List(ctx context.Context, tenantID string) ([]*notification.Notification, error) {
	query := `SELECT id, tenant_id, type, title, message, priority, created_at, is_read, action_url, action_text, data
               FROM notifications WHERE tenant_id = $1 ORDER BY created_at DESC, id COLLATE "C" ASC`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("error listing notifications: %w", err)
	}
	defer rows.Close()

	list := make([]*notification.Notification, 0)
	for rows.Next() {
		n := &notification.Notification{}
		var data []byte
		if err := rows.Scan(&n.ID, &n.TenantID, &n.Type, &n.Title, &n.Message, &n.Priority, &n.Timestamp,
			&n.Read, &n.ActionURL, &n.ActionText, &data); err != nil {
			return nil, fmt.Errorf("error scanning notification: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, fmt.Errorf("error decoding data of notification %s: %w", n.ID, err)
			}
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return list, nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, tenantID, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("error marking notification %s read: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return notification.ErrNotificationNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, tenantID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE tenant_id = $1 AND is_read = FALSE`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("error marking notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading affected rows: %w", err)
	}
	return n, nil
}

func (r *PostgresNotificationRepository) CountUnread(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE tenant_id = $1 AND is_read = FALSE`, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting unread notifications: %w", err)
	}
	return count, nil
}
