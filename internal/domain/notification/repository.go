// internal/domain/notification/repository.go
package notification

import (
	"context"
	"errors"
)

var (
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrDuplicateNotification = errors.New("notification with this id already exists")
)

// Repository is the persisted inbox. Notifications are never deleted by the engine.
type Repository interface {
	Append(ctx context.Context, n *Notification) error
	// List returns the tenant's inbox, newest first.
	List(ctx context.Context, tenantID string) ([]*Notification, error)
	// MarkRead fails with ErrNotificationNotFound when id is not in tenantID's inbox.
	MarkRead(ctx context.Context, tenantID, id string) error
	// MarkAllRead returns how many notifications changed from unread to read.
	MarkAllRead(ctx context.Context, tenantID string) (int64, error)
	CountUnread(ctx context.Context, tenantID string) (int, error)
}
