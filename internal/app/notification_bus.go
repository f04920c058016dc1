// internal/app/notification_bus.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rent_autopay/internal/domain/notification"
	"rent_autopay/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// Handler receives every notification published after it subscribed.
type Handler func(ctx context.Context, n *notification.Notification) error

// Notifier is the publishing side of the bus, as seen by producers.
type Notifier interface {
	Notify(ctx context.Context, n *notification.Notification) error
}

type subscription struct {
	id      uint64
	handler Handler
}

// NotificationBus is the process-wide pub/sub plus the persisted inbox.
// Handlers run synchronously in registration order.
type NotificationBus struct {
	mu          sync.Mutex
	subscribers []subscription
	nextID      uint64

	inbox  notification.Repository
	alerts notification.AlertSink // nil disables alerts
	clock  Clock
	logger *logrus.Entry
}

func NewNotificationBus(inbox notification.Repository, alerts notification.AlertSink, clock Clock, logger *logrus.Entry) *NotificationBus {
	if clock == nil {
		clock = SystemClock{}
	}
	return &NotificationBus{
		inbox:  inbox,
		alerts: alerts,
		clock:  clock,
		logger: logger.WithField("component", "notification_bus"),
	}
}

// Subscribe registers h and returns a function that removes it. Calling the
// returned function more than once has no further effect.
func (b *NotificationBus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subscribers {
				if s.id == id {
					b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// Notify stamps n, appends it to the inbox, runs every subscriber and raises an
// alert when n requires one. A failing subscriber never stops the others; an
// inbox failure is returned after subscribers have run. A notification whose ID
// is already in the inbox was delivered before and is not dispatched again.
func (b *NotificationBus) Notify(ctx context.Context, n *notification.Notification) error {
	if n.ID == "" {
		n.ID = notification.NewID(notification.NamespaceEngine)
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = b.clock.Now()
	}
	if !n.Priority.IsValid() {
		n.Priority = notification.PriorityMedium
	}
	n.Read = false

	log := b.logger.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"type":            n.Type,
		"priority":        n.Priority,
		"tenant_id":       n.TenantID,
	})

	var appendErr error
	if err := b.inbox.Append(ctx, n); errors.Is(err, notification.ErrDuplicateNotification) {
		log.Warn("Notification already delivered, skipping dispatch")
		return fmt.Errorf("failed to append notification %s: %w", n.ID, err)
	} else if err != nil {
		log.WithError(err).Error("Failed to append notification to inbox")
		appendErr = fmt.Errorf("failed to append notification %s: %w", n.ID, err)
	}

	b.mu.Lock()
	subs := make([]subscription, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, s := range subs {
		b.dispatch(ctx, s, n, log)
	}
	metrics.NotificationsDispatched.WithLabelValues(string(n.Type), string(n.Priority)).Inc()

	if b.alerts != nil && n.RequiresAlert() {
		if err := b.alerts.Alert(ctx, n.Clone()); err != nil {
			log.WithError(err).Warn("Alert delivery failed")
		} else {
			log.Debug("Alert raised")
		}
	}

	return appendErr
}

func (b *NotificationBus) dispatch(ctx context.Context, s subscription, n *notification.Notification, log *logrus.Entry) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SubscriberErrors.Inc()
			log.WithField("subscriber", s.id).Errorf("Notification handler panicked: %v", r)
		}
	}()
	if err := s.handler(ctx, n.Clone()); err != nil {
		metrics.SubscriberErrors.Inc()
		log.WithField("subscriber", s.id).WithError(err).Warn("Notification handler failed")
	}
}

// Inbox returns the tenant's notifications, newest first.
func (b *NotificationBus) Inbox(ctx context.Context, tenantID string) ([]*notification.Notification, error) {
	items, err := b.inbox.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox for tenant %s: %w", tenantID, err)
	}
	return items, nil
}

// RefreshInbox merges a set fetched from another origin into the local inbox view.
func (b *NotificationBus) RefreshInbox(ctx context.Context, tenantID string, fetched []*notification.Notification) ([]*notification.Notification, error) {
	local, err := b.Inbox(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return notification.MergeInbox(fetched, local), nil
}

func (b *NotificationBus) MarkRead(ctx context.Context, tenantID, id string) error {
	if err := b.inbox.MarkRead(ctx, tenantID, id); err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	return nil
}

func (b *NotificationBus) MarkAllRead(ctx context.Context, tenantID string) (int64, error) {
	changed, err := b.inbox.MarkAllRead(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark inbox read for tenant %s: %w", tenantID, err)
	}
	b.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "changed": changed}).Info("Inbox marked as read")
	return changed, nil
}

func (b *NotificationBus) UnreadCount(ctx context.Context, tenantID string) (int, error) {
	count, err := b.inbox.CountUnread(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications for tenant %s: %w", tenantID, err)
	}
	return count, nil
}
