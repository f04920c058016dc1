package memstore

import (
	"context"
	"sort"
	"sync"

	"rent_autopay/internal/domain/notification"
)

// InboxStore is an in-memory notification.Repository.
type InboxStore struct {
	mu    sync.Mutex
	items map[string]*notification.Notification
	// FailNext, when set, is returned (and cleared) by the next call.
	FailNext error
}

func NewInboxStore() *InboxStore {
	return &InboxStore{items: make(map[string]*notification.Notification)}
}

func (s *InboxStore) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

func (s *InboxStore) Append(ctx context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if _, ok := s.items[n.ID]; ok {
		return notification.ErrDuplicateNotification
	}
	s.items[n.ID] = n.Clone()
	return nil
}

func (s *InboxStore) List(ctx context.Context, tenantID string) ([]*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	var out []*notification.Notification
	for _, n := range s.items {
		if n.TenantID == tenantID {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *InboxStore) MarkRead(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	n, ok := s.items[id]
	if !ok || n.TenantID != tenantID {
		return notification.ErrNotificationNotFound
	}
	n.Read = true
	return nil
}

func (s *InboxStore) MarkAllRead(ctx context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return 0, err
	}
	var changed int64
	for _, n := range s.items {
		if n.TenantID == tenantID && !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed, nil
}

func (s *InboxStore) CountUnread(ctx context.Context, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return 0, err
	}
	count := 0
	for _, n := range s.items {
		if n.TenantID == tenantID && !n.Read {
			count++
		}
	}
	return count, nil
}
