// internal/infra/memstore/schedule_store.go
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"rent_autopay/internal/domain/schedule"
)

// ScheduleStore is an in-memory schedule.Repository. It hands out copies so
// callers cannot mutate stored state without going through Update.
type ScheduleStore struct {
	mu       sync.Mutex
	entries  map[string]*schedule.Entry
	attempts map[string][]*schedule.Attempt
	// FailNext, when set, is returned (and cleared) by the next call.
	FailNext error
}

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{
		entries:  make(map[string]*schedule.Entry),
		attempts: make(map[string][]*schedule.Attempt),
	}
}

func (s *ScheduleStore) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

func (s *ScheduleStore) Create(ctx context.Context, e *schedule.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	s.entries[e.ID] = e.Clone()
	return nil
}

func (s *ScheduleStore) GetByID(ctx context.Context, id string) (*schedule.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	e, ok := s.entries[id]
	if !ok {
		return nil, schedule.ErrEntryNotFound
	}
	return e.Clone(), nil
}

func (s *ScheduleStore) Update(ctx context.Context, e *schedule.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	stored, ok := s.entries[e.ID]
	if !ok {
		return schedule.ErrEntryNotFound
	}
	stored.Amount = e.Amount
	stored.Method = e.Method
	stored.PhoneNumber = e.PhoneNumber
	stored.Timezone = e.Timezone
	stored.DayOfMonth = e.DayOfMonth
	stored.DueAt = e.DueAt
	stored.ReminderSent = e.ReminderSent
	stored.Enabled = e.Enabled
	stored.UpdatedAt = time.Now()
	e.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *ScheduleStore) CompareAndSetStatus(ctx context.Context, id string, from []schedule.Status, to schedule.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return false, err
	}
	e, ok := s.entries[id]
	if !ok {
		return false, schedule.ErrEntryNotFound
	}
	if !slices.Contains(from, e.Status) {
		return false, nil
	}
	e.Status = to
	e.UpdatedAt = time.Now()
	return true, nil
}

func (s *ScheduleStore) ClaimReminder(ctx context.Context, id string, to schedule.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return false, err
	}
	e, ok := s.entries[id]
	if !ok {
		return false, schedule.ErrEntryNotFound
	}
	if e.ReminderSent || !e.Status.IsPending() {
		return false, nil
	}
	e.ReminderSent = true
	e.Status = to
	e.UpdatedAt = time.Now()
	return true, nil
}

func (s *ScheduleStore) RecordOutcome(ctx context.Context, in *schedule.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	e, ok := s.entries[in.ID]
	if !ok {
		return schedule.ErrEntryNotFound
	}
	c := in.Clone()
	e.Status = c.Status
	e.TransactionReference = c.TransactionReference
	e.ProcessedAt = c.ProcessedAt
	e.FailureReason = c.FailureReason
	e.FailedAt = c.FailedAt
	e.UpdatedAt = time.Now()
	return nil
}

func (s *ScheduleStore) Rearm(ctx context.Context, id string, dueAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return false, err
	}
	e, ok := s.entries[id]
	if !ok {
		return false, schedule.ErrEntryNotFound
	}
	if e.Kind != schedule.KindRecurring || (e.Status != schedule.StatusCompleted && e.Status != schedule.StatusFailed) {
		return false, nil
	}
	e.DueAt = dueAt
	e.Status = schedule.StatusScheduled
	e.ReminderSent = false
	e.UpdatedAt = time.Now()
	return true, nil
}

func (s *ScheduleStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	e, ok := s.entries[id]
	if !ok {
		return schedule.ErrEntryNotFound
	}
	e.Enabled = enabled
	e.UpdatedAt = time.Now()
	return nil
}

func (s *ScheduleStore) ListActive(ctx context.Context, kind schedule.Kind) ([]*schedule.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	var out []*schedule.Entry
	for _, e := range s.entries {
		if e.Kind == kind && e.Active() {
			out = append(out, e.Clone())
		}
	}
	sortByDue(out)
	return out, nil
}

func (s *ScheduleStore) ListByTenant(ctx context.Context, tenantID string) ([]*schedule.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	var out []*schedule.Entry
	for _, e := range s.entries {
		if e.TenantID == tenantID {
			out = append(out, e.Clone())
		}
	}
	sortByDue(out)
	return out, nil
}

func (s *ScheduleStore) GetRecurringByTenant(ctx context.Context, tenantID, propertyID string) (*schedule.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	for _, e := range s.entries {
		if e.Kind == schedule.KindRecurring && e.Enabled && e.TenantID == tenantID && e.PropertyID == propertyID {
			return e.Clone(), nil
		}
	}
	return nil, schedule.ErrEntryNotFound
}

func (s *ScheduleStore) AppendAttempt(ctx context.Context, a *schedule.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	c := *a
	s.attempts[a.EntryID] = append(s.attempts[a.EntryID], &c)
	return nil
}

func (s *ScheduleStore) ListAttempts(ctx context.Context, entryID string) ([]*schedule.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	out := make([]*schedule.Attempt, 0, len(s.attempts[entryID]))
	for _, a := range s.attempts[entryID] {
		c := *a
		out = append(out, &c)
	}
	return out, nil
}

func sortByDue(entries []*schedule.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].DueAt.Equal(entries[j].DueAt) {
			return entries[i].DueAt.Before(entries[j].DueAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
