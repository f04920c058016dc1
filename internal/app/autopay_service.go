// internal/app/autopay_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"rent_autopay/internal/domain/schedule"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EnableAutopayRequest configures monthly rent collection for one property.
type EnableAutopayRequest struct {
	TenantID    string
	PropertyID  string
	Amount      int64
	Method      schedule.PaymentMethod
	DayOfMonth  int
	PhoneNumber string
	Timezone    string
}

// SchedulePaymentRequest books a single future payment.
type SchedulePaymentRequest struct {
	TenantID    string
	PropertyID  string
	Amount      int64
	Method      schedule.PaymentMethod
	Date        time.Time
	PhoneNumber string
	Timezone    string
}

// AutopayService exposes the engine's operations to outer surfaces (HTTP, bot).
// All validation happens here, so monitors only ever see well-formed entries.
type AutopayService struct {
	repo            schedule.Repository
	processor       *PaymentProcessor
	clock           Clock
	defaultTimezone string
	logger          *logrus.Entry
}

func NewAutopayService(repo schedule.Repository, processor *PaymentProcessor, clock Clock, defaultTimezone string, logger *logrus.Entry) *AutopayService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AutopayService{
		repo:            repo,
		processor:       processor,
		clock:           clock,
		defaultTimezone: defaultTimezone,
		logger:          logger.WithField("component", "autopay_service"),
	}
}

func (s *AutopayService) resolveTimezone(tz string) (string, *time.Location, error) {
	if tz == "" {
		tz = s.defaultTimezone
	}
	if tz == "" {
		return "UTC", time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", nil, &schedule.ValidationError{Field: "timezone", Message: "unknown timezone " + tz}
	}
	return tz, loc, nil
}

// EnableAutopay creates the tenant's recurring entry for the property, or
// updates the existing one while its current occurrence has not started processing.
func (s *AutopayService) EnableAutopay(ctx context.Context, req EnableAutopayRequest) (*schedule.Entry, error) {
	if req.TenantID == "" {
		return nil, &schedule.ValidationError{Field: "tenant_id", Message: "is required"}
	}
	if err := schedule.ValidateDayOfMonth(req.DayOfMonth); err != nil {
		return nil, err
	}
	phone := req.PhoneNumber
	if err := schedule.ValidatePaymentDetails(req.Amount, req.Method, &phone); err != nil {
		return nil, err
	}
	tz, loc, err := s.resolveTimezone(req.Timezone)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	dueAt := schedule.NextOccurrence(now, req.DayOfMonth, loc)
	log := s.logger.WithFields(logrus.Fields{"tenant_id": req.TenantID, "property_id": req.PropertyID})

	existing, err := s.repo.GetRecurringByTenant(ctx, req.TenantID, req.PropertyID)
	switch {
	case err == nil:
		if !existing.Status.IsPending() {
			return nil, &schedule.ConflictError{ID: existing.ID, Status: existing.Status, Op: "update autopay for"}
		}
		if existing.DayOfMonth != req.DayOfMonth || existing.Timezone != tz {
			existing.DueAt = dueAt
			existing.ReminderSent = false
		}
		existing.Amount = req.Amount
		existing.Method = req.Method
		existing.PhoneNumber = phone
		existing.DayOfMonth = req.DayOfMonth
		existing.Timezone = tz
		existing.Enabled = true
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update autopay: %w", err)
		}
		log.WithField("entry_id", existing.ID).Info("Autopay settings updated")
		return existing, nil
	case !errors.Is(err, schedule.ErrEntryNotFound):
		return nil, fmt.Errorf("failed to check existing autopay: %w", err)
	}

	entry := &schedule.Entry{
		ID:          uuid.NewString(),
		Kind:        schedule.KindRecurring,
		TenantID:    req.TenantID,
		PropertyID:  req.PropertyID,
		Amount:      req.Amount,
		Method:      req.Method,
		PhoneNumber: phone,
		Timezone:    tz,
		DueAt:       dueAt,
		Status:      schedule.StatusScheduled,
		Enabled:     true,
		DayOfMonth:  req.DayOfMonth,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create autopay: %w", err)
	}
	log.WithFields(logrus.Fields{"entry_id": entry.ID, "next_due_at": dueAt.Format("2006-01-02")}).Info("Autopay enabled")
	return entry, nil
}

// DisableAutopay stops future ticks for the tenant's autopay. Attempt history is untouched.
func (s *AutopayService) DisableAutopay(ctx context.Context, tenantID, propertyID string) (*schedule.Entry, error) {
	entry, err := s.repo.GetRecurringByTenant(ctx, tenantID, propertyID)
	if err != nil {
		if errors.Is(err, schedule.ErrEntryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load autopay: %w", err)
	}
	if err := s.repo.SetEnabled(ctx, entry.ID, false); err != nil {
		return nil, fmt.Errorf("failed to disable autopay %s: %w", entry.ID, err)
	}
	entry.Enabled = false
	s.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "entry_id": entry.ID}).Info("Autopay disabled")
	return entry, nil
}

// SchedulePayment books a one-off payment for a calendar date (today or later).
func (s *AutopayService) SchedulePayment(ctx context.Context, req SchedulePaymentRequest) (*schedule.Entry, error) {
	if req.TenantID == "" {
		return nil, &schedule.ValidationError{Field: "tenant_id", Message: "is required"}
	}
	phone := req.PhoneNumber
	if err := schedule.ValidatePaymentDetails(req.Amount, req.Method, &phone); err != nil {
		return nil, err
	}
	tz, loc, err := s.resolveTimezone(req.Timezone)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := schedule.ValidateScheduledDate(req.Date, now, loc); err != nil {
		return nil, err
	}

	day := time.Date(req.Date.Year(), req.Date.Month(), req.Date.Day(), 0, 0, 0, 0, loc)
	entry := &schedule.Entry{
		ID:            uuid.NewString(),
		Kind:          schedule.KindOneOff,
		TenantID:      req.TenantID,
		PropertyID:    req.PropertyID,
		Amount:        req.Amount,
		Method:        req.Method,
		PhoneNumber:   phone,
		Timezone:      tz,
		DueAt:         day,
		ScheduledDate: day,
		Status:        schedule.StatusScheduled,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to schedule payment: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"tenant_id":      req.TenantID,
		"entry_id":       entry.ID,
		"scheduled_date": day.Format("2006-01-02"),
	}).Info("Payment scheduled")
	return entry, nil
}

// CancelScheduledPayment cancels a one-off payment that has not started processing.
// Once processing started it returns a *schedule.ConflictError.
func (s *AutopayService) CancelScheduledPayment(ctx context.Context, tenantID, id string) (*schedule.Entry, error) {
	entry, err := s.ownedEntry(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if entry.Kind != schedule.KindOneOff {
		return nil, &schedule.ConflictError{ID: id, Status: entry.Status, Op: "cancel recurring"}
	}

	swapped, err := s.repo.CompareAndSetStatus(ctx, id, schedule.PendingStatuses, schedule.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel entry %s: %w", id, err)
	}
	if !swapped {
		// Re-read so the conflict reports the status that won the race.
		if current, err := s.repo.GetByID(ctx, id); err == nil {
			entry = current
		}
		s.logger.WithFields(logrus.Fields{"entry_id": id, "status": entry.Status}).Warn("Cancellation rejected")
		return nil, &schedule.ConflictError{ID: id, Status: entry.Status, Op: "cancel"}
	}
	entry.Status = schedule.StatusCancelled
	s.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "entry_id": id}).Info("Scheduled payment cancelled")
	return entry, nil
}

// ProcessNow charges a pending entry immediately. It races safely with ticks:
// whichever claims the entry first charges it, the other is a no-op.
func (s *AutopayService) ProcessNow(ctx context.Context, tenantID, id string) (*Outcome, error) {
	entry, err := s.ownedEntry(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if entry.Kind == schedule.KindRecurring && !entry.Enabled {
		return nil, &schedule.ConflictError{ID: id, Status: entry.Status, Op: "process disabled autopay"}
	}
	return s.processor.ProcessAttempt(ctx, entry)
}

// Upcoming lists the tenant's live entries due within horizon, earliest first.
// Pending entries whose due day already passed are included: the next tick charges them.
func (s *AutopayService) Upcoming(ctx context.Context, tenantID string, horizon time.Duration) ([]*schedule.Entry, error) {
	entries, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for tenant %s: %w", tenantID, err)
	}
	until := s.clock.Now().Add(horizon)
	var out []*schedule.Entry
	for _, e := range entries {
		if !e.Active() || !e.Status.IsPending() || e.DueAt.After(until) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

// History returns the processed occurrences of an entry.
func (s *AutopayService) History(ctx context.Context, tenantID, id string) ([]*schedule.Attempt, error) {
	if _, err := s.ownedEntry(ctx, tenantID, id); err != nil {
		return nil, err
	}
	attempts, err := s.repo.ListAttempts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts for entry %s: %w", id, err)
	}
	return attempts, nil
}

// Entry returns one of the tenant's entries.
func (s *AutopayService) Entry(ctx context.Context, tenantID, id string) (*schedule.Entry, error) {
	return s.ownedEntry(ctx, tenantID, id)
}

func (s *AutopayService) ownedEntry(ctx context.Context, tenantID, id string) (*schedule.Entry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, schedule.ErrEntryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load entry %s: %w", id, err)
	}
	if entry.TenantID != tenantID {
		return nil, schedule.ErrEntryNotFound
	}
	return entry, nil
}
