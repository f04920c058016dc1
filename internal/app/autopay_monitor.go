// internal/app/autopay_monitor.go
package app

import (
	"context"
	"fmt"
	"time"

	"rent_autopay/internal/domain/notification"
	"rent_autopay/internal/domain/schedule"

	"github.com/sirupsen/logrus"
)

// AutopayMonitor drives recurring entries: a confirmation three days before the
// due day, a payment attempt on the due day, then the move to the next month.
type AutopayMonitor struct {
	timedMonitor
	processor *PaymentProcessor
	notifier  Notifier
	currency  string
}

func NewAutopayMonitor(repo schedule.Repository, processor *PaymentProcessor, notifier Notifier, clock Clock, currency string, logger *logrus.Entry) *AutopayMonitor {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AutopayMonitor{
		timedMonitor: timedMonitor{
			name:     "autopay",
			kind:     schedule.KindRecurring,
			triggers: AutopayTriggers,
			repo:     repo,
			clock:    clock,
			logger:   logger.WithField("component", "autopay_monitor"),
		},
		processor: processor,
		notifier:  notifier,
		currency:  currency,
	}
}

func (m *AutopayMonitor) Name() string { return m.name }

// Tick scans every enabled recurring entry once.
func (m *AutopayMonitor) Tick(ctx context.Context) error {
	return m.scan(ctx, m.handleEntry)
}

func (m *AutopayMonitor) handleEntry(ctx context.Context, e *schedule.Entry, now time.Time) error {
	switch e.Status {
	case schedule.StatusCompleted, schedule.StatusFailed:
		// The previous tick processed the occurrence but did not get to advance it.
		return m.advance(ctx, e, now)
	case schedule.StatusProcessing, schedule.StatusCancelled:
		return nil
	}

	days, actions := m.firedActions(e, now)
	for _, action := range actions {
		switch action {
		case ActionConfirm:
			if err := m.sendConfirmation(ctx, e, days); err != nil {
				return err
			}
		case ActionProcess:
			outcome, err := m.processor.ProcessAttempt(ctx, e)
			if err != nil {
				return err
			}
			if outcome.Skipped {
				return nil
			}
			// The occurrence is settled; finish it even if the tick ran out of time.
			return m.advance(context.WithoutCancel(ctx), e, now)
		}
	}
	return nil
}

func (m *AutopayMonitor) sendConfirmation(ctx context.Context, e *schedule.Entry, days int) error {
	claimed, err := m.repo.ClaimReminder(ctx, e.ID, e.Status)
	if err != nil {
		return fmt.Errorf("failed to record confirmation for entry %s: %w", e.ID, err)
	}
	if !claimed {
		return nil
	}
	e.ReminderSent = true

	amount := schedule.FormatAmount(e.Amount, m.currency)
	n := &notification.Notification{
		TenantID: e.TenantID,
		Type:     notification.TypeAutopayConfirmation,
		Priority: notification.PriorityMedium,
		Title:    "Upcoming automatic rent payment",
		Message: fmt.Sprintf("Your rent of %s will be charged automatically on %s via %s.",
			amount, e.DueAt.Format("2 January 2006"), e.Method),
		Data: map[string]any{
			"entry_id":       e.ID,
			"property_id":    e.PropertyID,
			"amount":         e.Amount,
			"payment_method": string(e.Method),
			"due_date":       e.DueAt.Format("2006-01-02"),
			"days_until_due": days,
		},
	}
	if err := m.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("failed to deliver autopay confirmation for entry %s: %w", e.ID, err)
	}
	m.logger.WithFields(logrus.Fields{"entry_id": e.ID, "due_at": e.DueAt.Format("2006-01-02")}).Info("Autopay confirmation sent")
	return nil
}

// advance re-arms the entry for the next calendar date matching its day of month.
// An occurrence charged early (manual "process now") counts from its due day, not from today.
func (m *AutopayMonitor) advance(ctx context.Context, e *schedule.Entry, now time.Time) error {
	base := now
	if e.DueAt.After(now) {
		base = e.DueAt
	}
	next := schedule.NextOccurrence(base, e.DayOfMonth, e.Location())
	rearmed, err := m.repo.Rearm(ctx, e.ID, next)
	if err != nil {
		return fmt.Errorf("failed to advance entry %s to %s: %w", e.ID, next.Format("2006-01-02"), err)
	}
	if !rearmed {
		return nil
	}
	e.DueAt = next
	e.Status = schedule.StatusScheduled
	e.ReminderSent = false
	m.logger.WithFields(logrus.Fields{"entry_id": e.ID, "next_due_at": next.Format("2006-01-02")}).Info("Autopay advanced to next occurrence")
	return nil
}
