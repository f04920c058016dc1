// internal/app/scheduled_monitor.go
package app

import (
	"context"
	"fmt"
	"time"

	"rent_autopay/internal/domain/notification"
	"rent_autopay/internal/domain/schedule"

	"github.com/sirupsen/logrus"
)

// ScheduledPaymentMonitor drives one-off entries: a reminder the day before and
// a payment attempt on the scheduled day. One-off entries are never re-armed.
type ScheduledPaymentMonitor struct {
	timedMonitor
	processor *PaymentProcessor
	notifier  Notifier
	currency  string
}

func NewScheduledPaymentMonitor(repo schedule.Repository, processor *PaymentProcessor, notifier Notifier, clock Clock, currency string, logger *logrus.Entry) *ScheduledPaymentMonitor {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ScheduledPaymentMonitor{
		timedMonitor: timedMonitor{
			name:     "scheduled_payments",
			kind:     schedule.KindOneOff,
			triggers: ScheduledPaymentTriggers,
			repo:     repo,
			clock:    clock,
			logger:   logger.WithField("component", "scheduled_payment_monitor"),
		},
		processor: processor,
		notifier:  notifier,
		currency:  currency,
	}
}

func (m *ScheduledPaymentMonitor) Name() string { return m.name }

// Tick scans every pending one-off entry once.
func (m *ScheduledPaymentMonitor) Tick(ctx context.Context) error {
	return m.scan(ctx, m.handleEntry)
}

func (m *ScheduledPaymentMonitor) handleEntry(ctx context.Context, e *schedule.Entry, now time.Time) error {
	if !e.Status.IsPending() {
		return nil
	}
	days, actions := m.firedActions(e, now)
	for _, action := range actions {
		switch action {
		case ActionRemind:
			if err := m.sendReminder(ctx, e, days); err != nil {
				return err
			}
		case ActionProcess:
			if _, err := m.processor.ProcessAttempt(ctx, e); err != nil {
				return err
			}
		}
	}
	return nil
}

// sendReminder persists the reminder flag before dispatching, so a second tick
// on the same day finds it set and stays quiet.
func (m *ScheduledPaymentMonitor) sendReminder(ctx context.Context, e *schedule.Entry, days int) error {
	claimed, err := m.repo.ClaimReminder(ctx, e.ID, schedule.StatusReminded)
	if err != nil {
		return fmt.Errorf("failed to record reminder for entry %s: %w", e.ID, err)
	}
	if !claimed {
		return nil
	}
	e.ReminderSent = true
	e.Status = schedule.StatusReminded

	amount := schedule.FormatAmount(e.Amount, m.currency)
	n := &notification.Notification{
		TenantID: e.TenantID,
		Type:     notification.TypeScheduledPaymentReminder,
		Priority: notification.PriorityMedium,
		Title:    "Scheduled payment tomorrow",
		Message: fmt.Sprintf("Your scheduled rent payment of %s will be processed tomorrow (%s) via %s.",
			amount, e.ScheduledDate.Format("2 January 2006"), e.Method),
		Data: map[string]any{
			"entry_id":       e.ID,
			"property_id":    e.PropertyID,
			"amount":         e.Amount,
			"payment_method": string(e.Method),
			"scheduled_date": e.ScheduledDate.Format("2006-01-02"),
			"days_until":     days,
		},
	}
	if err := m.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("failed to deliver reminder for entry %s: %w", e.ID, err)
	}
	m.logger.WithFields(logrus.Fields{"entry_id": e.ID, "scheduled_date": e.ScheduledDate.Format("2006-01-02")}).Info("Scheduled payment reminder sent")
	return nil
}
