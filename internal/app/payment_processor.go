// internal/app/payment_processor.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rent_autopay/internal/domain/notification"
	"rent_autopay/internal/domain/payment"
	"rent_autopay/internal/domain/schedule"
	"rent_autopay/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Outcome describes what ProcessAttempt did with an entry.
type Outcome struct {
	EntryID string
	// Skipped is set when the entry was already past scheduled/reminded; nothing was charged.
	Skipped              bool
	Status               schedule.Status
	TransactionReference string
	Reason               string
	NotificationID       string
}

// ProcessorOptions tune the processor; zero values fall back to defaults.
type ProcessorOptions struct {
	GatewayTimeout   time.Duration
	ManualPaymentURL string
	Currency         string
}

// PaymentProcessor turns one due entry into a gateway call and an outcome notification.
// It is shared by both monitors and by manual "process now" requests.
type PaymentProcessor struct {
	repo     schedule.Repository
	gateway  payment.Gateway
	notifier Notifier
	clock    Clock
	opts     ProcessorOptions
	logger   *logrus.Entry
}

func NewPaymentProcessor(repo schedule.Repository, gateway payment.Gateway, notifier Notifier, clock Clock, opts ProcessorOptions, logger *logrus.Entry) *PaymentProcessor {
	if clock == nil {
		clock = SystemClock{}
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 30 * time.Second
	}
	if opts.ManualPaymentURL == "" {
		opts.ManualPaymentURL = "/payments/manual"
	}
	return &PaymentProcessor{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		clock:    clock,
		opts:     opts,
		logger:   logger.WithField("component", "payment_processor"),
	}
}

// ProcessAttempt charges the entry once. The caller has already decided the entry is due.
// The status moves to processing atomically before the gateway is called, so a
// concurrent or repeated call on the same occurrence is a no-op.
// Once the entry is claimed, the charge and the outcome writes no longer follow
// ctx cancellation: a claimed entry must not be left in processing.
func (p *PaymentProcessor) ProcessAttempt(ctx context.Context, entry *schedule.Entry) (*Outcome, error) {
	log := p.logger.WithFields(logrus.Fields{
		"entry_id":  entry.ID,
		"kind":      entry.Kind,
		"tenant_id": entry.TenantID,
		"due_at":    entry.DueAt.Format("2006-01-02"),
	})

	swapped, err := p.repo.CompareAndSetStatus(ctx, entry.ID, schedule.PendingStatuses, schedule.StatusProcessing)
	if err != nil {
		log.WithError(err).Error("Failed to claim entry for processing")
		return nil, fmt.Errorf("failed to claim entry %s: %w", entry.ID, err)
	}
	if !swapped {
		log.Info("Entry already picked up for this occurrence. Skipping.")
		metrics.PaymentAttempts.WithLabelValues(string(entry.Kind), "skipped").Inc()
		return &Outcome{EntryID: entry.ID, Skipped: true, Status: entry.Status}, nil
	}
	entry.Status = schedule.StatusProcessing
	ctx = context.WithoutCancel(ctx)

	chargeCtx, cancel := context.WithTimeout(ctx, p.opts.GatewayTimeout)
	defer cancel()
	result, chargeErr := p.gateway.Charge(chargeCtx, payment.ChargeRequest{
		Amount:         entry.Amount,
		Method:         entry.Method,
		PhoneNumber:    entry.PhoneNumber,
		IdempotencyKey: entry.ID + ":" + entry.DueAt.Format("2006-01-02"),
	})

	now := p.clock.Now()
	outcome := &Outcome{EntryID: entry.ID}
	switch {
	case chargeErr != nil:
		outcome.Status = schedule.StatusFailed
		outcome.Reason = chargeErr.Error()
		if errors.Is(chargeErr, context.DeadlineExceeded) {
			outcome.Reason = "payment gateway timed out"
		}
	case result == nil || !result.Success:
		outcome.Status = schedule.StatusFailed
		outcome.Reason = "payment was declined"
		if result != nil && result.Message != "" {
			outcome.Reason = result.Message
		}
	default:
		outcome.Status = schedule.StatusCompleted
		outcome.TransactionReference = result.TransactionReference
	}

	entry.Status = outcome.Status
	if outcome.Status == schedule.StatusCompleted {
		entry.TransactionReference = outcome.TransactionReference
		entry.ProcessedAt = &now
	} else {
		entry.FailureReason = outcome.Reason
		entry.FailedAt = &now
	}

	var persistErr error
	if err := p.repo.RecordOutcome(ctx, entry); err != nil {
		// The entry stays in processing in the store, which keeps it from being charged again.
		log.WithError(err).Error("Failed to persist payment outcome")
		persistErr = fmt.Errorf("failed to persist outcome for entry %s: %w", entry.ID, err)
	}
	attempt := &schedule.Attempt{
		ID:                   uuid.NewString(),
		EntryID:              entry.ID,
		TenantID:             entry.TenantID,
		DueAt:                entry.DueAt,
		Amount:               entry.Amount,
		Method:               entry.Method,
		Status:               outcome.Status,
		TransactionReference: outcome.TransactionReference,
		Reason:               outcome.Reason,
		AttemptedAt:          now,
	}
	if err := p.repo.AppendAttempt(ctx, attempt); err != nil {
		log.WithError(err).Warn("Failed to record payment attempt history")
	}

	n := p.outcomeNotification(entry, outcome, now)
	if err := p.notifier.Notify(ctx, n); err != nil {
		log.WithError(err).Warn("Outcome notification was not fully delivered")
	}
	outcome.NotificationID = n.ID

	metrics.PaymentAttempts.WithLabelValues(string(entry.Kind), string(outcome.Status)).Inc()
	if outcome.Status == schedule.StatusCompleted {
		log.WithField("transaction_reference", outcome.TransactionReference).Info("Payment completed")
	} else {
		log.WithField("reason", outcome.Reason).Warn("Payment failed")
	}
	return outcome, persistErr
}

func (p *PaymentProcessor) outcomeNotification(entry *schedule.Entry, outcome *Outcome, now time.Time) *notification.Notification {
	amount := schedule.FormatAmount(entry.Amount, p.opts.Currency)
	data := map[string]any{
		"entry_id":       entry.ID,
		"property_id":    entry.PropertyID,
		"amount":         entry.Amount,
		"payment_method": string(entry.Method),
		"due_date":       entry.DueAt.Format("2006-01-02"),
	}

	n := &notification.Notification{
		TenantID:  entry.TenantID,
		Timestamp: now,
		Data:      data,
	}
	recurring := entry.Kind == schedule.KindRecurring

	if outcome.Status == schedule.StatusCompleted {
		data["transaction_reference"] = outcome.TransactionReference
		n.Priority = notification.PriorityHigh
		if recurring {
			n.Type = notification.TypeAutopaySuccess
			n.Title = "Autopay successful"
			n.Message = fmt.Sprintf("Your automatic rent payment of %s was processed. Reference: %s.", amount, outcome.TransactionReference)
		} else {
			n.Type = notification.TypePaymentSuccess
			n.Title = "Scheduled payment successful"
			n.Message = fmt.Sprintf("Your scheduled rent payment of %s was processed. Reference: %s.", amount, outcome.TransactionReference)
		}
		return n
	}

	data["reason"] = outcome.Reason
	n.Priority = notification.PriorityUrgent
	n.ActionURL = fmt.Sprintf("%s?entry=%s", p.opts.ManualPaymentURL, entry.ID)
	n.ActionText = "Pay Now"
	if recurring {
		n.Type = notification.TypeAutopayFailure
		n.Title = "Autopay failed"
		n.Message = fmt.Sprintf("Your automatic rent payment of %s could not be processed: %s. Please pay manually.", amount, outcome.Reason)
	} else {
		n.Type = notification.TypePaymentFailure
		n.Title = "Scheduled payment failed"
		n.Message = fmt.Sprintf("Your scheduled rent payment of %s could not be processed: %s. Please pay manually.", amount, outcome.Reason)
	}
	return n
}
