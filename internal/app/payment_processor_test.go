package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"rent_autopay/internal/domain/notification"
	"rent_autopay/internal/domain/schedule"
	"rent_autopay/internal/infra/memstore"
)

func seedOneOff(t *testing.T, e *engine, id string, due time.Time) *schedule.Entry {
	t.Helper()
	entry := &schedule.Entry{
		ID:            id,
		Kind:          schedule.KindOneOff,
		TenantID:      "tenant-1",
		PropertyID:    "prop-1",
		Amount:        50000,
		Method:        schedule.MethodMTNMoMo,
		PhoneNumber:   "+233241234567",
		Timezone:      "UTC",
		DueAt:         due,
		ScheduledDate: due,
		Status:        schedule.StatusScheduled,
	}
	if err := e.store.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return entry
}

func TestProcessAttemptSuccess(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 3, 10, 9))
	entry := seedOneOff(t, e, "e1", day(2025, 3, 10, 0))

	outcome, err := e.processor.ProcessAttempt(context.Background(), entry)
	if err != nil {
		t.Fatalf("ProcessAttempt failed: %v", err)
	}
	if outcome.Skipped || outcome.Status != schedule.StatusCompleted || outcome.TransactionReference != "TXN-1" {
		t.Fatalf("Unexpected outcome %+v", outcome)
	}

	stored := e.mustGet(t, "e1")
	if stored.Status != schedule.StatusCompleted || stored.TransactionReference != "TXN-1" || stored.ProcessedAt == nil {
		t.Errorf("Expected completed entry with reference, got %+v", stored)
	}

	success := e.events.OfType(notification.TypePaymentSuccess)
	if len(success) != 1 {
		t.Fatalf("Expected one payment_success notification, got %d", len(success))
	}
	if success[0].Priority != notification.PriorityHigh {
		t.Errorf("Expected high priority, got %s", success[0].Priority)
	}
	if !strings.Contains(success[0].Message, "GHS 500.00") || !strings.Contains(success[0].Message, "TXN-1") {
		t.Errorf("Expected amount and reference in message, got %q", success[0].Message)
	}

	attempts, _ := e.store.ListAttempts(context.Background(), "e1")
	if len(attempts) != 1 || attempts[0].Status != schedule.StatusCompleted {
		t.Errorf("Expected one completed attempt in history, got %+v", attempts)
	}
}

func TestProcessAttemptDeclined(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 3, 10, 9))
	e.gateway.decline = "insufficient funds"
	entry := seedOneOff(t, e, "e1", day(2025, 3, 10, 0))

	outcome, err := e.processor.ProcessAttempt(context.Background(), entry)
	if err != nil {
		t.Fatalf("ProcessAttempt failed: %v", err)
	}
	if outcome.Status != schedule.StatusFailed || outcome.Reason != "insufficient funds" {
		t.Fatalf("Unexpected outcome %+v", outcome)
	}

	stored := e.mustGet(t, "e1")
	if stored.Status != schedule.StatusFailed || stored.FailureReason != "insufficient funds" || stored.FailedAt == nil {
		t.Errorf("Expected failed entry with reason, got %+v", stored)
	}

	failures := e.events.OfType(notification.TypePaymentFailure)
	if len(failures) != 1 {
		t.Fatalf("Expected one payment_failure notification, got %d", len(failures))
	}
	n := failures[0]
	if n.Priority != notification.PriorityUrgent {
		t.Errorf("Expected urgent priority, got %s", n.Priority)
	}
	if n.ActionURL != "/payments/manual?entry=e1" || n.ActionText != "Pay Now" {
		t.Errorf("Expected manual payment action, got %q / %q", n.ActionURL, n.ActionText)
	}
	if n.Data["reason"] != "insufficient funds" {
		t.Errorf("Expected reason in data, got %v", n.Data["reason"])
	}
}

func TestProcessAttemptGatewayTimeout(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 3, 10, 9))
	e.gateway.blockFor = time.Minute
	e.processor.opts.GatewayTimeout = 10 * time.Millisecond
	entry := seedOneOff(t, e, "e1", day(2025, 3, 10, 0))

	outcome, err := e.processor.ProcessAttempt(context.Background(), entry)
	if err != nil {
		t.Fatalf("ProcessAttempt failed: %v", err)
	}
	if outcome.Status != schedule.StatusFailed || outcome.Reason != "payment gateway timed out" {
		t.Errorf("Expected timeout failure, got %+v", outcome)
	}
}

func TestProcessAttemptGatewayError(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 3, 10, 9))
	e.gateway.err = errors.New("connection reset")
	entry := seedOneOff(t, e, "e1", day(2025, 3, 10, 0))

	outcome, err := e.processor.ProcessAttempt(context.Background(), entry)
	if err != nil {
		t.Fatalf("ProcessAttempt failed: %v", err)
	}
	if outcome.Status != schedule.StatusFailed || outcome.Reason != "connection reset" {
		t.Errorf("Expected gateway error as failure, got %+v", outcome)
	}
}

func TestProcessAttemptIsIdempotent(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 3, 10, 9))
	entry := seedOneOff(t, e, "e1", day(2025, 3, 10, 0))

	if _, err := e.processor.ProcessAttempt(context.Background(), entry.Clone()); err != nil {
		t.Fatalf("first ProcessAttempt failed: %v", err)
	}
	outcome, err := e.processor.ProcessAttempt(context.Background(), entry.Clone())
	if err != nil {
		t.Fatalf("second ProcessAttempt failed: %v", err)
	}
	if !outcome.Skipped {
		t.Error("Expected the second attempt to be skipped")
	}
	if e.gateway.Calls() != 1 {
		t.Errorf("Expected one gateway call, got %d", e.gateway.Calls())
	}
	if e.events.Len() != 1 {
		t.Errorf("Expected one notification, got %d", e.events.Len())
	}
}

func TestConcurrentProcessAttemptsChargeOnce(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 3, 10, 9))
	entry := seedOneOff(t, e, "e1", day(2025, 3, 10, 0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.processor.ProcessAttempt(context.Background(), entry.Clone())
		}()
	}
	wg.Wait()

	if e.gateway.Calls() != 1 {
		t.Errorf("Expected exactly one gateway call, got %d", e.gateway.Calls())
	}
}

func TestProcessAttemptCancelledEntryIsSkipped(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 3, 10, 9))
	entry := seedOneOff(t, e, "e1", day(2025, 3, 10, 0))
	if _, err := e.store.CompareAndSetStatus(context.Background(), "e1", schedule.PendingStatuses, schedule.StatusCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	outcome, err := e.processor.ProcessAttempt(context.Background(), entry)
	if err != nil {
		t.Fatalf("ProcessAttempt failed: %v", err)
	}
	if !outcome.Skipped || e.gateway.Calls() != 0 {
		t.Errorf("Expected cancelled entry to be skipped without charging, got %+v and %d calls", outcome, e.gateway.Calls())
	}
}

func TestProcessAttemptRecurringUsesAutopayTypes(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 3, 10, 9))
	entry := &schedule.Entry{
		ID: "r1", Kind: schedule.KindRecurring, TenantID: "tenant-1", Amount: 120000,
		Method: schedule.MethodCard, Timezone: "UTC", DueAt: day(2025, 3, 10, 0),
		Status: schedule.StatusScheduled, Enabled: true, DayOfMonth: 10,
	}
	if err := e.store.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	e.gateway.decline = "card expired"

	if _, err := e.processor.ProcessAttempt(context.Background(), entry); err != nil {
		t.Fatalf("ProcessAttempt failed: %v", err)
	}
	if len(e.events.OfType(notification.TypeAutopayFailure)) != 1 {
		t.Error("Expected an autopay_failure notification for a recurring entry")
	}
}

func TestProcessAttemptClaimFailureIsReturned(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 3, 10, 9))
	entry := seedOneOff(t, e, "e1", day(2025, 3, 10, 0))
	boom := errors.New("db down")
	e.store.FailNext = boom

	if _, err := e.processor.ProcessAttempt(context.Background(), entry); !errors.Is(err, boom) {
		t.Fatalf("Expected claim error, got %v", err)
	}
	if e.gateway.Calls() != 0 {
		t.Error("Expected no gateway call when the claim fails")
	}
}

// deadlineStore fails writes whose context is already done, like a database driver would.
type deadlineStore struct {
	*memstore.ScheduleStore
}

func (s deadlineStore) RecordOutcome(ctx context.Context, e *schedule.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.ScheduleStore.RecordOutcome(ctx, e)
}

func (s deadlineStore) AppendAttempt(ctx context.Context, a *schedule.Attempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.ScheduleStore.AppendAttempt(ctx, a)
}

func (s deadlineStore) Rearm(ctx context.Context, id string, dueAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.ScheduleStore.Rearm(ctx, id, dueAt)
}

func TestProcessAttemptSettlesAfterCallerCancels(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 3, 10, 9))
	entry := seedOneOff(t, e, "e1", day(2025, 3, 10, 0))
	processor := NewPaymentProcessor(deadlineStore{e.store}, e.gateway, e.bus, e.clock, ProcessorOptions{Currency: "GHS"}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.gateway.onCharge = cancel

	outcome, err := processor.ProcessAttempt(ctx, entry)
	if err != nil {
		t.Fatalf("ProcessAttempt failed: %v", err)
	}
	if outcome.Status != schedule.StatusCompleted {
		t.Fatalf("Expected a client hang-up not to turn into a failed charge, got %+v", outcome)
	}
	if got := e.mustGet(t, "e1").Status; got != schedule.StatusCompleted {
		t.Errorf("Expected completed entry, got %s", got)
	}
	if attempts, _ := e.store.ListAttempts(context.Background(), "e1"); len(attempts) != 1 {
		t.Errorf("Expected the attempt to be recorded, got %d", len(attempts))
	}
	if count, _ := e.bus.UnreadCount(context.Background(), "tenant-1"); count != 1 {
		t.Errorf("Expected the success notification in the inbox, got %d", count)
	}
}

func TestAutopayTickTimeoutDuringChargeStillAdvances(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 4, 1, 9))
	entry := enableAutopay(t, e, "tenant-1", 5)
	e.clock.Set(day(2025, 4, 5, 9))
	e.gateway.blockFor = 60 * time.Millisecond

	store := deadlineStore{e.store}
	processor := NewPaymentProcessor(store, e.gateway, e.bus, e.clock, ProcessorOptions{Currency: "GHS"}, testLogger())
	monitor := NewAutopayMonitor(store, processor, e.bus, e.clock, "GHS", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := monitor.Tick(ctx); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	stored := e.mustGet(t, entry.ID)
	if stored.Status != schedule.StatusScheduled || !stored.DueAt.Equal(day(2025, 5, 5, 0)) {
		t.Errorf("Expected entry advanced to 2025-05-05, got %s due %s", stored.Status, stored.DueAt)
	}
	if stored.TransactionReference != "TXN-1" {
		t.Errorf("Expected the charge to be recorded, got %q", stored.TransactionReference)
	}
	if len(e.events.OfType(notification.TypeAutopaySuccess)) != 1 {
		t.Error("Expected an autopay_success notification")
	}
}
