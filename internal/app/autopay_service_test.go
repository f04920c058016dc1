package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"rent_autopay/internal/domain/schedule"
)

func TestEnableAutopayValidation(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 4, 1, 9))
	ctx := context.Background()

	valid := EnableAutopayRequest{TenantID: "t1", Amount: 1000, Method: schedule.MethodCard, DayOfMonth: 10}
	tests := []struct {
		name   string
		mutate func(r *EnableAutopayRequest)
		field  string
	}{
		{"missing tenant", func(r *EnableAutopayRequest) { r.TenantID = "" }, "tenant_id"},
		{"day out of range", func(r *EnableAutopayRequest) { r.DayOfMonth = 31 }, "day_of_month"},
		{"zero amount", func(r *EnableAutopayRequest) { r.Amount = 0 }, "amount"},
		{"momo without phone", func(r *EnableAutopayRequest) { r.Method = schedule.MethodMTNMoMo }, "phone_number"},
		{"unknown timezone", func(r *EnableAutopayRequest) { r.Timezone = "Mars/Olympus" }, "timezone"},
	}
	for _, tt := range tests {
		req := valid
		tt.mutate(&req)
		_, err := e.service.EnableAutopay(ctx, req)
		var verr *schedule.ValidationError
		if !errors.As(err, &verr) || verr.Field != tt.field {
			t.Errorf("%s: expected validation error on %s, got %v", tt.name, tt.field, err)
		}
	}
	if entries, _ := e.store.ListByTenant(ctx, "t1"); len(entries) != 0 {
		t.Errorf("Expected rejected requests to create nothing, got %d entries", len(entries))
	}
}

func TestEnableAutopayUpdatesExistingEntry(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 4, 1, 9))
	ctx := context.Background()

	first := enableAutopay(t, e, "t1", 10)
	second, err := e.service.EnableAutopay(ctx, EnableAutopayRequest{
		TenantID: "t1", PropertyID: "prop-1", Amount: 200000, Method: schedule.MethodCard, DayOfMonth: 15,
	})
	if err != nil {
		t.Fatalf("EnableAutopay update failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected the existing entry to be updated, got new id %s", second.ID)
	}
	stored := e.mustGet(t, first.ID)
	if stored.Amount != 200000 || stored.DayOfMonth != 15 || stored.PhoneNumber != "" {
		t.Errorf("Expected updated settings, got %+v", stored)
	}
	if !stored.DueAt.Equal(day(2025, 4, 15, 0)) {
		t.Errorf("Expected due date moved to 2025-04-15, got %s", stored.DueAt)
	}
}

func TestEnableAutopayRejectedWhileProcessing(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 4, 1, 9))
	ctx := context.Background()
	entry := enableAutopay(t, e, "t1", 10)
	if _, err := e.store.CompareAndSetStatus(ctx, entry.ID, schedule.PendingStatuses, schedule.StatusProcessing); err != nil {
		t.Fatalf("status swap failed: %v", err)
	}

	_, err := e.service.EnableAutopay(ctx, EnableAutopayRequest{
		TenantID: "t1", PropertyID: "prop-1", Amount: 1, Method: schedule.MethodCard, DayOfMonth: 12,
	})
	if !errors.Is(err, schedule.ErrConflict) {
		t.Fatalf("Expected conflict while processing, got %v", err)
	}
}

func TestCancelScheduledPayment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("pending payment is cancelled", func(t *testing.T) {
		e := newEngine(t, day(2025, 3, 8, 9))
		entry := schedulePayment(t, e, "t1", 2025, 3, 10)
		cancelled, err := e.service.CancelScheduledPayment(ctx, "t1", entry.ID)
		if err != nil {
			t.Fatalf("Cancel failed: %v", err)
		}
		if cancelled.Status != schedule.StatusCancelled || e.mustGet(t, entry.ID).Status != schedule.StatusCancelled {
			t.Error("Expected cancelled status")
		}
	})

	t.Run("processing payment conflicts", func(t *testing.T) {
		e := newEngine(t, day(2025, 3, 8, 9))
		entry := schedulePayment(t, e, "t1", 2025, 3, 10)
		if _, err := e.store.CompareAndSetStatus(ctx, entry.ID, schedule.PendingStatuses, schedule.StatusProcessing); err != nil {
			t.Fatalf("status swap failed: %v", err)
		}
		_, err := e.service.CancelScheduledPayment(ctx, "t1", entry.ID)
		var cerr *schedule.ConflictError
		if !errors.As(err, &cerr) || cerr.Status != schedule.StatusProcessing {
			t.Fatalf("Expected conflict reporting processing, got %v", err)
		}
	})

	t.Run("completed payment conflicts", func(t *testing.T) {
		e := newEngine(t, day(2025, 3, 10, 9))
		entry := schedulePayment(t, e, "t1", 2025, 3, 10)
		tick(t, e.scheduled)
		if _, err := e.service.CancelScheduledPayment(ctx, "t1", entry.ID); !errors.Is(err, schedule.ErrConflict) {
			t.Fatalf("Expected conflict after completion, got %v", err)
		}
	})

	t.Run("other tenant's payment is not found", func(t *testing.T) {
		e := newEngine(t, day(2025, 3, 8, 9))
		entry := schedulePayment(t, e, "t1", 2025, 3, 10)
		if _, err := e.service.CancelScheduledPayment(ctx, "t2", entry.ID); !errors.Is(err, schedule.ErrEntryNotFound) {
			t.Fatalf("Expected not found, got %v", err)
		}
	})

	t.Run("recurring entry cannot be cancelled", func(t *testing.T) {
		e := newEngine(t, day(2025, 3, 8, 9))
		entry := enableAutopay(t, e, "t1", 10)
		if _, err := e.service.CancelScheduledPayment(ctx, "t1", entry.ID); !errors.Is(err, schedule.ErrConflict) {
			t.Fatalf("Expected conflict for recurring entry, got %v", err)
		}
	})
}

func TestSchedulePaymentRejectsPastDate(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 3, 8, 9))
	_, err := e.service.SchedulePayment(context.Background(), SchedulePaymentRequest{
		TenantID: "t1", Amount: 1000, Method: schedule.MethodCard, Date: day(2025, 3, 7, 0),
	})
	if !errors.Is(err, schedule.ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

func TestUpcoming(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 3, 8, 9))
	ctx := context.Background()

	soon := schedulePayment(t, e, "t1", 2025, 3, 10)
	autopay := enableAutopay(t, e, "t1", 20)
	schedulePayment(t, e, "t1", 2025, 6, 1)
	cancelled := schedulePayment(t, e, "t1", 2025, 3, 12)
	schedulePayment(t, e, "t2", 2025, 3, 10)
	if _, err := e.service.CancelScheduledPayment(ctx, "t1", cancelled.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	got, err := e.service.Upcoming(ctx, "t1", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Upcoming failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != soon.ID || got[1].ID != autopay.ID {
		t.Fatalf("Expected [%s %s], got %+v", soon.ID, autopay.ID, got)
	}
}

func TestProcessNow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("early charge is not repeated on the due day", func(t *testing.T) {
		e := newEngine(t, day(2025, 3, 1, 9))
		entry := enableAutopay(t, e, "t1", 10)

		e.clock.Set(day(2025, 3, 5, 9))
		outcome, err := e.service.ProcessNow(ctx, "t1", entry.ID)
		if err != nil {
			t.Fatalf("ProcessNow failed: %v", err)
		}
		if outcome.Status != schedule.StatusCompleted {
			t.Fatalf("Expected completed outcome, got %+v", outcome)
		}

		tick(t, e.autopay)
		e.clock.Set(day(2025, 3, 10, 9))
		tick(t, e.autopay)

		if e.gateway.Calls() != 1 {
			t.Errorf("Expected a single charge for March, got %d", e.gateway.Calls())
		}
		if got := e.mustGet(t, entry.ID).DueAt; !got.Equal(day(2025, 4, 10, 0)) {
			t.Errorf("Expected next occurrence 2025-04-10, got %s", got)
		}
	})

	t.Run("disabled autopay conflicts", func(t *testing.T) {
		e := newEngine(t, day(2025, 3, 1, 9))
		entry := enableAutopay(t, e, "t1", 10)
		if _, err := e.service.DisableAutopay(ctx, "t1", "prop-1"); err != nil {
			t.Fatalf("DisableAutopay failed: %v", err)
		}
		if _, err := e.service.ProcessNow(ctx, "t1", entry.ID); !errors.Is(err, schedule.ErrConflict) {
			t.Fatalf("Expected conflict, got %v", err)
		}
	})

	t.Run("history lists attempts", func(t *testing.T) {
		e := newEngine(t, day(2025, 3, 10, 9))
		entry := schedulePayment(t, e, "t1", 2025, 3, 10)
		if _, err := e.service.ProcessNow(ctx, "t1", entry.ID); err != nil {
			t.Fatalf("ProcessNow failed: %v", err)
		}
		attempts, err := e.service.History(ctx, "t1", entry.ID)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(attempts) != 1 || attempts[0].TransactionReference != "TXN-1" {
			t.Errorf("Expected one attempt with TXN-1, got %+v", attempts)
		}
	})
}

func TestUpcomingIncludesOverdueEntries(t *testing.T) {
	t.Parallel()
	e := newEngine(t, day(2025, 3, 8, 9))
	ctx := context.Background()

	soon := schedulePayment(t, e, "t1", 2025, 3, 10)
	overdue := &schedule.Entry{
		ID: "late", Kind: schedule.KindRecurring, TenantID: "t1", Amount: 1000, Method: schedule.MethodCard,
		Timezone: "UTC", DueAt: day(2025, 3, 5, 0), Status: schedule.StatusScheduled, Enabled: true, DayOfMonth: 5,
	}
	if err := e.store.Create(ctx, overdue); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := e.service.Upcoming(ctx, "t1", 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Upcoming failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "late" || got[1].ID != soon.ID {
		t.Fatalf("Expected [late %s], got %+v", soon.ID, got)
	}
}
