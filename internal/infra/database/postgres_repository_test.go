package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"rent_autopay/internal/domain/notification"
	"rent_autopay/internal/domain/schedule"

	"github.com/google/uuid"
)

// testDB connects to TEST_DATABASE_URL; the tests are skipped without it.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := NewPostgresConnection(dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	return db
}

func TestPostgresScheduleRepository(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewPostgresScheduleRepository(db)

	tenant := "tenant-" + uuid.NewString()
	due := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	entry := &schedule.Entry{
		ID: uuid.NewString(), Kind: schedule.KindRecurring, TenantID: tenant, PropertyID: "p1",
		Amount: 150000, Method: schedule.MethodMTNMoMo, PhoneNumber: "0241234567", Timezone: "UTC",
		DueAt: due, Status: schedule.StatusScheduled, Enabled: true, DayOfMonth: 10,
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetRecurringByTenant(ctx, tenant, "p1")
	if err != nil {
		t.Fatalf("GetRecurringByTenant failed: %v", err)
	}
	if got.ID != entry.ID || got.DayOfMonth != 10 || !got.DueAt.Equal(due) {
		t.Errorf("Unexpected entry %+v", got)
	}

	if ok, err := repo.ClaimReminder(ctx, entry.ID, schedule.StatusScheduled); err != nil || !ok {
		t.Fatalf("Expected reminder claim, got %v %v", ok, err)
	}
	if ok, _ := repo.ClaimReminder(ctx, entry.ID, schedule.StatusScheduled); ok {
		t.Error("Expected second reminder claim to fail")
	}

	if ok, err := repo.CompareAndSetStatus(ctx, entry.ID, schedule.PendingStatuses, schedule.StatusProcessing); err != nil || !ok {
		t.Fatalf("Expected CAS to win, got %v %v", ok, err)
	}
	if ok, _ := repo.CompareAndSetStatus(ctx, entry.ID, schedule.PendingStatuses, schedule.StatusProcessing); ok {
		t.Error("Expected second CAS to lose")
	}
	if _, err := repo.CompareAndSetStatus(ctx, uuid.NewString(), schedule.PendingStatuses, schedule.StatusProcessing); !errors.Is(err, schedule.ErrEntryNotFound) {
		t.Errorf("Expected not found for unknown entry, got %v", err)
	}

	processed := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	entry.Status = schedule.StatusCompleted
	entry.TransactionReference = "TXN-1"
	entry.ProcessedAt = &processed
	if err := repo.RecordOutcome(ctx, entry); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}
	if err := repo.AppendAttempt(ctx, &schedule.Attempt{
		ID: uuid.NewString(), EntryID: entry.ID, TenantID: tenant, DueAt: due, Amount: entry.Amount,
		Method: entry.Method, Status: schedule.StatusCompleted, TransactionReference: "TXN-1", AttemptedAt: processed,
	}); err != nil {
		t.Fatalf("AppendAttempt failed: %v", err)
	}

	next := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	if ok, err := repo.Rearm(ctx, entry.ID, next); err != nil || !ok {
		t.Fatalf("Expected rearm, got %v %v", ok, err)
	}
	got, _ = repo.GetByID(ctx, entry.ID)
	if got.Status != schedule.StatusScheduled || got.ReminderSent || !got.DueAt.Equal(next) || got.TransactionReference != "TXN-1" {
		t.Errorf("Unexpected re-armed entry %+v", got)
	}

	attempts, err := repo.ListAttempts(ctx, entry.ID)
	if err != nil || len(attempts) != 1 {
		t.Fatalf("Expected one attempt, got %d %v", len(attempts), err)
	}

	if err := repo.SetEnabled(ctx, entry.ID, false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	if _, err := repo.GetRecurringByTenant(ctx, tenant, "p1"); !errors.Is(err, schedule.ErrEntryNotFound) {
		t.Errorf("Expected disabled autopay to be hidden, got %v", err)
	}
}

func TestPostgresNotificationRepository(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewPostgresNotificationRepository(db)

	tenant := "tenant-" + uuid.NewString()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	older := &notification.Notification{
		ID: notification.NewID(notification.NamespaceEngine), TenantID: tenant,
		Type: notification.TypePaymentSuccess, Priority: notification.PriorityHigh, Title: "Paid",
		Timestamp: base, Data: map[string]any{"transaction_reference": "TXN-1"},
	}
	newer := &notification.Notification{
		ID: notification.NewID(notification.NamespaceEngine), TenantID: tenant,
		Type: notification.TypePaymentFailure, Priority: notification.PriorityUrgent, Title: "Failed",
		Timestamp: base.Add(time.Hour),
	}
	for _, n := range []*notification.Notification{older, newer} {
		if err := repo.Append(ctx, n); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := repo.Append(ctx, older); !errors.Is(err, notification.ErrDuplicateNotification) {
		t.Errorf("Expected duplicate error, got %v", err)
	}

	items, err := repo.List(ctx, tenant)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 || items[0].ID != newer.ID {
		t.Fatalf("Expected newest first, got %+v", items)
	}
	if items[1].Data["transaction_reference"] != "TXN-1" {
		t.Errorf("Expected data to round-trip, got %v", items[1].Data)
	}

	if err := repo.MarkRead(ctx, "tenant-"+uuid.NewString(), older.ID); !errors.Is(err, notification.ErrNotificationNotFound) {
		t.Errorf("Expected another tenant to get not found, got %v", err)
	}
	if err := repo.MarkRead(ctx, tenant, older.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if err := repo.MarkRead(ctx, tenant, "engine:"+uuid.NewString()); !errors.Is(err, notification.ErrNotificationNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
	if count, _ := repo.CountUnread(ctx, tenant); count != 1 {
		t.Errorf("Expected 1 unread, got %d", count)
	}
	if changed, _ := repo.MarkAllRead(ctx, tenant); changed != 1 {
		t.Errorf("Expected 1 changed, got %d", changed)
	}
}

func TestPostgresNotificationOrderingTiesByID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewPostgresNotificationRepository(db)

	tenant := "tenant-" + uuid.NewString()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for _, id := range []string{"engine:b", "engine:a"} {
		n := &notification.Notification{ID: id + "-" + tenant, TenantID: tenant, Type: notification.TypeAutopaySuccess, Priority: notification.PriorityLow, Timestamp: at}
		if err := repo.Append(ctx, n); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	items, err := repo.List(ctx, tenant)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 || items[0].ID != "engine:a-"+tenant {
		t.Errorf("Expected IDs ascending on equal timestamps, got %+v", items)
	}
}
