// internal/domain/schedule/repository.go
package schedule

import (
	"context"
	"time"
)

// Repository persists schedule entries and their attempt history.
// Update is last-write-wins. Status-changing writes are conditional so that a
// tick and an external trigger racing on the same entry cannot both charge it.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id string) (*Entry, error)
	// Update overwrites the payment settings of an entry (amount, method, phone, day, due date).
	Update(ctx context.Context, e *Entry) error
	// CompareAndSetStatus moves the entry to `to` only if its current status is one of `from`.
	// It reports whether the swap happened.
	CompareAndSetStatus(ctx context.Context, id string, from []Status, to Status) (bool, error)
	// ClaimReminder sets ReminderSent and moves the status to `to`, only if the
	// occurrence is still pending and no reminder was sent yet.
	ClaimReminder(ctx context.Context, id string, to Status) (bool, error)
	// RecordOutcome stores status and outcome fields of a processed occurrence.
	RecordOutcome(ctx context.Context, e *Entry) error
	// Rearm starts the next occurrence of a recurring entry whose current one is completed or failed.
	Rearm(ctx context.Context, id string, dueAt time.Time) (bool, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error

	// ListActive returns entries of the given kind that ticks still need to look at.
	ListActive(ctx context.Context, kind Kind) ([]*Entry, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Entry, error)
	// GetRecurringByTenant returns the tenant's enabled autopay entry for the property.
	GetRecurringByTenant(ctx context.Context, tenantID, propertyID string) (*Entry, error)

	AppendAttempt(ctx context.Context, a *Attempt) error
	ListAttempts(ctx context.Context, entryID string) ([]*Attempt, error)
}
