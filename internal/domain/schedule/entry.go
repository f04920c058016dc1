// internal/domain/schedule/entry.go
package schedule

import (
	"time"
)

// Entry is a recurring (autopay) or one-off future rent payment tracked by the engine.
// Recurring entries re-arm after every occurrence; one-off entries never do.
type Entry struct {
	ID         string
	Kind       Kind
	TenantID   string
	PropertyID string
	Amount     int64 // minor units
	Method     PaymentMethod
	// PhoneNumber is only set for mobile money methods.
	PhoneNumber string
	Timezone    string
	// DueAt is midnight of the due day in Timezone.
	DueAt        time.Time
	Status       Status
	ReminderSent bool // reminder (one-off) or confirmation (recurring) for the current occurrence

	// Recurring only.
	Enabled    bool
	DayOfMonth int

	// One-off only, immutable after creation.
	ScheduledDate time.Time

	// Outcome of the most recent processed occurrence.
	TransactionReference string
	ProcessedAt          *time.Time
	FailureReason        string
	FailedAt             *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location resolves the entry timezone, falling back to UTC for unknown names.
func (e *Entry) Location() *time.Location {
	if e.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Active reports whether ticks should still look at the entry.
func (e *Entry) Active() bool {
	if e.Kind == KindRecurring {
		return e.Enabled && e.Status != StatusCancelled
	}
	return !e.Status.IsTerminal()
}

// Clone returns a copy that shares no pointers with e.
func (e *Entry) Clone() *Entry {
	c := *e
	if e.ProcessedAt != nil {
		t := *e.ProcessedAt
		c.ProcessedAt = &t
	}
	if e.FailedAt != nil {
		t := *e.FailedAt
		c.FailedAt = &t
	}
	return &c
}

// Attempt records the outcome of one processed occurrence. Attempts are append-only.
type Attempt struct {
	ID                   string
	EntryID              string
	TenantID             string
	DueAt                time.Time
	Amount               int64
	Method               PaymentMethod
	Status               Status // StatusCompleted or StatusFailed
	TransactionReference string
	Reason               string
	AttemptedAt          time.Time
}
