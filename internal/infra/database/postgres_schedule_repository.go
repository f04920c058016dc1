// internal/infra/database/postgres_schedule_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rent_autopay/internal/domain/schedule"

	"github.com/lib/pq"
)

const entryColumns = `id, kind, tenant_id, property_id, amount, payment_method, phone_number, timezone,
       due_at, status, reminder_sent, enabled, day_of_month, scheduled_date,
       transaction_reference, processed_at, failure_reason, failed_at, created_at, updated_at`

type PostgresScheduleRepository struct {
	db *sql.DB
}

func NewPostgresScheduleRepository(db *sql.DB) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*schedule.Entry, error) {
	var (
		e             schedule.Entry
		dayOfMonth    sql.NullInt32
		scheduledDate sql.NullTime
		processedAt   sql.NullTime
		failedAt      sql.NullTime
	)
	err := row.Scan(
		&e.ID, &e.Kind, &e.TenantID, &e.PropertyID, &e.Amount, &e.Method, &e.PhoneNumber, &e.Timezone,
		&e.DueAt, &e.Status, &e.ReminderSent, &e.Enabled, &dayOfMonth, &scheduledDate,
		&e.TransactionReference, &processedAt, &e.FailureReason, &failedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if dayOfMonth.Valid {
		e.DayOfMonth = int(dayOfMonth.Int32)
	}
	if scheduledDate.Valid {
		e.ScheduledDate = scheduledDate.Time
	}
	if processedAt.Valid {
		t := processedAt.Time
		e.ProcessedAt = &t
	}
	if failedAt.Valid {
		t := failedAt.Time
		e.FailedAt = &t
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]*schedule.Entry, error) {
	entries := make([]*schedule.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning schedule entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule entry rows: %w", err)
	}
	return entries, nil
}

func nullDay(e *schedule.Entry) sql.NullInt32 {
	if e.Kind != schedule.KindRecurring {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(e.DayOfMonth), Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *PostgresScheduleRepository) Create(ctx context.Context, e *schedule.Entry) error {
	query := `INSERT INTO schedule_entries (id, kind, tenant_id, property_id, amount, payment_method, phone_number, timezone,
                   due_at, status, reminder_sent, enabled, day_of_month, scheduled_date)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		e.ID, e.Kind, e.TenantID, e.PropertyID, e.Amount, e.Method, e.PhoneNumber, e.Timezone,
		e.DueAt, e.Status, e.ReminderSent, e.Enabled, nullDay(e), nullTime(e.ScheduledDate),
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating schedule entry: %w", err)
	}
	return nil
}

func (r *PostgresScheduleRepository) GetByID(ctx context.Context, id string) (*schedule.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM schedule_entries WHERE id = $1`
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, schedule.ErrEntryNotFound
		}
		return nil, fmt.Errorf("error getting schedule entry by ID: %w", err)
	}
	return e, nil
}

func (r *PostgresScheduleRepository) Update(ctx context.Context, e *schedule.Entry) error {
	query := `UPDATE schedule_entries
               SET amount = $1, payment_method = $2, phone_number = $3, timezone = $4, day_of_month = $5,
                   due_at = $6, reminder_sent = $7, enabled = $8, updated_at = NOW()
               WHERE id = $9
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		e.Amount, e.Method, e.PhoneNumber, e.Timezone, nullDay(e), e.DueAt, e.ReminderSent, e.Enabled, e.ID,
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schedule.ErrEntryNotFound
		}
		return fmt.Errorf("error updating schedule entry: %w", err)
	}
	return nil
}

func statusStrings(statuses []schedule.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// affected turns a conditional update into a swapped flag, distinguishing a
// lost race from a missing row.
func (r *PostgresScheduleRepository) affected(ctx context.Context, res sql.Result, id string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schedule_entries WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking schedule entry existence: %w", err)
	}
	if !exists {
		return false, schedule.ErrEntryNotFound
	}
	return false, nil
}

func (r *PostgresScheduleRepository) CompareAndSetStatus(ctx context.Context, id string, from []schedule.Status, to schedule.Status) (bool, error) {
	query := `UPDATE schedule_entries
               SET status = $1, updated_at = NOW()
               WHERE id = $2 AND status = ANY($3::varchar[])`
	res, err := r.db.ExecContext(ctx, query, to, id, pq.Array(statusStrings(from)))
	if err != nil {
		return false, fmt.Errorf("error swapping status of schedule entry: %w", err)
	}
	return r.affected(ctx, res, id)
}

func (r *PostgresScheduleRepository) ClaimReminder(ctx context.Context, id string, to schedule.Status) (bool, error) {
	query := `UPDATE schedule_entries
               SET reminder_sent = TRUE, status = $1, updated_at = NOW()
               WHERE id = $2 AND reminder_sent = FALSE AND status = ANY($3::varchar[])`
	res, err := r.db.ExecContext(ctx, query, to, id, pq.Array(statusStrings(schedule.PendingStatuses)))
	if err != nil {
		return false, fmt.Errorf("error claiming reminder for schedule entry: %w", err)
	}
	return r.affected(ctx, res, id)
}

func (r *PostgresScheduleRepository) RecordOutcome(ctx context.Context, e *schedule.Entry) error {
	query := `UPDATE schedule_entries
               SET status = $1, transaction_reference = $2, processed_at = $3, failure_reason = $4, failed_at = $5, updated_at = NOW()
               WHERE id = $6
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		e.Status, e.TransactionReference, nullTimePtr(e.ProcessedAt), e.FailureReason, nullTimePtr(e.FailedAt), e.ID,
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schedule.ErrEntryNotFound
		}
		return fmt.Errorf("error recording outcome of schedule entry: %w", err)
	}
	return nil
}

func (r *PostgresScheduleRepository) Rearm(ctx context.Context, id string, dueAt time.Time) (bool, error) {
	query := `UPDATE schedule_entries
               SET due_at = $1, status = $2, reminder_sent = FALSE, updated_at = NOW()
               WHERE id = $3 AND kind = $4 AND status = ANY($5::varchar[])`
	terminal := []schedule.Status{schedule.StatusCompleted, schedule.StatusFailed}
	res, err := r.db.ExecContext(ctx, query, dueAt, schedule.StatusScheduled, id, schedule.KindRecurring, pq.Array(statusStrings(terminal)))
	if err != nil {
		return false, fmt.Errorf("error re-arming schedule entry: %w", err)
	}
	return r.affected(ctx, res, id)
}

func (r *PostgresScheduleRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE schedule_entries SET enabled = $1, updated_at = NOW() WHERE id = $2`, enabled, id)
	if err != nil {
		return fmt.Errorf("error updating enabled flag of schedule entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return schedule.ErrEntryNotFound
	}
	return nil
}

func (r *PostgresScheduleRepository) ListActive(ctx context.Context, kind schedule.Kind) ([]*schedule.Entry, error) {
	var (
		query string
		args  []any
	)
	if kind == schedule.KindRecurring {
		query = `SELECT ` + entryColumns + ` FROM schedule_entries
                  WHERE kind = $1 AND enabled = TRUE AND status <> $2
                  ORDER BY due_at, id`
		args = []any{kind, schedule.StatusCancelled}
	} else {
		terminal := []schedule.Status{schedule.StatusCompleted, schedule.StatusFailed, schedule.StatusCancelled}
		query = `SELECT ` + entryColumns + ` FROM schedule_entries
                  WHERE kind = $1 AND NOT (status = ANY($2::varchar[]))
                  ORDER BY due_at, id`
		args = []any{kind, pq.Array(statusStrings(terminal))}
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing active schedule entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *PostgresScheduleRepository) ListByTenant(ctx context.Context, tenantID string) ([]*schedule.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM schedule_entries WHERE tenant_id = $1 ORDER BY due_at, id`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("error listing schedule entries by tenant: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *PostgresScheduleRepository) GetRecurringByTenant(ctx context.Context, tenantID, propertyID string) (*schedule.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM schedule_entries
               WHERE tenant_id = $1 AND property_id = $2 AND kind = $3 AND enabled = TRUE
               ORDER BY created_at DESC LIMIT 1`
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, tenantID, propertyID, schedule.KindRecurring))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, schedule.ErrEntryNotFound
		}
		return nil, fmt.Errorf("error getting recurring entry by tenant: %w", err)
	}
	return e, nil
}

func (r *PostgresScheduleRepository) AppendAttempt(ctx context.Context, a *schedule.Attempt) error {
	query := `INSERT INTO payment_attempts (id, entry_id, tenant_id, due_at, amount, payment_method, status, transaction_reference, reason, attempted_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.EntryID, a.TenantID, a.DueAt, a.Amount, a.Method, a.Status, a.TransactionReference, a.Reason, a.AttemptedAt)
	if err != nil {
		return fmt.Errorf("error appending payment attempt: %w", err)
	}
	return nil
}

func (r *PostgresScheduleRepository) ListAttempts(ctx context.Context, entryID string) ([]*schedule.Attempt, error) {
	query := `SELECT id, entry_id, tenant_id, due_at, amount, payment_method, status, transaction_reference, reason, attempted_at
               FROM payment_attempts WHERE entry_id = $1 ORDER BY attempted_at`
	rows, err := r.db.QueryContext(ctx, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("error listing payment attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*schedule.Attempt, 0)
	for rows.Next() {
		a := &schedule.Attempt{}
		if err := rows.Scan(&a.ID, &a.EntryID, &a.TenantID, &a.DueAt, &a.Amount, &a.Method, &a.Status,
			&a.TransactionReference, &a.Reason, &a.AttemptedAt); err != nil {
			return nil, fmt.Errorf("error scanning payment attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment attempts: %w", err)
	}
	return attempts, nil
}
