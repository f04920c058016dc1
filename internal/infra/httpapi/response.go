package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"rent_autopay/internal/app"
	"rent_autopay/internal/domain/notification"
	"rent_autopay/internal/domain/schedule"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Status: "error", Message: msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, schedule.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, schedule.ErrEntryNotFound), errors.Is(err, notification.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, schedule.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type entryView struct {
	ID                   string     `json:"id"`
	Kind                 string     `json:"kind"`
	PropertyID           string     `json:"property_id,omitempty"`
	Amount               int64      `json:"amount"`
	PaymentMethod        string     `json:"payment_method"`
	PhoneNumber          string     `json:"phone_number,omitempty"`
	Timezone             string     `json:"timezone"`
	DueAt                time.Time  `json:"due_at"`
	Status               string     `json:"status"`
	ReminderSent         bool       `json:"reminder_sent"`
	Enabled              bool       `json:"enabled"`
	DayOfMonth           int        `json:"day_of_month,omitempty"`
	ScheduledDate        string     `json:"scheduled_date,omitempty"`
	TransactionReference string     `json:"transaction_reference,omitempty"`
	ProcessedAt          *time.Time `json:"processed_at,omitempty"`
	FailureReason        string     `json:"failure_reason,omitempty"`
	FailedAt             *time.Time `json:"failed_at,omitempty"`
}

func toEntryView(e *schedule.Entry) entryView {
	v := entryView{
		ID:                   e.ID,
		Kind:                 string(e.Kind),
		PropertyID:           e.PropertyID,
		Amount:               e.Amount,
		PaymentMethod:        string(e.Method),
		PhoneNumber:          e.PhoneNumber,
		Timezone:             e.Timezone,
		DueAt:                e.DueAt,
		Status:               string(e.Status),
		ReminderSent:         e.ReminderSent,
		Enabled:              e.Enabled,
		DayOfMonth:           e.DayOfMonth,
		TransactionReference: e.TransactionReference,
		ProcessedAt:          e.ProcessedAt,
		FailureReason:        e.FailureReason,
		FailedAt:             e.FailedAt,
	}
	if !e.ScheduledDate.IsZero() {
		v.ScheduledDate = e.ScheduledDate.Format(dateLayout)
	}
	return v
}

func toEntryViews(entries []*schedule.Entry) []entryView {
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryView(e))
	}
	return out
}

type attemptView struct {
	ID                   string    `json:"id"`
	DueAt                time.Time `json:"due_at"`
	Amount               int64     `json:"amount"`
	PaymentMethod        string    `json:"payment_method"`
	Status               string    `json:"status"`
	TransactionReference string    `json:"transaction_reference,omitempty"`
	Reason               string    `json:"reason,omitempty"`
	AttemptedAt          time.Time `json:"attempted_at"`
}

func toAttemptViews(attempts []*schedule.Attempt) []attemptView {
	out := make([]attemptView, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptView{
			ID:                   a.ID,
			DueAt:                a.DueAt,
			Amount:               a.Amount,
			PaymentMethod:        string(a.Method),
			Status:               string(a.Status),
			TransactionReference: a.TransactionReference,
			Reason:               a.Reason,
			AttemptedAt:          a.AttemptedAt,
		})
	}
	return out
}

type outcomeView struct {
	EntryID              string `json:"entry_id"`
	Skipped              bool   `json:"skipped"`
	Status               string `json:"status,omitempty"`
	TransactionReference string `json:"transaction_reference,omitempty"`
	Reason               string `json:"reason,omitempty"`
	NotificationID       string `json:"notification_id,omitempty"`
}

func toOutcomeView(o *app.Outcome) outcomeView {
	return outcomeView{
		EntryID:              o.EntryID,
		Skipped:              o.Skipped,
		Status:               string(o.Status),
		TransactionReference: o.TransactionReference,
		Reason:               o.Reason,
		NotificationID:       o.NotificationID,
	}
}

type notificationView struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Priority   string         `json:"priority"`
	Timestamp  time.Time      `json:"timestamp"`
	Read       bool           `json:"read"`
	ActionURL  string         `json:"action_url,omitempty"`
	ActionText string         `json:"action_text,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

func toNotificationViews(items []*notification.Notification) []notificationView {
	out := make([]notificationView, 0, len(items))
	for _, n := range items {
		out = append(out, notificationView{
			ID:         n.ID,
			Type:       string(n.Type),
			Title:      n.Title,
			Message:    n.Message,
			Priority:   string(n.Priority),
			Timestamp:  n.Timestamp,
			Read:       n.Read,
			ActionURL:  n.ActionURL,
			ActionText: n.ActionText,
			Data:       n.Data,
		})
	}
	return out
}
