// internal/domain/notification/shared_types.go
package notification

// Type identifies what a notification is about. Engine-produced types are listed
// here; other producers (maintenance, announcements, ...) use their own strings.
type Type string

const (
	TypeAutopayConfirmation      Type = "autopay_confirmation"
	TypeAutopaySuccess           Type = "autopay_success"
	TypeAutopayFailure           Type = "autopay_failure"
	TypeScheduledPaymentReminder Type = "scheduled_payment_reminder"
	TypePaymentSuccess           Type = "payment_success"
	TypePaymentFailure           Type = "payment_failure"
)

// Priority orders notifications in the inbox; urgent ones also raise an out-of-band alert.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Namespaces prefix notification IDs so inbox sets refreshed from different
// origins never collide when merged.
const (
	NamespaceEngine = "engine"
	NamespaceServer = "server"
)
