// internal/domain/schedule/shared_types.go
package schedule

// Kind distinguishes recurring autopay entries from one-off scheduled payments.
type Kind string

const (
	KindRecurring Kind = "recurring"
	KindOneOff    Kind = "one_off"
)

// Status is the lifecycle state of the current occurrence of an entry.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusReminded   Status = "reminded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// PendingStatuses are the states from which a processing attempt may start.
var PendingStatuses = []Status{StatusScheduled, StatusReminded}

// IsPending reports whether the occurrence has not been picked up for processing yet.
func (s Status) IsPending() bool {
	return s == StatusScheduled || s == StatusReminded
}

// IsTerminal reports whether the occurrence reached an end state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// PaymentMethod is the instrument the gateway charges.
type PaymentMethod string

const (
	MethodMTNMoMo         PaymentMethod = "mtn_momo"
	MethodVodafoneCash    PaymentMethod = "vodafone_cash"
	MethodAirtelTigoMoney PaymentMethod = "airteltigo_money"
	MethodCard            PaymentMethod = "card"
)

// IsMobileMoney reports whether the method is a mobile money wallet, which needs a phone number.
func (m PaymentMethod) IsMobileMoney() bool {
	switch m {
	case MethodMTNMoMo, MethodVodafoneCash, MethodAirtelTigoMoney:
		return true
	default:
		return false
	}
}

// IsValid reports whether the method is one the gateway knows.
func (m PaymentMethod) IsValid() bool {
	return m == MethodCard || m.IsMobileMoney()
}
