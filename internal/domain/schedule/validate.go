package schedule

import (
	"regexp"
	"strings"
	"time"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// NormalizePhone strips spaces and dashes users commonly type.
func NormalizePhone(phone string) string {
	r := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	return r.Replace(strings.TrimSpace(phone))
}

// ValidatePaymentDetails checks the fields shared by both entry kinds.
// It clears the phone number for card payments.
func ValidatePaymentDetails(amount int64, method PaymentMethod, phone *string) error {
	if amount <= 0 {
		return &ValidationError{Field: "amount", Message: "must be a positive amount in minor units"}
	}
	if !method.IsValid() {
		return &ValidationError{Field: "payment_method", Message: "unsupported payment method " + string(method)}
	}
	if !method.IsMobileMoney() {
		*phone = ""
		return nil
	}
	*phone = NormalizePhone(*phone)
	if *phone == "" {
		return &ValidationError{Field: "phone_number", Message: "required for mobile money payments"}
	}
	if !phonePattern.MatchString(*phone) {
		return &ValidationError{Field: "phone_number", Message: "must contain 9 to 15 digits"}
	}
	return nil
}

// ValidateDayOfMonth keeps autopay days inside the range every month has.
func ValidateDayOfMonth(day int) error {
	if day < 1 || day > 28 {
		return &ValidationError{Field: "day_of_month", Message: "must be between 1 and 28"}
	}
	return nil
}

// ValidateScheduledDate rejects dates before today in loc.
func ValidateScheduledDate(date, now time.Time, loc *time.Location) error {
	if date.IsZero() {
		return &ValidationError{Field: "scheduled_date", Message: "is required"}
	}
	if DaysUntil(date, now, loc) < 0 {
		return &ValidationError{Field: "scheduled_date", Message: "must not be in the past"}
	}
	return nil
}
