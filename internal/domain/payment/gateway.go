package payment

import (
	"context"

	"rent_autopay/internal/domain/schedule"
)

// ChargeRequest is what the engine asks the gateway to collect.
type ChargeRequest struct {
	Amount      int64
	Method      schedule.PaymentMethod
	PhoneNumber string
	// IdempotencyKey identifies one occurrence of one entry.
	IdempotencyKey string
}

// ChargeResult is the gateway's answer. A result with Success=false is a declined charge.
type ChargeResult struct {
	Success              bool
	TransactionReference string
	Message              string
}

// Gateway executes charges. Implementations return an error for transport
// failures and timeouts, and a non-successful result for declines.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}
