// internal/infra/gateway/mock_gateway.go
package gateway

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"rent_autopay/internal/domain/payment"
	"rent_autopay/internal/domain/schedule"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MockGateway stands in for the payment provider. It approves charges unless
// the phone number is on the decline list or the random failure rate hits.
type MockGateway struct {
	mu            sync.Mutex
	rng           *rand.Rand
	failureRate   float64
	latency       time.Duration
	declinedPhone map[string]string
	logger        *logrus.Entry
}

func NewMockGateway(failureRate float64, latency time.Duration, logger *logrus.Entry) *MockGateway {
	return &MockGateway{
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		failureRate:   failureRate,
		latency:       latency,
		declinedPhone: make(map[string]string),
		logger:        logger.WithField("component", "mock_gateway"),
	}
}

// DeclinePhone makes every charge against phone fail with reason.
func (g *MockGateway) DeclinePhone(phone, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declinedPhone[schedule.NormalizePhone(phone)] = reason
}

func (g *MockGateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	log := g.logger.WithFields(logrus.Fields{
		"amount":          req.Amount,
		"method":          req.Method,
		"idempotency_key": req.IdempotencyKey,
	})
	log.Info("MOCK: Charging")

	if g.latency > 0 {
		select {
		case <-time.After(g.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	reason, declined := g.declinedPhone[req.PhoneNumber]
	roll := g.rng.Float64()
	g.mu.Unlock()

	if declined {
		log.WithField("reason", reason).Info("MOCK: Charge declined")
		return &payment.ChargeResult{Success: false, Message: reason}, nil
	}
	if roll < g.failureRate {
		log.Info("MOCK: Charge declined by random failure")
		return &payment.ChargeResult{Success: false, Message: "insufficient funds"}, nil
	}

	ref := "TXN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	log.WithField("transaction_reference", ref).Info("MOCK: Charge approved")
	return &payment.ChargeResult{Success: true, TransactionReference: ref}, nil
}
