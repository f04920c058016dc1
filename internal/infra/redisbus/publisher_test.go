package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"rent_autopay/internal/domain/notification"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	p.channel = channel
	p.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if p.err != nil {
		cmd.SetErr(p.err)
		return cmd
	}
	cmd.SetVal(1)
	return cmd
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestHandlePublishesJSON(t *testing.T) {
	fake := &fakePublisher{}
	p := NewPublisher(fake, "rent:notifications", quietLogger())

	n := &notification.Notification{
		ID:        "engine:1",
		TenantID:  "tenant-1",
		Type:      notification.TypeAutopaySuccess,
		Title:     "Autopay successful",
		Priority:  notification.PriorityHigh,
		Timestamp: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		Data:      map[string]any{"transaction_reference": "TXN-1"},
	}
	if err := p.Handle(context.Background(), n); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if fake.channel != "rent:notifications" {
		t.Errorf("Expected channel rent:notifications, got %q", fake.channel)
	}

	var got Message
	if err := json.Unmarshal(fake.payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.ID != "engine:1" || got.TenantID != "tenant-1" || got.Type != "autopay_success" || got.Priority != "high" {
		t.Errorf("Unexpected message %+v", got)
	}
	if got.Data["transaction_reference"] != "TXN-1" {
		t.Errorf("Expected data to be carried, got %v", got.Data)
	}
}

func TestHandleReturnsPublishError(t *testing.T) {
	boom := errors.New("connection reset")
	p := NewPublisher(&fakePublisher{err: boom}, "rent:notifications", quietLogger())

	if err := p.Handle(context.Background(), &notification.Notification{ID: "engine:1"}); !errors.Is(err, boom) {
		t.Errorf("Expected publish error, got %v", err)
	}
}
