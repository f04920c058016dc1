package app

import (
	"context"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"rent_autopay/internal/domain/notification"
	"rent_autopay/internal/domain/payment"
	"rent_autopay/internal/domain/schedule"
	"rent_autopay/internal/infra/memstore"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fakeGateway approves every charge with TXN-1, TXN-2, ... unless decline or err is set.
type fakeGateway struct {
	mu       sync.Mutex
	calls    []payment.ChargeRequest
	decline  string
	err      error
	blockFor time.Duration
	// onCharge runs inside every Charge call, before the result is decided.
	onCharge func()
}

func (g *fakeGateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	n := len(g.calls)
	decline, err, block, hook := g.decline, g.err, g.blockFor, g.onCharge
	g.mu.Unlock()

	if hook != nil {
		hook()
	}

	if block > 0 {
		select {
		case <-time.After(block):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if decline != "" {
		return &payment.ChargeResult{Success: false, Message: decline}, nil
	}
	return &payment.ChargeResult{Success: true, TransactionReference: "TXN-" + strconv.Itoa(n)}, nil
}

func (g *fakeGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// recorder is a bus subscriber that keeps everything it receives.
type recorder struct {
	mu  sync.Mutex
	got []*notification.Notification
}

func (r *recorder) Handle(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recorder) OfType(t notification.Type) []*notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Notification
	for _, n := range r.got {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

// engine bundles the collaborators most tests need.
type engine struct {
	clock     *fakeClock
	store     *memstore.ScheduleStore
	inbox     *memstore.InboxStore
	gateway   *fakeGateway
	bus       *NotificationBus
	events    *recorder
	processor *PaymentProcessor
	service   *AutopayService
	autopay   *AutopayMonitor
	scheduled *ScheduledPaymentMonitor
}

func newEngine(t *testing.T, now time.Time) *engine {
	t.Helper()
	e := &engine{
		clock:   newFakeClock(now),
		store:   memstore.NewScheduleStore(),
		inbox:   memstore.NewInboxStore(),
		gateway: &fakeGateway{},
		events:  &recorder{},
	}
	log := testLogger()
	e.bus = NewNotificationBus(e.inbox, nil, e.clock, log)
	e.bus.Subscribe(e.events.Handle)
	e.processor = NewPaymentProcessor(e.store, e.gateway, e.bus, e.clock, ProcessorOptions{Currency: "GHS"}, log)
	e.service = NewAutopayService(e.store, e.processor, e.clock, "UTC", log)
	e.autopay = NewAutopayMonitor(e.store, e.processor, e.bus, e.clock, "GHS", log)
	e.scheduled = NewScheduledPaymentMonitor(e.store, e.processor, e.bus, e.clock, "GHS", log)
	return e
}

func (e *engine) mustGet(t *testing.T, id string) *schedule.Entry {
	t.Helper()
	entry, err := e.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s) failed: %v", id, err)
	}
	return entry
}

func day(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}
