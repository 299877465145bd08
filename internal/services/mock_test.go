package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eventez-payments/internal/services/gateway"
	"eventez-payments/internal/status"
	"eventez-payments/internal/store"
	"eventez-payments/models"
)

// fakeStore is an in-memory RecordStore with the same transition and
// inventory semantics as the PocketBase-backed one.
type fakeStore struct {
	mu            sync.Mutex
	payments      map[string]*models.Payment
	registrations map[string]*models.Registration
	events        map[string]*models.Event
	ticketTypes   map[string]*models.TicketType

	failUpdatePayment   bool
	failGetRegistration bool
	failIncrement       map[string]bool

	incremented map[string]int
	decremented map[string]int
}

var _ store.RecordStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		payments:      make(map[string]*models.Payment),
		registrations: make(map[string]*models.Registration),
		events:        make(map[string]*models.Event),
		ticketTypes:   make(map[string]*models.TicketType),
		failIncrement: make(map[string]bool),
		incremented:   make(map[string]int),
		decremented:   make(map[string]int),
	}
}

func (f *fakeStore) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", status.ErrPaymentNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) UpdatePayment(_ context.Context, id string, fields store.Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdatePayment {
		return fmt.Errorf("updatePayment %s: store unavailable", id)
	}
	p, ok := f.payments[id]
	if !ok {
		return fmt.Errorf("%w: %s", status.ErrPaymentNotFound, id)
	}
	if raw, ok := fields["status"]; ok {
		to := models.PaymentStatus(fmt.Sprint(raw))
		if !models.CanTransition(p.Status, to) {
			return fmt.Errorf("updatePayment %s: %w: %s -> %s", id, status.ErrBadTransition, p.Status, to)
		}
	}
	for k, v := range fields {
		switch k {
		case "status":
			p.Status = models.PaymentStatus(fmt.Sprint(v))
		case "transaction_id":
			p.TransactionID = fmt.Sprint(v)
		case "failure_reason":
			p.FailureReason = fmt.Sprint(v)
		case "billing_phone":
			p.BillingPhone = fmt.Sprint(v)
		case "payment_date":
			if t, ok := v.(time.Time); ok {
				p.PaymentDate = &t
			}
		}
	}
	return nil
}

func (f *fakeStore) GetRegistration(_ context.Context, id string) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGetRegistration {
		return nil, fmt.Errorf("getRegistration %s: store unavailable", id)
	}
	r, ok := f.registrations[id]
	if !ok {
		return nil, fmt.Errorf("getRegistration %s: not found", id)
	}
	cp := *r
	cp.Purchases = append([]models.TicketPurchase(nil), r.Purchases...)
	return &cp, nil
}

func (f *fakeStore) UpdateRegistration(_ context.Context, id string, fields store.Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.registrations[id]
	if !ok {
		return fmt.Errorf("updateRegistration %s: not found", id)
	}
	for k, v := range fields {
		switch k {
		case "status":
			r.Status = models.RegistrationStatus(fmt.Sprint(v))
		case "payment_status":
			r.PaymentStatus = models.RegistrationPaymentStatus(fmt.Sprint(v))
		case "confirmed_at":
			if t, ok := v.(time.Time); ok {
				r.ConfirmedAt = &t
			}
		}
	}
	return nil
}

func (f *fakeStore) GetEvent(_ context.Context, id string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, fmt.Errorf("getEvent %s: not found", id)
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) GetTicketType(_ context.Context, id string) (*models.TicketType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tt, ok := f.ticketTypes[id]
	if !ok {
		return nil, fmt.Errorf("getTicketType %s: not found", id)
	}
	cp := *tt
	return &cp, nil
}

func (f *fakeStore) IncrementTicketSold(_ context.Context, ticketTypeID string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIncrement[ticketTypeID] {
		return fmt.Errorf("incrementTicketSold %s: store unavailable", ticketTypeID)
	}
	tt, ok := f.ticketTypes[ticketTypeID]
	if !ok {
		return fmt.Errorf("incrementTicketSold %s: sold out or unknown ticket type", ticketTypeID)
	}
	if tt.QuantitySold+qty > tt.QuantityTotal {
		return fmt.Errorf("incrementTicketSold %s: sold out or unknown ticket type", ticketTypeID)
	}
	tt.QuantitySold += qty
	f.incremented[ticketTypeID] += qty
	return nil
}

func (f *fakeStore) DecrementTicketSold(_ context.Context, ticketTypeID string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tt, ok := f.ticketTypes[ticketTypeID]
	if !ok || tt.QuantitySold < qty {
		return fmt.Errorf("decrementTicketSold %s: counter underflow or unknown ticket type", ticketTypeID)
	}
	tt.QuantitySold -= qty
	f.decremented[ticketTypeID] += qty
	return nil
}

func (f *fakeStore) paymentStatus(id string) models.PaymentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payments[id].Status
}

// fakeClock drives the verification loop by hand: Tick delivers one tick,
// Advance moves the wall clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
	c   chan time.Time
}

var _ Clock = (*fakeClock)(nil)

func newFakeClock() *fakeClock {
	return &fakeClock{
		now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		c:   make(chan time.Time),
	}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeClock) NewTicker(time.Duration) Ticker {
	return &fakeTicker{c: f.c}
}

func (f *fakeClock) Tick() {
	f.c <- f.Now()
}

type fakeTicker struct {
	c chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               {}

// fakeGateway replays a scripted sequence of status results; the last one
// repeats once the script runs out.
type fakeGateway struct {
	mu             sync.Mutex
	provider       gateway.Provider
	initiateResult *gateway.InitiateResult
	statusScript   []*gateway.StatusResult
	initiateCalls  int
	statusCalls    int
}

var _ gateway.Gateway = (*fakeGateway)(nil)

func (g *fakeGateway) Provider() gateway.Provider { return g.provider }

func (g *fakeGateway) Initiate(context.Context, *gateway.InitiateRequest) *gateway.InitiateResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initiateCalls++
	return g.initiateResult
}

func (g *fakeGateway) CheckStatus(context.Context, string) *gateway.StatusResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.statusCalls
	g.statusCalls++
	if i >= len(g.statusScript) {
		i = len(g.statusScript) - 1
	}
	return g.statusScript[i]
}

// recordingNotifier captures the messages pushed to each user.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []map[string]any
}

var _ Notifier = (*recordingNotifier)(nil)

func (n *recordingNotifier) PaymentUpdate(userID string, message map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := make(map[string]any, len(message)+1)
	for k, v := range message {
		cp[k] = v
	}
	cp["_user"] = userID
	n.messages = append(n.messages, cp)
}

func (n *recordingNotifier) all() []map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]map[string]any(nil), n.messages...)
}
