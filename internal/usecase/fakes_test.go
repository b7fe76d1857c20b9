package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/phenrril/kambashop/internal/domain"
)

type stubGateway struct {
	mu         sync.Mutex
	createErr  error
	confirmErr error
	created    []int64
	confirmed  []domain.BillingDetails
	status     domain.PaymentStatus
	retrieved  int
}

func (g *stubGateway) CreateIntent(_ context.Context, amount int64, currency string) (*domain.PaymentIntentRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, amount)
	id := "pi_" + string(rune('a'+len(g.created)-1))
	return &domain.PaymentIntentRef{ID: id, ClientSecret: id + "_secret_z", AmountMinor: amount, Currency: currency}, nil
}

func (g *stubGateway) ConfirmIntent(_ context.Context, secret string, b domain.BillingDetails, _ domain.ShippingDetails, returnURL string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.confirmErr != nil {
		return "", g.confirmErr
	}
	g.confirmed = append(g.confirmed, b)
	return returnURL + "?secret=" + secret, nil
}

func (g *stubGateway) RetrieveIntent(_ context.Context, id string) (*domain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retrieved++
	if g.status == "" {
		return nil, errors.New("proveedor caído")
	}
	return &domain.PaymentIntent{ID: id, Status: g.status, AmountMinor: 5990, Currency: "eur"}, nil
}

type stubVerifier struct {
	mu     sync.Mutex
	result domain.VerifyResult
	err    error
	reqs   []domain.VerifyRequest
	delay  time.Duration
}

func (v *stubVerifier) Verify(_ context.Context, req domain.VerifyRequest) (domain.VerifyResult, error) {
	if v.delay > 0 {
		time.Sleep(v.delay)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reqs = append(v.reqs, req)
	return v.result, v.err
}

type trackedBeacon struct {
	event string
	props domain.PurchaseProps
	opts  domain.TrackOptions
}

type stubBeacon struct {
	mu     sync.Mutex
	events []trackedBeacon
}

func (b *stubBeacon) Track(_ context.Context, event string, props domain.PurchaseProps, opts domain.TrackOptions) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, trackedBeacon{event, props, opts})
}

type memOrders struct {
	mu     sync.Mutex
	byID   map[string]domain.Order
	saves  int
	failOn error
}

func newMemOrders() *memOrders { return &memOrders{byID: map[string]domain.Order{}} }

func (m *memOrders) FindByIntentID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (m *memOrders) Save(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil {
		return m.failOn
	}
	m.saves++
	m.byID[o.IntentID] = *o
	return nil
}

func (m *memOrders) ListCommitted(_ context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.byID {
		if o.Status.Commits() {
			out = append(out, o)
		}
	}
	return out, nil
}

type memCustomers struct {
	mu      sync.Mutex
	byEmail map[string]domain.Customer
}

func (m *memCustomers) FindByEmail(_ context.Context, email string) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *memCustomers) Save(_ context.Context, c *domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byEmail[c.Email] = *c
	return nil
}

type stubConversions struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (c *stubConversions) SendPurchase(_ context.Context, o *domain.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, o.EventID)
	return nil
}

type memDedup struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (d *memDedup) Seen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys[key] {
		return true, nil
	}
	d.keys[key] = true
	return false, nil
}

func (d *memDedup) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}

type stubNotifier struct {
	done chan *domain.Order
}

func (n *stubNotifier) NotifyOrder(_ context.Context, o *domain.Order) error {
	n.done <- o
	return nil
}
