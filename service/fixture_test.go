package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"restaurant_order/gateway"
	"restaurant_order/model"
	"restaurant_order/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const restaurantID = "rest-1"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type published struct {
	RestaurantId string
	Kind         model.EventKind
	Payload      any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(restaurantID string, kind model.EventKind, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{restaurantID, kind, payload})
}

func (p *recordingPublisher) kinds() []model.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

func (p *recordingPublisher) count(kind model.EventKind) int {
	n := 0
	for _, k := range p.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

type fakeGateway struct {
	mu          sync.Mutex
	status      model.PaymentStatus
	statusErr   error
	createErr   error
	creates     int
	statusCalls int
	refunds     []gateway.RefundRequest
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreatePayment(_ context.Context, req gateway.PaymentRequest) (*gateway.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.creates++
	url := "https://pay.example.com/" + req.OrderId
	return &gateway.PaymentIntent{ID: fmt.Sprintf("pi_%d", g.creates), RedirectUrl: &url}, nil
}

func (g *fakeGateway) GetPaymentStatus(context.Context, string) (model.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusErr != nil {
		return "", g.statusErr
	}
	return g.status, nil
}

func (g *fakeGateway) Refund(_ context.Context, req gateway.RefundRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, req)
	return fmt.Sprintf("re_%d", len(g.refunds)), nil
}

func (g *fakeGateway) set(status model.PaymentStatus, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
	g.statusErr = err
}

func (g *fakeGateway) calls() (creates, statusCalls int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.creates, g.statusCalls
}

var errGatewayDown = errors.New("connection refused")

type fixture struct {
	store    *repository.MemoryStore
	clock    *fakeClock
	bus      *recordingPublisher
	gw       *fakeGateway
	sessions *SessionManager
	orders   *OrderEngine
	payments *PaymentReconciler
	tables   *TableDirectory
}

func newFixture(t *testing.T, opts ...func(*PaymentOptions)) *fixture {
	t.Helper()
	f := &fixture{
		store: repository.NewMemoryStore(),
		clock: &fakeClock{now: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)},
		bus:   &recordingPublisher{},
		gw:    &fakeGateway{status: model.PaymentPending},
	}
	log := zap.NewNop()
	tokens := 0
	nextToken := func() (string, error) {
		tokens++
		return fmt.Sprintf("token-%02d", tokens), nil
	}
	paymentOpts := PaymentOptions{Currency: "usd"}
	for _, o := range opts {
		o(&paymentOpts)
	}

	f.sessions = NewSessionManager(f.store, f.clock, nextToken, 2*time.Hour, log)
	f.orders = NewOrderEngine(f.store, f.sessions, f.bus, f.clock, log)
	f.payments = NewPaymentReconciler(f.store, f.orders, f.gw, f.bus, f.clock, log, paymentOpts)
	f.tables = NewTableDirectory(f.store, f.bus, f.clock, log)

	ctx := context.Background()
	for _, table := range []model.Table{
		{ID: "table-7", RestaurantId: restaurantID, Number: 7, Code: "A7F2", Capacity: 4, Status: model.TableAvailable},
		{ID: "table-9", RestaurantId: restaurantID, Number: 9, Code: "B9K1", Capacity: 2, Status: model.TableAvailable},
		{ID: "table-x", RestaurantId: restaurantID, Number: 10, Code: "MNT01", Capacity: 2, Status: model.TableMaintenance},
		{ID: "other-1", RestaurantId: "rest-2", Number: 1, Code: "ZZ01", Capacity: 2, Status: model.TableAvailable},
	} {
		table := table
		require.NoError(t, f.store.Tables().Create(ctx, &table))
	}
	return f
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// items totalling 23.50: 2 x 8.00 plus 1 x (6.50 + 1.00 extra cheese)
func dinnerItems() []model.OrderItem {
	return []model.OrderItem{
		{MenuItemId: "pho-bo", Name: "Pho bo", Quantity: 2, UnitPrice: price("8.00")},
		{MenuItemId: "banh-mi", Name: "Banh mi", Quantity: 1, UnitPrice: price("6.50"),
			Modifiers: []model.ItemModifier{{Name: "Extra cheese", PriceDelta: price("1.00")}}},
	}
}

func staffID() *uint {
	id := uint(42)
	return &id
}

func (f *fixture) staffOrder(t *testing.T) *model.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), model.CreateOrderInput{
		RestaurantId: restaurantID,
		TableId:      "table-7",
		Items:        dinnerItems(),
		StaffId:      staffID(),
	})
	require.NoError(t, err)
	return order
}
