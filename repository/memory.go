package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"restaurant_order/apperror"
	"restaurant_order/model"
	"restaurant_order/utils"
)

type memoryData struct {
	tables   map[string]model.Table
	sessions map[string]model.CustomerSession
	orders   map[string]model.Order
	counters map[string]int64
	payments map[string]model.Payment
	events   map[string]model.PaymentEvent
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		tables:   make(map[string]model.Table, len(d.tables)),
		sessions: make(map[string]model.CustomerSession, len(d.sessions)),
		orders:   make(map[string]model.Order, len(d.orders)),
		counters: make(map[string]int64, len(d.counters)),
		payments: make(map[string]model.Payment, len(d.payments)),
		events:   make(map[string]model.PaymentEvent, len(d.events)),
	}
	for k, v := range d.tables {
		c.tables[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.counters {
		c.counters[k] = v
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	return c
}

type memoryDB struct {
	// txMu serializes writers; a transaction holds it for its whole duration.
	txMu sync.Mutex
	mu   sync.RWMutex
	data *memoryData
}

// MemoryStore keeps everything in process. Stored values are replaced, never
// mutated in place, so a snapshot taken at transaction start can restore them.
type MemoryStore struct {
	db   *memoryDB
	inTx bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{db: &memoryDB{data: &memoryData{
		tables:   map[string]model.Table{},
		sessions: map[string]model.CustomerSession{},
		orders:   map[string]model.Order{},
		counters: map[string]int64{},
		payments: map[string]model.Payment{},
		events:   map[string]model.PaymentEvent{},
	}}}
}

func (s *MemoryStore) Tables() TableStore     { return memTables{s} }
func (s *MemoryStore) Sessions() SessionStore { return memSessions{s} }
func (s *MemoryStore) Orders() OrderStore     { return memOrders{s} }
func (s *MemoryStore) Payments() PaymentStore { return memPayments{s} }

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()

	s.db.mu.RLock()
	snapshot := s.db.data.clone()
	s.db.mu.RUnlock()

	if err := fn(&MemoryStore{db: s.db, inTx: true}); err != nil {
		s.db.mu.Lock()
		s.db.data = snapshot
		s.db.mu.Unlock()
		return err
	}
	return nil
}

// write runs fn with exclusive access to the data.
func (s *MemoryStore) write(fn func(d *memoryData) error) error {
	if !s.inTx {
		s.db.txMu.Lock()
		defer s.db.txMu.Unlock()
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.data)
}

func (s *MemoryStore) read(fn func(d *memoryData)) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	fn(s.db.data)
}

type memTables struct{ s *MemoryStore }

func (r memTables) Create(_ context.Context, table *model.Table) error {
	return r.s.write(func(d *memoryData) error {
		for _, t := range d.tables {
			if t.Code == table.Code {
				return apperror.Validation("table code already in use")
			}
		}
		d.tables[table.ID] = *table
		return nil
	})
}

func (r memTables) Get(_ context.Context, id string) (*model.Table, error) {
	var (
		table model.Table
		ok    bool
	)
	r.s.read(func(d *memoryData) { table, ok = d.tables[id] })
	if !ok {
		return nil, apperror.TableNotFound()
	}
	return &table, nil
}

func (r memTables) GetByCode(_ context.Context, code string) (*model.Table, error) {
	var found *model.Table
	r.s.read(func(d *memoryData) {
		for _, t := range d.tables {
			if t.Code == code {
				found = utils.Ptr(t)
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.TableNotFound()
	}
	return found, nil
}

func (r memTables) UpdateStatus(_ context.Context, id string, status model.TableStatus, at time.Time) error {
	return r.s.write(func(d *memoryData) error {
		t, ok := d.tables[id]
		if !ok {
			return apperror.TableNotFound()
		}
		t.Status = status
		t.UpdatedAt = at
		d.tables[id] = t
		return nil
	})
}

type memSessions struct{ s *MemoryStore }

func (r memSessions) Create(_ context.Context, session *model.CustomerSession) error {
	return r.s.write(func(d *memoryData) error {
		if _, exists := d.sessions[session.Token]; exists {
			return apperror.Validation("session token already exists")
		}
		d.sessions[session.Token] = *session
		return nil
	})
}

func (r memSessions) Get(_ context.Context, token string) (*model.CustomerSession, error) {
	var (
		session model.CustomerSession
		ok      bool
	)
	r.s.read(func(d *memoryData) { session, ok = d.sessions[token] })
	if !ok {
		return nil, apperror.SessionNotFound()
	}
	return &session, nil
}

func (r memSessions) updateActive(token string, fn func(s *model.CustomerSession)) (bool, error) {
	updated := false
	err := r.s.write(func(d *memoryData) error {
		session, ok := d.sessions[token]
		if !ok || session.Status != model.SessionActive {
			return nil
		}
		fn(&session)
		d.sessions[token] = session
		updated = true
		return nil
	})
	return updated, err
}

func (r memSessions) Touch(_ context.Context, token string, at time.Time) error {
	_, err := r.updateActive(token, func(s *model.CustomerSession) { s.LastActivityAt = at })
	return err
}

func (r memSessions) Extend(_ context.Context, token string, expiresAt, at time.Time) (bool, error) {
	return r.updateActive(token, func(s *model.CustomerSession) {
		s.ExpiresAt = expiresAt
		s.LastActivityAt = at
	})
}

func (r memSessions) MarkStatus(_ context.Context, token string, status model.SessionStatus) (bool, error) {
	return r.updateActive(token, func(s *model.CustomerSession) { s.Status = status })
}

func (r memSessions) ExpireBefore(_ context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.s.write(func(d *memoryData) error {
		for token, session := range d.sessions {
			if session.SweptAt != nil || !session.ExpiresAt.Before(now) {
				continue
			}
			if session.Status != model.SessionActive && session.Status != model.SessionExpired {
				continue
			}
			session.Status = model.SessionExpired
			session.SweptAt = utils.Ptr(now)
			d.sessions[token] = session
			count++
		}
		return nil
	})
	return count, err
}

type memOrders struct{ s *MemoryStore }

func (r memOrders) Create(_ context.Context, order *model.Order) error {
	return r.s.write(func(d *memoryData) error {
		if _, exists := d.orders[order.ID]; exists {
			return apperror.Validation("order id already exists")
		}
		d.counters[order.RestaurantId]++
		order.Sequence = d.counters[order.RestaurantId]
		order.OrderNumber = FormatOrderNumber(order.Sequence)
		order.Version = 1
		d.orders[order.ID] = copyOrder(*order)
		return nil
	})
}

func (r memOrders) Get(_ context.Context, id string) (*model.Order, error) {
	var (
		order model.Order
		ok    bool
	)
	r.s.read(func(d *memoryData) { order, ok = d.orders[id] })
	if !ok {
		return nil, apperror.OrderNotFound(id)
	}
	return utils.Ptr(copyOrder(order)), nil
}

func (r memOrders) UpdateWithVersion(_ context.Context, order *model.Order, expected int64) error {
	return r.s.write(func(d *memoryData) error {
		stored, ok := d.orders[order.ID]
		if !ok {
			return apperror.OrderNotFound(order.ID)
		}
		if stored.Version != expected {
			return apperror.VersionConflict(order.ID)
		}
		stored.Status = order.Status
		stored.PaymentStatus = order.PaymentStatus
		stored.PaymentReference = order.PaymentReference
		stored.CancelReason = order.CancelReason
		stored.UpdatedAt = order.UpdatedAt
		stored.Version = expected + 1
		d.orders[order.ID] = stored
		order.Version = stored.Version
		return nil
	})
}

func (r memOrders) List(_ context.Context, restaurantID string, filter model.OrderFilter) ([]model.Order, int64, error) {
	var orders []model.Order
	r.s.read(func(d *memoryData) {
		for _, o := range d.orders {
			if o.RestaurantId == restaurantID && matchesFilter(o, filter) {
				orders = append(orders, copyOrder(o))
			}
		}
	})

	sort.Slice(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if filter.Ascending {
			a, b = b, a
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Sequence > b.Sequence
	})

	start, end := utils.PageBounds(len(orders), filter.Limit, filter.Page)
	return orders[start:end], int64(len(orders)), nil
}

func matchesFilter(o model.Order, f model.OrderFilter) bool {
	if len(f.Statuses) > 0 && !contains(f.Statuses, o.Status) {
		return false
	}
	if contains(f.ExcludePaymentStatuses, o.PaymentStatus) {
		return false
	}
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !o.CreatedAt.Before(*f.To) {
		return false
	}
	return !contains(f.ExcludeIds, o.ID)
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func copyOrder(o model.Order) model.Order {
	o.Items = append([]model.OrderItem(nil), o.Items...)
	return o
}

type memPayments struct{ s *MemoryStore }

func (r memPayments) CreatePayment(_ context.Context, payment *model.Payment) error {
	return r.s.write(func(d *memoryData) error {
		if _, exists := d.payments[payment.GatewayPaymentId]; exists {
			return apperror.Validation("payment already registered")
		}
		d.payments[payment.GatewayPaymentId] = *payment
		return nil
	})
}

func (r memPayments) GetPayment(_ context.Context, gatewayPaymentID string) (*model.Payment, error) {
	var (
		payment model.Payment
		ok      bool
	)
	r.s.read(func(d *memoryData) { payment, ok = d.payments[gatewayPaymentID] })
	if !ok {
		return nil, apperror.PaymentNotFound(gatewayPaymentID)
	}
	return &payment, nil
}

func (r memPayments) UpdatePaymentStatus(_ context.Context, gatewayPaymentID string, status model.PaymentStatus, refundID *string, at time.Time) error {
	return r.s.write(func(d *memoryData) error {
		payment, ok := d.payments[gatewayPaymentID]
		if !ok {
			return apperror.PaymentNotFound(gatewayPaymentID)
		}
		payment.Status = status
		payment.UpdatedAt = at
		if refundID != nil {
			payment.RefundId = refundID
		}
		d.payments[gatewayPaymentID] = payment
		return nil
	})
}

func (r memPayments) ListPending(_ context.Context, createdBefore time.Time, limit int) ([]model.Payment, error) {
	var payments []model.Payment
	r.s.read(func(d *memoryData) {
		for _, p := range d.payments {
			if p.Status == model.PaymentPending && p.CreatedAt.Before(createdBefore) {
				payments = append(payments, p)
			}
		}
	})
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
	if limit > 0 && len(payments) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}

func (r memPayments) GetEvent(_ context.Context, gatewayPaymentID string) (*model.PaymentEvent, error) {
	var (
		event model.PaymentEvent
		ok    bool
	)
	r.s.read(func(d *memoryData) { event, ok = d.events[gatewayPaymentID] })
	if !ok {
		return nil, nil
	}
	return &event, nil
}

func (r memPayments) InsertEvent(_ context.Context, event *model.PaymentEvent) (bool, error) {
	inserted := false
	err := r.s.write(func(d *memoryData) error {
		if _, exists := d.events[event.GatewayPaymentId]; exists {
			return nil
		}
		d.events[event.GatewayPaymentId] = *event
		inserted = true
		return nil
	})
	return inserted, err
}
