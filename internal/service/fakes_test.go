package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/paybook/internal/acquiring"
	"github.com/Freeeeeet/paybook/internal/catalog"
	"github.com/Freeeeeet/paybook/internal/model"
	"github.com/Freeeeeet/paybook/internal/notify"
	"github.com/Freeeeeet/paybook/internal/repository"
	"github.com/Freeeeeet/paybook/internal/signature"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-password"

// memDB повторяет ограничения схемы: одна живая сессия на слот,
// запись терминального статуса один раз, один booking на слот.
type memDB struct {
	mu        sync.Mutex
	slots     map[int64]*model.Slot
	sessions  map[uuid.UUID]*model.PaymentSession
	order     []uuid.UUID
	discounts map[string]*model.DiscountCode
	bookings  map[int64]*model.Booking
	nextID    int64
	clock     func() time.Time
}

func newMemDB(clock func() time.Time) *memDB {
	return &memDB{
		slots:     make(map[int64]*model.Slot),
		sessions:  make(map[uuid.UUID]*model.PaymentSession),
		discounts: make(map[string]*model.DiscountCode),
		bookings:  make(map[int64]*model.Booking),
		clock:     clock,
	}
}

func (db *memDB) addSlot(s *model.Slot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.slots[s.ID] = s
}

func (db *memDB) addDiscount(d *model.DiscountCode) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.discounts[d.Value] = d
}

func (db *memDB) addSession(p *model.PaymentSession) {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := *p
	db.sessions[p.ID] = &cp
	db.order = append(db.order, p.ID)
}

func (db *memDB) session(id uuid.UUID) model.PaymentSession {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.sessions[id]
}

func (db *memDB) sessionCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.sessions)
}

func (db *memDB) bookingCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.bookings)
}

func (db *memDB) discountUses(value string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.discounts[value].Uses
}

type memSlots struct{ db *memDB }

func (s memSlots) GetByID(_ context.Context, id int64) (*model.Slot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	slot, ok := s.db.slots[id]
	if !ok {
		return nil, nil
	}
	cp := *slot
	return &cp, nil
}

type memPayments struct{ db *memDB }

func (s memPayments) Create(_ context.Context, p *model.PaymentSession, now time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, existing := range s.db.sessions {
		if existing.SlotID != p.SlotID || existing.Status != model.PaymentStatusPending {
			continue
		}
		if existing.DueDate.Before(now) {
			existing.Status = model.PaymentStatusExpired
			continue
		}
		return repository.ErrLiveSessionExists
	}

	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	s.db.sessions[p.ID] = &cp
	s.db.order = append(s.db.order, p.ID)
	return nil
}

func (s memPayments) GetByID(_ context.Context, id uuid.UUID) (*model.PaymentSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s memPayments) list(match func(*model.PaymentSession) bool) []*model.PaymentSession {
	var out []*model.PaymentSession
	for i := len(s.db.order) - 1; i >= 0; i-- {
		p := s.db.sessions[s.db.order[i]]
		if match(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

func (s memPayments) ListBySlot(_ context.Context, slotID int64) ([]*model.PaymentSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.list(func(p *model.PaymentSession) bool { return p.SlotID == slotID }), nil
}

func (s memPayments) ListBySlotAndPayer(_ context.Context, slotID int64, email string) ([]*model.PaymentSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.list(func(p *model.PaymentSession) bool {
		return p.SlotID == slotID && p.PayerEmail == email
	}), nil
}

func (s memPayments) AttachGateway(_ context.Context, id uuid.UUID, gatewayID string, amount int64, paymentURL string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p := s.db.sessions[id]
	p.GatewayID = &gatewayID
	p.Amount = amount
	p.PaymentURL = &paymentURL
	return nil
}

func (s memPayments) ResolveStatus(_ context.Context, id uuid.UUID, status model.PaymentStatus) (repository.Resolution, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p := s.db.sessions[id]
	if p.Status.IsTerminal() {
		return repository.Resolution{Status: p.Status}, nil
	}
	p.Status = status
	res := repository.Resolution{Status: status, Applied: true}
	if status == model.PaymentStatusSuccess && p.DiscountCode != nil {
		d := s.db.discounts[*p.DiscountCode]
		if d.MaxUses == nil || d.Uses < *d.MaxUses {
			d.Uses++
		} else {
			res.DiscountExhausted = true
		}
	}
	return res, nil
}

func (s memPayments) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, p := range s.db.sessions {
		if p.Status == model.PaymentStatusPending && p.DueDate.Before(now) {
			p.Status = model.PaymentStatusExpired
			n++
		}
	}
	return n, nil
}

func (s memPayments) ListUnresolved(_ context.Context, since time.Time, limit int) ([]*model.PaymentSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := s.list(func(p *model.PaymentSession) bool {
		return !p.Status.IsTerminal() && p.GatewayID != nil && !p.DueDate.Before(since)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memDiscounts struct{ db *memDB }

func (s memDiscounts) GetByValue(_ context.Context, value string) (*model.DiscountCode, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	d, ok := s.db.discounts[value]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

type memBookings struct{ db *memDB }

func (s memBookings) CreateForSlot(_ context.Context, b *model.Booking) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	slot := s.db.slots[b.SlotID]
	if _, taken := s.db.bookings[b.SlotID]; taken || slot.BookingID != nil {
		return repository.ErrSlotAlreadyBooked
	}
	s.db.nextID++
	b.ID = s.db.nextID
	b.CreatedAt = s.db.clock()
	cp := *b
	s.db.bookings[b.SlotID] = &cp
	slot.BookingID = &cp.ID
	return nil
}

func (s memBookings) GetBySlotID(_ context.Context, slotID int64) (*model.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[slotID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	initErr  error
	inits    []acquiring.InitRequest
	states   map[string]acquiring.Status
	stateErr error
}

func (g *fakeGateway) Init(_ context.Context, req acquiring.InitRequest) (*acquiring.InitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inits = append(g.inits, req)
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &acquiring.InitResult{
		PaymentID:  "gw-" + req.OrderID,
		PaymentURL: "https://pay.example/" + req.OrderID,
		Amount:     req.Amount,
		Status:     acquiring.StatusNew,
	}, nil
}

func (g *fakeGateway) GetState(_ context.Context, paymentID string) (acquiring.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stateErr != nil {
		return "", g.stateErr
	}
	return g.states[paymentID], nil
}

func (g *fakeGateway) VerifyNotification(n *acquiring.Notification) bool {
	return signature.Verify(n.Fields, n.Token, testSecret)
}

func (g *fakeGateway) lastInit() acquiring.InitRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inits[len(g.inits)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Send(e notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]notify.Kind, 0, len(n.events))
	for _, e := range n.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// env содержит собранный движок поверх памяти с управляемыми часами
type env struct {
	now       time.Time
	db        *memDB
	gateway   *fakeGateway
	notifier  *recordingNotifier
	guard     *SlotGuard
	payments  *PaymentService
	reconcile *Reconciler
	finalizer *Finalizer
}

func newEnv() *env {
	e := &env{
		now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		gateway:  &fakeGateway{states: map[string]acquiring.Status{}},
		notifier: &recordingNotifier{},
	}
	clock := func() time.Time { return e.now }
	e.db = newMemDB(clock)

	cat := catalog.New(
		catalog.Category{Name: "consultation", Title: "Консультация", Price: 350000, RequiresPayment: true},
		catalog.Category{Name: "intro_call", Title: "Знакомство", RequiresPayment: false},
	)
	logger := zap.NewNop()
	payments := memPayments{e.db}

	e.guard = NewSlotGuard(memSlots{e.db}, payments)
	e.guard.now = clock

	e.payments = NewPaymentService(e.guard, payments, memDiscounts{e.db}, cat, e.gateway, e.notifier,
		PaymentConfig{ExpirationWindow: 30 * time.Minute, MinAmount: 100, PublicBaseURL: "https://book.example"},
		logger)
	e.payments.now = clock

	e.reconcile = NewReconciler(payments, e.gateway, e.notifier, logger)
	e.reconcile.now = clock

	e.finalizer = NewFinalizer(e.guard, payments, memBookings{e.db}, e.notifier, logger)
	e.finalizer.now = clock

	e.db.addSlot(&model.Slot{
		ID:         1,
		OwnerID:    7,
		StartTime:  e.now.Add(48 * time.Hour),
		Categories: []string{"consultation", "intro_call"},
	})

	return e
}

func (e *env) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

// open открывает оплату и достаёт оба кода из сохранённой строки
func (e *env) open(t *testing.T, email string) (*model.PaymentSession, model.PaymentSession) {
	t.Helper()
	session, err := e.payments.Open(context.Background(), OpenRequest{SlotID: 1, Category: "consultation", Email: email})
	require.NoError(t, err)
	return session, e.db.session(session.ID)
}

// webhook собирает подписанное тело уведомления
func webhook(orderID string, status acquiring.Status, amount int64) []byte {
	fields := signature.Fields{
		"TerminalKey": "TestTerminal",
		"OrderId":     orderID,
		"Status":      string(status),
		"Amount":      strconv.FormatInt(amount, 10),
		"Success":     "true",
	}
	token := signature.Sign(fields, testSecret)
	return []byte(fmt.Sprintf(
		`{"TerminalKey":"TestTerminal","OrderId":%q,"Status":%q,"Amount":%d,"Success":true,"Token":%q}`,
		orderID, status, amount, token))
}
