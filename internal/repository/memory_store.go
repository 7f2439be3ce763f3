package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
)

// MemoryStore keeps events, bookings and payments in memory behind one mutex.
// It backs tests and local runs without PostgreSQL.
type MemoryStore struct {
	mu            sync.Mutex
	events        map[int64]*domain.Event
	ticketClasses map[int64]*domain.TicketClass
	bookings      map[int64]*domain.Booking
	payments      map[int64]*domain.Payment
	transitions   map[int64][]*domain.PaymentTransition
	nextEventID   int64
	nextClassID   int64
	nextBookingID int64
	nextPaymentID int64
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:        make(map[int64]*domain.Event),
		ticketClasses: make(map[int64]*domain.TicketClass),
		bookings:      make(map[int64]*domain.Booking),
		payments:      make(map[int64]*domain.Payment),
		transitions:   make(map[int64][]*domain.PaymentTransition),
	}
}

// Events returns the store as an EventRepository
func (s *MemoryStore) Events() *MemoryEventRepository { return &MemoryEventRepository{s: s} }

// Bookings returns the store as a BookingRepository
func (s *MemoryStore) Bookings() *MemoryBookingRepository { return &MemoryBookingRepository{s: s} }

// Payments returns the store as a PaymentRepository
func (s *MemoryStore) Payments() *MemoryPaymentRepository { return &MemoryPaymentRepository{s: s} }

// PutEvent inserts or replaces an event, assigning an ID when zero
func (s *MemoryStore) PutEvent(e *domain.Event) *domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		s.nextEventID++
		e.ID = s.nextEventID
	} else if e.ID > s.nextEventID {
		s.nextEventID = e.ID
	}
	cp := *e
	s.events[e.ID] = &cp
	return e
}

// PutTicketClass inserts or replaces a ticket class, assigning an ID when zero
func (s *MemoryStore) PutTicketClass(tc *domain.TicketClass) *domain.TicketClass {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tc.ID == 0 {
		s.nextClassID++
		tc.ID = s.nextClassID
	} else if tc.ID > s.nextClassID {
		s.nextClassID = tc.ID
	}
	cp := *tc
	s.ticketClasses[tc.ID] = &cp
	return tc
}

func copyBooking(b *domain.Booking) *domain.Booking {
	cp := *b
	return &cp
}

func copyPayment(p *domain.Payment) *domain.Payment {
	cp := *p
	if p.TransactionDate != nil {
		t := *p.TransactionDate
		cp.TransactionDate = &t
	}
	if p.ResultCode != nil {
		c := *p.ResultCode
		cp.ResultCode = &c
	}
	if p.CallbackData != nil {
		cp.CallbackData = append(json.RawMessage(nil), p.CallbackData...)
	}
	return &cp
}

// MemoryEventRepository implements EventRepository over a MemoryStore
type MemoryEventRepository struct{ s *MemoryStore }

func (r *MemoryEventRepository) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *MemoryEventRepository) GetTicketClass(ctx context.Context, id int64) (*domain.TicketClass, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tc, ok := r.s.ticketClasses[id]
	if !ok {
		return nil, domain.ErrTicketClassNotFound
	}
	cp := *tc
	return &cp, nil
}

func (r *MemoryEventRepository) ListTicketClasses(ctx context.Context, eventID int64) ([]*domain.TicketClass, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var classes []*domain.TicketClass
	for _, tc := range r.s.ticketClasses {
		if tc.EventID == eventID {
			cp := *tc
			classes = append(classes, &cp)
		}
	}
	sort.Slice(classes, func(i, j int) bool {
		if c := classes[i].Price.Cmp(classes[j].Price); c != 0 {
			return c < 0
		}
		return classes[i].ID < classes[j].ID
	})
	return classes, nil
}

// MemoryBookingRepository implements BookingRepository over a MemoryStore
type MemoryBookingRepository struct{ s *MemoryStore }

func (r *MemoryBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b.Recalculate()
	r.s.nextBookingID++
	b.ID = r.s.nextBookingID
	r.s.bookings[b.ID] = copyBooking(b)
	return nil
}

func (r *MemoryBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return copyBooking(b), nil
}

func (r *MemoryBookingRepository) ListByUser(ctx context.Context, userID string, status *domain.BookingStatus) ([]*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var bookings []*domain.Booking
	for _, b := range r.s.bookings {
		if b.UserID != userID {
			continue
		}
		if status != nil && b.Status != *status {
			continue
		}
		bookings = append(bookings, copyBooking(b))
	}
	sort.Slice(bookings, func(i, j int) bool {
		if !bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
		}
		return bookings[i].ID > bookings[j].ID
	})
	return bookings, nil
}

func (r *MemoryBookingRepository) CompareAndSetStatus(ctx context.Context, id int64, from, to domain.BookingStatus, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return false, domain.ErrBookingNotFound
	}
	if b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = now
	return true, nil
}

func (r *MemoryBookingRepository) ExpirePending(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var stale []*domain.Booking
	for _, b := range r.s.bookings {
		if b.Status == domain.BookingStatusPending && b.ExpiresAt.Before(now) {
			stale = append(stale, b)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ExpiresAt.Before(stale[j].ExpiresAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}

	ids := make([]int64, 0, len(stale))
	for _, b := range stale {
		b.Status = domain.BookingStatusExpired
		b.UpdatedAt = now
		ids = append(ids, b.ID)
	}
	return ids, nil
}

// MemoryPaymentRepository implements PaymentRepository over a MemoryStore
type MemoryPaymentRepository struct{ s *MemoryStore }

func (r *MemoryPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.payments {
		if existing.BookingID == p.BookingID {
			return domain.ErrPaymentAlreadyExists
		}
	}
	r.s.nextPaymentID++
	p.ID = r.s.nextPaymentID
	r.s.payments[p.ID] = copyPayment(p)
	return nil
}

func (r *MemoryPaymentRepository) find(match func(*domain.Payment) bool) (*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if match(p) {
			return copyPayment(p), nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (r *MemoryPaymentRepository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	return r.find(func(p *domain.Payment) bool { return p.ID == id })
}

func (r *MemoryPaymentRepository) GetByBookingID(ctx context.Context, bookingID int64) (*domain.Payment, error) {
	return r.find(func(p *domain.Payment) bool { return p.BookingID == bookingID })
}

func (r *MemoryPaymentRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.Payment, error) {
	if checkoutRequestID == "" {
		return nil, domain.ErrPaymentNotFound
	}
	return r.find(func(p *domain.Payment) bool { return p.CheckoutRequestID == checkoutRequestID })
}

func (r *MemoryPaymentRepository) ListPendingWithCheckout(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var payments []*domain.Payment
	for _, p := range r.s.payments {
		if p.Status == domain.PaymentStatusPending && p.CheckoutRequestID != "" && p.CreatedAt.Before(olderThan) {
			payments = append(payments, copyPayment(p))
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.Before(payments[j].CreatedAt) })
	if limit > 0 && len(payments) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}

func (r *MemoryPaymentRepository) ListStaleInitiations(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var payments []*domain.Payment
	for _, p := range r.s.payments {
		if p.AwaitsCheckout() && p.UpdatedAt.Before(olderThan) {
			payments = append(payments, copyPayment(p))
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].UpdatedAt.Before(payments[j].UpdatedAt) })
	if limit > 0 && len(payments) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}

func (r *MemoryPaymentRepository) ListTransitions(ctx context.Context, paymentID int64) ([]*domain.PaymentTransition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*domain.PaymentTransition, 0, len(r.s.transitions[paymentID]))
	for _, t := range r.s.transitions[paymentID] {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// Settle holds the store mutex for the whole unit of work; fn works on copies
// that are only stored when it asks for a write. A done ctx fails like a
// transaction that cannot begin.
func (r *MemoryPaymentRepository) Settle(ctx context.Context, paymentID int64, fn SettleFunc) (*domain.Payment, *domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.payments[paymentID]
	if !ok {
		return nil, nil, domain.ErrPaymentNotFound
	}
	storedBooking, ok := r.s.bookings[stored.BookingID]
	if !ok {
		return nil, nil, domain.ErrBookingNotFound
	}

	payment := copyPayment(stored)
	booking := copyBooking(storedBooking)

	settlement, err := fn(payment, booking)
	if err != nil {
		return nil, nil, err
	}
	if !settlement.Write {
		return payment, booking, nil
	}

	r.s.payments[payment.ID] = copyPayment(payment)
	r.s.bookings[booking.ID] = copyBooking(booking)
	if settlement.ConfirmedBooking {
		r.deductInventoryLocked(booking)
	}
	if t := settlement.Transition; t != nil {
		cp := *t
		r.s.transitions[payment.ID] = append(r.s.transitions[payment.ID], &cp)
	}
	return payment, booking, nil
}

func (r *MemoryPaymentRepository) deductInventoryLocked(b *domain.Booking) {
	if tc, ok := r.s.ticketClasses[b.TicketClassID]; ok {
		remaining := tc.QuantityAvailable - b.Quantity
		if remaining < 0 {
			logger.Get().Component("repository").Warn("ticket class oversold, clamping at zero",
				zap.Int64("booking_id", b.ID),
				zap.Int64("ticket_class_id", b.TicketClassID),
			)
			remaining = 0
		}
		tc.QuantityAvailable = remaining
	}
	if e, ok := r.s.events[b.EventID]; ok {
		e.TicketsSold += b.Quantity
	}
}

var (
	_ EventRepository   = (*MemoryEventRepository)(nil)
	_ BookingRepository = (*MemoryBookingRepository)(nil)
	_ PaymentRepository = (*MemoryPaymentRepository)(nil)
	_ EventRepository   = (*PostgresEventRepository)(nil)
	_ BookingRepository = (*PostgresBookingRepository)(nil)
	_ PaymentRepository = (*PostgresPaymentRepository)(nil)
)
