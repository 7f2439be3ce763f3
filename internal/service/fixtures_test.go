package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
	"github.com/Jeffmuturi45/EVENTIFY/internal/dto"
	"github.com/Jeffmuturi45/EVENTIFY/internal/gateway"
	"github.com/Jeffmuturi45/EVENTIFY/internal/inventory"
	"github.com/Jeffmuturi45/EVENTIFY/internal/notification"
	"github.com/Jeffmuturi45/EVENTIFY/internal/repository"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// clock is a settable test clock
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeGateway struct {
	mu          sync.Mutex
	initErr     error
	initCalls   int
	lastRequest *gateway.InitiateRequest
	status      *gateway.StatusResult
	statusErr   error
	statusCalls int
	checkoutSeq int
	// onInitiate runs before the push is answered
	onInitiate func()
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) InitiatePayment(ctx context.Context, req *gateway.InitiateRequest) (*gateway.InitiateResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls++
	g.lastRequest = req
	if g.onInitiate != nil {
		g.onInitiate()
	}
	if g.initErr != nil {
		return nil, g.initErr
	}
	g.checkoutSeq++
	return &gateway.InitiateResponse{
		MerchantRequestID: fmt.Sprintf("merchant-%d", g.checkoutSeq),
		CheckoutRequestID: fmt.Sprintf("ws_CO_%d", g.checkoutSeq),
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

func (g *fakeGateway) QueryStatus(ctx context.Context, checkoutRequestID string) (*gateway.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	if g.status == nil {
		return &gateway.StatusResult{Status: domain.PaymentStatusPending}, nil
	}
	return g.status, nil
}

func (g *fakeGateway) calls() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initCalls, g.statusCalls
}

type recordingSink struct {
	mu         sync.Mutex
	deliveries []int64
	fail       bool
	panics     bool
}

func (s *recordingSink) DeliverTicket(ctx context.Context, b *domain.Booking, p *domain.Payment) notification.DeliveryResult {
	if s.panics {
		panic("mailer crashed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, b.ID)
	if s.fail {
		return notification.DeliveryResult{Detail: "smtp timeout"}
	}
	return notification.DeliveryResult{Delivered: true}
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deliveries)
}

type harness struct {
	store      *repository.MemoryStore
	clock      *clock
	gateway    *fakeGateway
	sink       *recordingSink
	reconciler *Reconciler
	payments   PaymentService
	bookings   BookingService
	event      *domain.Event
	vip        *domain.TicketClass
	free       *domain.TicketClass
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:   repository.NewMemoryStore(),
		clock:   &clock{now: testNow},
		gateway: &fakeGateway{},
		sink:    &recordingSink{},
	}

	h.event = h.store.PutEvent(&domain.Event{
		Title:         "Nairobi Jazz Night",
		Venue:         "KICC",
		StartDate:     testNow.Add(30 * 24 * time.Hour),
		EndDate:       testNow.Add(30*24*time.Hour + 4*time.Hour),
		TotalCapacity: 200,
		IsActive:      true,
	})
	h.vip = h.store.PutTicketClass(&domain.TicketClass{
		EventID:           h.event.ID,
		Category:          domain.TicketCategoryVIP,
		Price:             decimal.NewFromInt(500),
		QuantityAvailable: 5,
	})
	h.free = h.store.PutTicketClass(&domain.TicketClass{
		EventID:           h.event.ID,
		Category:          domain.TicketCategoryFree,
		Price:             decimal.Zero,
		QuantityAvailable: 50,
	})

	h.reconciler = NewReconciler(h.store.Payments(), h.sink, h.clock.Now)
	h.payments = NewPaymentService(h.store.Bookings(), h.store.Payments(), h.store.Events(), h.gateway, h.reconciler,
		&PaymentServiceConfig{Location: time.UTC, Clock: h.clock.Now})
	h.bookings = NewBookingService(h.store.Events(), h.store.Bookings(), inventory.NewLedger(h.store.Events()), h.payments,
		&BookingServiceConfig{ReservationWindow: 30 * time.Minute, MinQuantity: 1, MaxQuantity: 10, Clock: h.clock.Now})
	return h
}

// pendingPayment books qty VIP tickets and initiates an STK push for them
func (h *harness) pendingPayment(t *testing.T, qty int) (*domain.Booking, *domain.Payment) {
	t.Helper()
	ctx := context.Background()
	res, err := h.bookings.CreateBooking(ctx, "user-1", bookingRequest(h.event.ID, h.vip.ID, qty))
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	paid, err := h.payments.InitiatePayment(ctx, "user-1", res.Booking.ID, "0712345678")
	if err != nil {
		t.Fatalf("initiate payment: %v", err)
	}
	return res.Booking, paid.Payment
}

func (h *harness) ticketClass(t *testing.T, id int64) *domain.TicketClass {
	t.Helper()
	tc, err := h.store.Events().GetTicketClass(context.Background(), id)
	if err != nil {
		t.Fatalf("get ticket class: %v", err)
	}
	return tc
}

func bookingRequest(eventID, ticketClassID int64, qty int) *dto.CreateBookingRequest {
	return &dto.CreateBookingRequest{EventID: eventID, TicketClassID: ticketClassID, Quantity: qty}
}
