package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seedStore(t *testing.T, available int) (*MemoryStore, *domain.Event, *domain.TicketClass) {
	t.Helper()
	s := NewMemoryStore()
	e := s.PutEvent(&domain.Event{
		Title:         "Nairobi Jazz Night",
		Venue:         "KICC",
		StartDate:     testNow.Add(72 * time.Hour),
		EndDate:       testNow.Add(76 * time.Hour),
		TotalCapacity: 100,
		IsActive:      true,
	})
	tc := s.PutTicketClass(&domain.TicketClass{
		EventID:           e.ID,
		Category:          domain.TicketCategoryRegular,
		Price:             decimal.NewFromInt(500),
		QuantityAvailable: available,
	})
	return s, e, tc
}

func createPendingPayment(t *testing.T, s *MemoryStore, tc *domain.TicketClass, qty int) (*domain.Booking, *domain.Payment) {
	t.Helper()
	ctx := context.Background()
	b := domain.NewBooking("user-1", tc, qty, testNow, 30*time.Minute)
	require.NoError(t, s.Bookings().Create(ctx, b))
	p := domain.NewPayment(b, "254712345678", testNow)
	require.NoError(t, s.Payments().Create(ctx, p))
	return b, p
}

func TestMemoryStore_EventLookups(t *testing.T) {
	s, e, tc := seedStore(t, 10)
	ctx := context.Background()

	got, err := s.Events().GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nairobi Jazz Night", got.Title)

	_, err = s.Events().GetEvent(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrEventNotFound)

	_, err = s.Events().GetTicketClass(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrTicketClassNotFound)

	s.PutTicketClass(&domain.TicketClass{EventID: e.ID, Category: domain.TicketCategoryVIP, Price: decimal.NewFromInt(2000)})
	s.PutTicketClass(&domain.TicketClass{EventID: e.ID, Category: domain.TicketCategoryFree, Price: decimal.Zero})

	classes, err := s.Events().ListTicketClasses(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, classes, 3)
	assert.Equal(t, domain.TicketCategoryFree, classes[0].Category)
	assert.Equal(t, tc.ID, classes[1].ID)
	assert.Equal(t, domain.TicketCategoryVIP, classes[2].Category)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s, _, tc := seedStore(t, 10)
	ctx := context.Background()
	b, _ := createPendingPayment(t, s, tc, 1)

	got, err := s.Bookings().GetByID(ctx, b.ID)
	require.NoError(t, err)
	got.Status = domain.BookingStatusConfirmed

	again, err := s.Bookings().GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, again.Status)
}

func TestMemoryStore_ListByUser(t *testing.T) {
	s, _, tc := seedStore(t, 10)
	ctx := context.Background()

	first := domain.NewBooking("user-1", tc, 1, testNow, 30*time.Minute)
	second := domain.NewBooking("user-1", tc, 2, testNow.Add(time.Minute), 30*time.Minute)
	other := domain.NewBooking("user-2", tc, 1, testNow, 30*time.Minute)
	for _, b := range []*domain.Booking{first, second, other} {
		require.NoError(t, s.Bookings().Create(ctx, b))
	}
	ok, err := s.Bookings().CompareAndSetStatus(ctx, first.ID, domain.BookingStatusPending, domain.BookingStatusCancelled, testNow)
	require.NoError(t, err)
	require.True(t, ok)

	all, err := s.Bookings().ListByUser(ctx, "user-1", nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	cancelled := domain.BookingStatusCancelled
	filtered, err := s.Bookings().ListByUser(ctx, "user-1", &cancelled)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, first.ID, filtered[0].ID)
}

func TestMemoryStore_CompareAndSetStatus(t *testing.T) {
	s, _, tc := seedStore(t, 10)
	ctx := context.Background()
	b, _ := createPendingPayment(t, s, tc, 1)

	ok, err := s.Bookings().CompareAndSetStatus(ctx, b.ID, domain.BookingStatusPending, domain.BookingStatusExpired, testNow)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Bookings().CompareAndSetStatus(ctx, b.ID, domain.BookingStatusPending, domain.BookingStatusCancelled, testNow)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Bookings().CompareAndSetStatus(ctx, 404, domain.BookingStatusPending, domain.BookingStatusCancelled, testNow)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestMemoryStore_ExpirePending(t *testing.T) {
	s, _, tc := seedStore(t, 10)
	ctx := context.Background()

	stale := domain.NewBooking("user-1", tc, 1, testNow.Add(-time.Hour), 30*time.Minute)
	fresh := domain.NewBooking("user-1", tc, 1, testNow, 30*time.Minute)
	require.NoError(t, s.Bookings().Create(ctx, stale))
	require.NoError(t, s.Bookings().Create(ctx, fresh))

	ids, err := s.Bookings().ExpirePending(ctx, testNow, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{stale.ID}, ids)

	got, err := s.Bookings().GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, got.Status)

	ids, err = s.Bookings().ExpirePending(ctx, testNow, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryStore_PaymentLookups(t *testing.T) {
	s, _, tc := seedStore(t, 10)
	ctx := context.Background()
	b, p := createPendingPayment(t, s, tc, 1)

	dup := domain.NewPayment(b, "254712345678", testNow)
	assert.ErrorIs(t, s.Payments().Create(ctx, dup), domain.ErrPaymentAlreadyExists)

	got, err := s.Payments().GetByBookingID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = s.Payments().GetByCheckoutRequestID(ctx, "")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	_, _, err = s.Payments().Settle(ctx, p.ID, func(p *domain.Payment, _ *domain.Booking) (Settlement, error) {
		return Settlement{Write: true}, p.AttachCheckout("mr-1", "ws_CO_1", testNow)
	})
	require.NoError(t, err)

	got, err = s.Payments().GetByCheckoutRequestID(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	pending, err := s.Payments().ListPendingWithCheckout(ctx, testNow.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	pending, err = s.Payments().ListPendingWithCheckout(ctx, testNow.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMemoryStore_ListStaleInitiations(t *testing.T) {
	s, _, tc := seedStore(t, 10)
	ctx := context.Background()
	_, unacknowledged := createPendingPayment(t, s, tc, 1)
	_, acknowledged := createPendingPayment(t, s, tc, 1)
	_, _, err := s.Payments().Settle(ctx, acknowledged.ID, func(p *domain.Payment, _ *domain.Booking) (Settlement, error) {
		return Settlement{Write: true}, p.AttachCheckout("mr-2", "ws_CO_2", testNow)
	})
	require.NoError(t, err)

	freeBooking := domain.NewBooking("user-1", tc, 1, testNow, 30*time.Minute)
	require.NoError(t, s.Bookings().Create(ctx, freeBooking))
	require.NoError(t, s.Payments().Create(ctx, domain.NewPayment(freeBooking, domain.FreePhoneNumber, testNow)))

	stale, err := s.Payments().ListStaleInitiations(ctx, testNow.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, unacknowledged.ID, stale[0].ID)

	stale, err = s.Payments().ListStaleInitiations(ctx, testNow, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestMemoryStore_SettleCancelledContext(t *testing.T) {
	s, _, tc := seedStore(t, 10)
	_, p := createPendingPayment(t, s, tc, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.Payments().Settle(ctx, p.ID, func(*domain.Payment, *domain.Booking) (Settlement, error) {
		t.Fatal("settle callback ran on a cancelled context")
		return Settlement{}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_SettleConfirmsAndDeducts(t *testing.T) {
	s, e, tc := seedStore(t, 5)
	ctx := context.Background()
	b, p := createPendingPayment(t, s, tc, 2)

	payment, booking, err := s.Payments().Settle(ctx, p.ID, func(p *domain.Payment, b *domain.Booking) (Settlement, error) {
		if err := p.MarkSuccessful("ABC123", testNow, testNow); err != nil {
			return Settlement{}, err
		}
		if err := b.Confirm(testNow); err != nil {
			return Settlement{}, err
		}
		return Settlement{
			Write:            true,
			ConfirmedBooking: true,
			Transition: &domain.PaymentTransition{
				ID:         "t-1",
				PaymentID:  p.ID,
				FromStatus: domain.PaymentStatusPending,
				ToStatus:   domain.PaymentStatusSuccessful,
				Source:     domain.SourceWebhook,
				CreatedAt:  testNow,
			},
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccessful, payment.Status)
	assert.Equal(t, domain.BookingStatusConfirmed, booking.Status)

	storedClass, err := s.Events().GetTicketClass(ctx, tc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, storedClass.QuantityAvailable)

	storedEvent, err := s.Events().GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, storedEvent.TicketsSold)

	storedBooking, err := s.Bookings().GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, storedBooking.Status)

	transitions, err := s.Payments().ListTransitions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, domain.SourceWebhook, transitions[0].Source)
}

func TestMemoryStore_SettleClampsInventory(t *testing.T) {
	s, _, tc := seedStore(t, 1)
	ctx := context.Background()
	_, p := createPendingPayment(t, s, tc, 3)

	_, _, err := s.Payments().Settle(ctx, p.ID, func(p *domain.Payment, b *domain.Booking) (Settlement, error) {
		_ = p.MarkSuccessful("", testNow, testNow)
		_ = b.Confirm(testNow)
		return Settlement{Write: true, ConfirmedBooking: true}, nil
	})
	require.NoError(t, err)

	storedClass, err := s.Events().GetTicketClass(ctx, tc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, storedClass.QuantityAvailable)
}

func TestMemoryStore_SettleWithoutWriteDiscardsMutations(t *testing.T) {
	s, _, tc := seedStore(t, 5)
	ctx := context.Background()
	_, p := createPendingPayment(t, s, tc, 1)

	_, _, err := s.Payments().Settle(ctx, p.ID, func(p *domain.Payment, b *domain.Booking) (Settlement, error) {
		p.ResultDesc = "scratch"
		return Settlement{}, nil
	})
	require.NoError(t, err)

	got, err := s.Payments().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ResultDesc)
}

func TestMemoryStore_SettleCallbackError(t *testing.T) {
	s, _, tc := seedStore(t, 5)
	ctx := context.Background()
	_, p := createPendingPayment(t, s, tc, 1)
	boom := errors.New("boom")

	_, _, err := s.Payments().Settle(ctx, p.ID, func(*domain.Payment, *domain.Booking) (Settlement, error) {
		return Settlement{}, boom
	})
	assert.ErrorIs(t, err, boom)

	_, _, err = s.Payments().Settle(ctx, 404, func(*domain.Payment, *domain.Booking) (Settlement, error) {
		return Settlement{}, nil
	})
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestMemoryStore_SettleSerializesConcurrentCallers(t *testing.T) {
	s, _, tc := seedStore(t, 10)
	ctx := context.Background()
	_, p := createPendingPayment(t, s, tc, 2)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.Payments().Settle(ctx, p.ID, func(p *domain.Payment, b *domain.Booking) (Settlement, error) {
				if p.Status.IsTerminal() {
					return Settlement{}, nil
				}
				_ = p.MarkSuccessful("R1", testNow, testNow)
				_ = b.Confirm(testNow)
				mu.Lock()
				applied++
				mu.Unlock()
				return Settlement{Write: true, ConfirmedBooking: true}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	storedClass, err := s.Events().GetTicketClass(ctx, tc.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, storedClass.QuantityAvailable)
}
