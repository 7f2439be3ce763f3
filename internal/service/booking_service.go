package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
	"github.com/Jeffmuturi45/EVENTIFY/internal/dto"
	"github.com/Jeffmuturi45/EVENTIFY/internal/inventory"
	"github.com/Jeffmuturi45/EVENTIFY/internal/repository"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/telemetry"
)

// BookingResult is returned by CreateBooking. Payment is set for free bookings.
type BookingResult struct {
	Booking *domain.Booking
	Payment *domain.Payment
	Warning string
}

// BookingService defines the interface for booking operations
type BookingService interface {
	// CreateBooking reserves tickets and, for zero-amount bookings, confirms them immediately
	CreateBooking(ctx context.Context, userID string, req *dto.CreateBookingRequest) (*BookingResult, error)
	// GetBooking retrieves a booking owned by the user
	GetBooking(ctx context.Context, userID string, bookingID int64) (*domain.Booking, error)
	// ListBookings lists the user's bookings, optionally filtered by status
	ListBookings(ctx context.Context, userID string, status *domain.BookingStatus) ([]*domain.Booking, error)
	// CancelBooking cancels a pending booking
	CancelBooking(ctx context.Context, userID string, bookingID int64) (*domain.Booking, error)
	// CanProceedToPayment reports whether the booking may still be paid
	CanProceedToPayment(booking *domain.Booking) bool
}

// FreeBookingCompleter confirms zero-amount bookings. PaymentService implements it.
type FreeBookingCompleter interface {
	CompleteFreeBooking(ctx context.Context, booking *domain.Booking) (*PaymentResult, error)
}

// BookingServiceConfig holds reservation rules
type BookingServiceConfig struct {
	ReservationWindow time.Duration
	MinQuantity       int
	MaxQuantity       int
	Clock             func() time.Time
}

// DefaultBookingServiceConfig returns a 30 minute window and 1..10 tickets per booking
func DefaultBookingServiceConfig() *BookingServiceConfig {
	return &BookingServiceConfig{
		ReservationWindow: 30 * time.Minute,
		MinQuantity:       1,
		MaxQuantity:       10,
	}
}

type bookingService struct {
	events   repository.EventRepository
	bookings repository.BookingRepository
	ledger   *inventory.Ledger
	free     FreeBookingCompleter
	config   *BookingServiceConfig
	now      func() time.Time
	metrics  *ticketingMetrics
	log      *logger.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	events repository.EventRepository,
	bookings repository.BookingRepository,
	ledger *inventory.Ledger,
	free FreeBookingCompleter,
	cfg *BookingServiceConfig,
) BookingService {
	if cfg == nil {
		cfg = DefaultBookingServiceConfig()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &bookingService{
		events:   events,
		bookings: bookings,
		ledger:   ledger,
		free:     free,
		config:   cfg,
		now:      now,
		metrics:  getMetrics(),
		log:      logger.Get().Component("booking_service"),
	}
}

// CreateBooking creates a pending booking priced from the current ticket class
func (s *bookingService) CreateBooking(ctx context.Context, userID string, req *dto.CreateBookingRequest) (*BookingResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.create")
	defer span.End()
	span.SetAttributes(
		attribute.Int64(telemetry.AttrEventID, req.EventID),
		attribute.Int("booking.quantity", req.Quantity),
	)

	now := s.now()

	event, err := s.events.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !event.CanBook(now) {
		return nil, fmt.Errorf("%w: %s", domain.ErrEventNotBookable, event.DisplayStatus(now))
	}

	if req.Quantity < s.config.MinQuantity || req.Quantity > s.config.MaxQuantity {
		return nil, fmt.Errorf("%w: must be between %d and %d", domain.ErrInvalidQuantity,
			s.config.MinQuantity, s.config.MaxQuantity)
	}

	tc, err := s.ledger.CheckAndReserve(ctx, req.TicketClassID, req.Quantity)
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}
	if tc.EventID != event.ID {
		return nil, domain.ErrTicketClassNotFound
	}

	booking := domain.NewBooking(userID, tc, req.Quantity, now, s.config.ReservationWindow)
	if err := s.bookings.Create(ctx, booking); err != nil {
		telemetry.SetSpanError(ctx, err)
		return nil, err
	}

	s.metrics.bookingsCreated.Inc(ctx, telemetry.EventIDAttr(event.ID))
	s.log.WithContext(ctx).Info("booking created",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("event_id", event.ID),
		zap.String("category", string(tc.Category)),
		zap.Int("quantity", booking.Quantity),
		zap.String("total", booking.TotalAmount.StringFixed(2)),
	)

	result := &BookingResult{Booking: booking}
	if !booking.IsFree() || s.free == nil {
		return result, nil
	}

	paid, err := s.free.CompleteFreeBooking(ctx, booking)
	if err != nil {
		// the booking stays pending and can be completed through the payment endpoint
		s.log.WithContext(ctx).Error("free booking completion failed",
			zap.Int64("booking_id", booking.ID), zap.Error(err))
		result.Warning = "booking created but confirmation is still in progress"
		return result, nil
	}
	result.Booking = paid.Booking
	result.Payment = paid.Payment
	result.Warning = paid.Warning
	return result, nil
}

func (s *bookingService) GetBooking(ctx context.Context, userID string, bookingID int64) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, domain.ErrBookingNotFound
	}
	return booking, nil
}

func (s *bookingService) ListBookings(ctx context.Context, userID string, status *domain.BookingStatus) ([]*domain.Booking, error) {
	return s.bookings.ListByUser(ctx, userID, status)
}

// CancelBooking moves a pending booking to cancelled. A successful payment
// arriving later is recorded as orphaned.
func (s *bookingService) CancelBooking(ctx context.Context, userID string, bookingID int64) (*domain.Booking, error) {
	booking, err := s.GetBooking(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != domain.BookingStatusPending {
		return nil, fmt.Errorf("%w: booking %s is %s", domain.ErrInvalidStatusTransition, booking.Reference(), booking.Status)
	}

	ok, err := s.bookings.CompareAndSetStatus(ctx, bookingID, domain.BookingStatusPending, domain.BookingStatusCancelled, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: booking %s changed concurrently", domain.ErrInvalidStatusTransition, booking.Reference())
	}

	s.log.WithContext(ctx).Info("booking cancelled", zap.Int64("booking_id", bookingID))
	return s.bookings.GetByID(ctx, bookingID)
}

func (s *bookingService) CanProceedToPayment(booking *domain.Booking) bool {
	return booking.CanProceedToPayment(s.now())
}
