package repository

import (
	"context"
	"time"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
)

// EventRepository reads events and their ticket classes
type EventRepository interface {
	// GetEvent returns domain.ErrEventNotFound when the event does not exist
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
	// GetTicketClass returns domain.ErrTicketClassNotFound when the class does not exist
	GetTicketClass(ctx context.Context, id int64) (*domain.TicketClass, error)
	// ListTicketClasses returns the classes of an event ordered by price
	ListTicketClasses(ctx context.Context, eventID int64) ([]*domain.TicketClass, error)
}

// BookingRepository persists bookings
type BookingRepository interface {
	// Create inserts the booking and sets its ID
	Create(ctx context.Context, booking *domain.Booking) error
	// GetByID returns domain.ErrBookingNotFound when the booking does not exist
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	// ListByUser returns a user's bookings newest first, optionally filtered by status
	ListByUser(ctx context.Context, userID string, status *domain.BookingStatus) ([]*domain.Booking, error)
	// CompareAndSetStatus moves a booking from one status to another. It reports
	// false when the booking was no longer in the expected status.
	CompareAndSetStatus(ctx context.Context, id int64, from, to domain.BookingStatus, now time.Time) (bool, error)
	// ExpirePending marks up to limit pending bookings past their expiry as expired
	// and returns their IDs
	ExpirePending(ctx context.Context, now time.Time, limit int) ([]int64, error)
}

// Settlement tells Settle what the callback decided
type Settlement struct {
	// Write persists the payment and booking as mutated by the callback
	Write bool
	// Transition is recorded in the audit trail when the payment status changed
	Transition *domain.PaymentTransition
	// ConfirmedBooking deducts the booking quantity from inventory
	ConfirmedBooking bool
}

// SettleFunc mutates the locked payment and booking in place
type SettleFunc func(payment *domain.Payment, booking *domain.Booking) (Settlement, error)

// PaymentRepository persists payments and runs the settlement unit of work
type PaymentRepository interface {
	// Create inserts the payment and sets its ID. Returns domain.ErrPaymentAlreadyExists
	// when the booking already has a payment.
	Create(ctx context.Context, payment *domain.Payment) error
	// GetByID returns domain.ErrPaymentNotFound when the payment does not exist
	GetByID(ctx context.Context, id int64) (*domain.Payment, error)
	// GetByBookingID returns domain.ErrPaymentNotFound when the booking has no payment
	GetByBookingID(ctx context.Context, bookingID int64) (*domain.Payment, error)
	// GetByCheckoutRequestID looks a payment up by the gateway correlation id
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.Payment, error)
	// ListPendingWithCheckout returns pending payments with a correlation id created before olderThan
	ListPendingWithCheckout(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error)
	// ListStaleInitiations returns pending non-free payments without a correlation id
	// whose last attempt started before olderThan
	ListStaleInitiations(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error)
	// ListTransitions returns the audit trail of a payment, oldest first
	ListTransitions(ctx context.Context, paymentID int64) ([]*domain.PaymentTransition, error)
	// Settle locks the payment and its booking, runs fn and commits what it
	// decided as one unit of work. It returns the committed state.
	Settle(ctx context.Context, paymentID int64, fn SettleFunc) (*domain.Payment, *domain.Booking, error)
}
