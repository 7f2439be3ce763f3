package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusExpired   BookingStatus = "expired"
)

var validBookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled, BookingStatusExpired},
	BookingStatusConfirmed: {},
	BookingStatusCancelled: {},
	BookingStatusExpired:   {},
}

func (s BookingStatus) IsValid() bool {
	_, ok := validBookingTransitions[s]
	return ok
}

func (s BookingStatus) IsTerminal() bool {
	return s.IsValid() && s != BookingStatusPending
}

func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, allowed := range validBookingTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Booking is a user's reservation of tickets in one ticket class
type Booking struct {
	ID            int64           `json:"id"`
	UserID        string          `json:"user_id"`
	EventID       int64           `json:"event_id"`
	TicketClassID int64           `json:"ticket_class_id"`
	Category      TicketCategory  `json:"category"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        BookingStatus   `json:"status"`
	ExpiresAt     time.Time       `json:"expires_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewBooking creates a pending booking priced from the ticket class snapshot.
// expires_at is fixed here and never recomputed.
func NewBooking(userID string, tc *TicketClass, quantity int, now time.Time, window time.Duration) *Booking {
	b := &Booking{
		UserID:        userID,
		EventID:       tc.EventID,
		TicketClassID: tc.ID,
		Category:      tc.Category,
		Quantity:      quantity,
		UnitPrice:     tc.Price,
		Status:        BookingStatusPending,
		ExpiresAt:     now.Add(window),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.Recalculate()
	return b
}

// Recalculate sets TotalAmount = UnitPrice × Quantity. Call before every persist.
func (b *Booking) Recalculate() {
	b.TotalAmount = b.UnitPrice.Mul(decimal.NewFromInt(int64(b.Quantity)))
}

func (b *Booking) IsFree() bool {
	return b.TotalAmount.IsZero()
}

func (b *Booking) IsExpired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

// CanProceedToPayment is true while the booking is pending and now <= expires_at
func (b *Booking) CanProceedToPayment(now time.Time) bool {
	return b.Status == BookingStatusPending && !b.IsExpired(now)
}

// Reference is the account reference sent to the payment provider
func (b *Booking) Reference() string {
	return fmt.Sprintf("EVENT%06d", b.ID)
}

// FreeReceipt is the receipt number recorded for zero-amount bookings
func (b *Booking) FreeReceipt() string {
	return fmt.Sprintf("FREE%06d", b.ID)
}

// Confirm moves a pending booking to confirmed
func (b *Booking) Confirm(now time.Time) error {
	return b.transitionTo(BookingStatusConfirmed, now)
}

// Cancel moves a pending booking to cancelled
func (b *Booking) Cancel(now time.Time) error {
	return b.transitionTo(BookingStatusCancelled, now)
}

// Expire moves a pending booking to expired
func (b *Booking) Expire(now time.Time) error {
	return b.transitionTo(BookingStatusExpired, now)
}

func (b *Booking) transitionTo(target BookingStatus, now time.Time) error {
	if !b.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: booking %d %s -> %s", ErrInvalidStatusTransition, b.ID, b.Status, target)
	}
	b.Status = target
	b.UpdatedAt = now
	return nil
}
