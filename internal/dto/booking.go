package dto

import (
	"time"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
)

// CreateBookingRequest represents a request to reserve tickets.
// Quantity bounds are configurable and checked by the booking service.
type CreateBookingRequest struct {
	EventID       int64 `json:"event_id" binding:"required,gt=0"`
	TicketClassID int64 `json:"ticket_class_id" binding:"required,gt=0"`
	Quantity      int   `json:"quantity"`
}

// ListBookingsQuery filters a user's bookings
type ListBookingsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=pending confirmed cancelled expired"`
}

// StatusFilter returns the status to filter on, nil for all
func (q *ListBookingsQuery) StatusFilter() *domain.BookingStatus {
	if q.Status == "" {
		return nil
	}
	s := domain.BookingStatus(q.Status)
	return &s
}

// BookingResponse represents a booking
type BookingResponse struct {
	ID            int64                 `json:"id"`
	Reference     string                `json:"reference"`
	EventID       int64                 `json:"event_id"`
	TicketClassID int64                 `json:"ticket_class_id"`
	Category      domain.TicketCategory `json:"category"`
	Quantity      int                   `json:"quantity"`
	UnitPrice     string                `json:"unit_price"`
	TotalAmount   string                `json:"total_amount"`
	Status        domain.BookingStatus  `json:"status"`
	CanPay        bool                  `json:"can_pay"`
	ExpiresAt     time.Time             `json:"expires_at"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// FromBooking converts a domain Booking to BookingResponse
func FromBooking(b *domain.Booking, now time.Time) *BookingResponse {
	return &BookingResponse{
		ID:            b.ID,
		Reference:     b.Reference(),
		EventID:       b.EventID,
		TicketClassID: b.TicketClassID,
		Category:      b.Category,
		Quantity:      b.Quantity,
		UnitPrice:     b.UnitPrice.StringFixed(2),
		TotalAmount:   b.TotalAmount.StringFixed(2),
		Status:        b.Status,
		CanPay:        b.CanProceedToPayment(now),
		ExpiresAt:     b.ExpiresAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

// FromBookings converts a list of bookings
func FromBookings(bookings []*domain.Booking, now time.Time) []*BookingResponse {
	out := make([]*BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, FromBooking(b, now))
	}
	return out
}

// CreateBookingResponse is returned by booking creation. Free bookings come
// back confirmed together with their payment.
type CreateBookingResponse struct {
	Booking *BookingResponse `json:"booking"`
	Payment *PaymentResponse `json:"payment,omitempty"`
	Warning string           `json:"warning,omitempty"`
}
