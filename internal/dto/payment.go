package dto

import (
	"time"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
)

// InitiatePaymentRequest starts or retries the payment of a booking.
// The phone number is not needed for free bookings.
type InitiatePaymentRequest struct {
	PhoneNumber string `json:"phone_number" binding:"omitempty,kephone"`
}

// PaymentResponse represents a payment
type PaymentResponse struct {
	ID                int64                `json:"id"`
	BookingID         int64                `json:"booking_id"`
	PhoneNumber       string               `json:"phone_number"`
	Amount            string               `json:"amount"`
	Status            domain.PaymentStatus `json:"status"`
	CheckoutRequestID string               `json:"checkout_request_id,omitempty"`
	ReceiptNumber     string               `json:"receipt_number,omitempty"`
	TransactionDate   *time.Time           `json:"transaction_date,omitempty"`
	ResultCode        *int                 `json:"result_code,omitempty"`
	ResultDesc        string               `json:"result_desc,omitempty"`
	Orphaned          bool                 `json:"orphaned,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// FromPayment converts a domain Payment to PaymentResponse
func FromPayment(p *domain.Payment) *PaymentResponse {
	if p == nil {
		return nil
	}
	return &PaymentResponse{
		ID:                p.ID,
		BookingID:         p.BookingID,
		PhoneNumber:       p.PhoneNumber,
		Amount:            p.Amount.StringFixed(2),
		Status:            p.Status,
		CheckoutRequestID: p.CheckoutRequestID,
		ReceiptNumber:     p.ReceiptNumber,
		TransactionDate:   p.TransactionDate,
		ResultCode:        p.ResultCode,
		ResultDesc:        p.ResultDesc,
		Orphaned:          p.Orphaned,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// InitiatePaymentResponse is returned when a payment was started, retried or completed for free
type InitiatePaymentResponse struct {
	Payment         *PaymentResponse `json:"payment"`
	Booking         *BookingResponse `json:"booking,omitempty"`
	CustomerMessage string           `json:"customer_message,omitempty"`
	Warning         string           `json:"warning,omitempty"`
}

// RecheckResponse is returned by a manual status re-check
type RecheckResponse struct {
	Payment    *PaymentResponse `json:"payment"`
	Successful bool             `json:"successful"`
}

// TransitionResponse is one entry of a payment's audit trail
type TransitionResponse struct {
	ID         string               `json:"id"`
	FromStatus domain.PaymentStatus `json:"from_status"`
	ToStatus   domain.PaymentStatus `json:"to_status"`
	Source     domain.PaymentSource `json:"source"`
	Reason     string               `json:"reason,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// FromTransitions converts an audit trail
func FromTransitions(ts []*domain.PaymentTransition) []*TransitionResponse {
	out := make([]*TransitionResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, &TransitionResponse{
			ID:         t.ID,
			FromStatus: t.FromStatus,
			ToStatus:   t.ToStatus,
			Source:     t.Source,
			Reason:     t.Reason,
			CreatedAt:  t.CreatedAt,
		})
	}
	return out
}

// CallbackAck is the webhook acknowledgement expected by the provider
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// Webhook acknowledgements
var (
	CallbackAccepted = CallbackAck{ResultCode: 0, ResultDesc: "Success"}
	CallbackRejected = CallbackAck{ResultCode: 1, ResultDesc: "Failed"}
)
