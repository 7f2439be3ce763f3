package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
)

// PaymentGateway defines the interface for push-payment processing
type PaymentGateway interface {
	// InitiatePayment asks the provider to prompt the customer's phone
	InitiatePayment(ctx context.Context, req *InitiateRequest) (*InitiateResponse, error)

	// QueryStatus asks the provider for the result of an initiated payment
	QueryStatus(ctx context.Context, checkoutRequestID string) (*StatusResult, error)

	// Name returns the gateway name
	Name() string
}

// InitiateRequest represents a push-payment request
type InitiateRequest struct {
	Phone            string
	Amount           decimal.Decimal
	AccountReference string
	TransactionDesc  string
}

// InitiateResponse represents an accepted push-payment request
type InitiateResponse struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseDescription string
	CustomerMessage     string
}

// StatusResult is the provider's view of an initiated payment.
// Status is pending, successful or failed.
type StatusResult struct {
	Status     domain.PaymentStatus
	ResultCode *int
	ResultDesc string
	Raw        json.RawMessage
}

// GatewayError carries the provider's reason next to the domain error it wraps,
// either domain.ErrGatewayUnavailable or domain.ErrGatewayRejected
type GatewayError struct {
	Err        error
	Reason     string
	StatusCode int
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%v: %s (status %d)", e.Err, e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Reason)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func unavailable(reason string, statusCode int) error {
	return &GatewayError{Err: domain.ErrGatewayUnavailable, Reason: reason, StatusCode: statusCode}
}

func rejected(reason string, statusCode int) error {
	return &GatewayError{Err: domain.ErrGatewayRejected, Reason: reason, StatusCode: statusCode}
}

// Reason returns the provider message of a gateway error, or the error text
func Reason(err error) string {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.Reason != "" {
		return gwErr.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
