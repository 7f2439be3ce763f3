package domain

import "errors"

// Booking and inventory errors
var (
	ErrInvalidQuantity       = errors.New("quantity is outside the allowed range")
	ErrInsufficientInventory = errors.New("not enough tickets available")
	ErrEventNotBookable      = errors.New("event is not open for booking")
	ErrEventNotFound         = errors.New("event not found")
	ErrTicketClassNotFound   = errors.New("ticket class not found")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrBookingNotPayable     = errors.New("booking can no longer be paid")
)

// Payment errors
var (
	ErrInvalidPhoneNumber      = errors.New("invalid phone number")
	ErrGatewayUnavailable      = errors.New("payment gateway unavailable")
	ErrGatewayRejected         = errors.New("payment gateway rejected the request")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrPaymentAlreadyExists    = errors.New("payment already exists for booking")
	ErrAlreadyFinalized        = errors.New("payment already finalized")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)
