package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FreePhoneNumber marks the payment of a zero-amount booking
const FreePhoneNumber = "FREE"

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// failed -> pending is only taken by an explicit user retry
var validPaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusSuccessful, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusFailed:     {PaymentStatusPending},
	PaymentStatusSuccessful: {},
	PaymentStatusCancelled:  {},
}

func (s PaymentStatus) IsValid() bool {
	_, ok := validPaymentTransitions[s]
	return ok
}

// IsTerminal reports whether reconciliation may no longer change the payment
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccessful || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, allowed := range validPaymentTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// PaymentSource identifies which path produced a payment update
type PaymentSource string

const (
	SourceInitiation PaymentSource = "initiation"
	SourcePoll       PaymentSource = "poll"
	SourceWebhook    PaymentSource = "webhook"
	SourceRecheck    PaymentSource = "recheck"
	SourceFreeTicket PaymentSource = "free_ticket"
	SourceRetry      PaymentSource = "retry"
	SourceSweep      PaymentSource = "sweep"
)

// Payment is the single payment attempt record of a booking
type Payment struct {
	ID                int64           `json:"id"`
	BookingID         int64           `json:"booking_id"`
	UserID            string          `json:"user_id"`
	PhoneNumber       string          `json:"phone_number"`
	Amount            decimal.Decimal `json:"amount"`
	Status            PaymentStatus   `json:"status"`
	MerchantRequestID string          `json:"merchant_request_id,omitempty"`
	CheckoutRequestID string          `json:"checkout_request_id,omitempty"`
	ReceiptNumber     string          `json:"receipt_number,omitempty"`
	TransactionDate   *time.Time      `json:"transaction_date,omitempty"`
	CallbackReceived  bool            `json:"callback_received"`
	ResultCode        *int            `json:"result_code,omitempty"`
	ResultDesc        string          `json:"result_desc,omitempty"`
	CallbackData      json.RawMessage `json:"-"`
	Orphaned          bool            `json:"orphaned"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewPayment creates a pending payment for the booking's current total
func NewPayment(b *Booking, phone string, now time.Time) *Payment {
	return &Payment{
		BookingID:   b.ID,
		UserID:      b.UserID,
		PhoneNumber: phone,
		Amount:      b.TotalAmount,
		Status:      PaymentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (p *Payment) IsFree() bool {
	return p.PhoneNumber == FreePhoneNumber
}

func (p *Payment) IsSuccessful() bool {
	return p.Status == PaymentStatusSuccessful
}

// AwaitsCheckout reports a pending payment the gateway has not acknowledged yet
func (p *Payment) AwaitsCheckout() bool {
	return p.Status == PaymentStatusPending && p.CheckoutRequestID == "" && !p.IsFree()
}

// IsStaleInitiation reports a push that got no checkout id within grace of its
// last attempt. No webhook or status query can ever resolve it.
func (p *Payment) IsStaleInitiation(now time.Time, grace time.Duration) bool {
	return p.AwaitsCheckout() && now.Sub(p.UpdatedAt) > grace
}

// FallbackReceipt is used when a successful result carries no receipt number
func (p *Payment) FallbackReceipt() string {
	return fmt.Sprintf("MPE%08d", p.ID)
}

// MarkSuccessful finalizes the payment. An empty receipt falls back to FallbackReceipt.
func (p *Payment) MarkSuccessful(receipt string, txTime time.Time, now time.Time) error {
	if err := p.transitionTo(PaymentStatusSuccessful, now); err != nil {
		return err
	}
	if receipt == "" {
		receipt = p.FallbackReceipt()
	}
	p.ReceiptNumber = receipt
	p.TransactionDate = &txTime
	return nil
}

// MarkFailed finalizes the payment as failed, keeping the provider's result
func (p *Payment) MarkFailed(resultCode *int, resultDesc string, now time.Time) error {
	if err := p.transitionTo(PaymentStatusFailed, now); err != nil {
		return err
	}
	p.ResultCode = resultCode
	p.ResultDesc = resultDesc
	return nil
}

// RecordCallback stores the raw webhook body and result for audit
func (p *Payment) RecordCallback(raw json.RawMessage, resultCode *int, resultDesc string) {
	p.CallbackReceived = true
	p.CallbackData = raw
	if resultCode != nil {
		p.ResultCode = resultCode
	}
	if resultDesc != "" {
		p.ResultDesc = resultDesc
	}
}

// AttachCheckout stores the gateway correlation ids of an accepted initiation
func (p *Payment) AttachCheckout(merchantRequestID, checkoutRequestID string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return fmt.Errorf("%w: payment %d is %s", ErrAlreadyFinalized, p.ID, p.Status)
	}
	p.MerchantRequestID = merchantRequestID
	p.CheckoutRequestID = checkoutRequestID
	p.UpdatedAt = now
	return nil
}

// ResetForRetry returns a failed payment to pending and clears every field a
// previous attempt wrote
func (p *Payment) ResetForRetry(phone string, amount decimal.Decimal, now time.Time) error {
	if err := p.transitionTo(PaymentStatusPending, now); err != nil {
		return err
	}
	p.PhoneNumber = phone
	p.Amount = amount
	p.MerchantRequestID = ""
	p.CheckoutRequestID = ""
	p.ReceiptNumber = ""
	p.TransactionDate = nil
	p.CallbackReceived = false
	p.ResultCode = nil
	p.ResultDesc = ""
	p.CallbackData = nil
	p.Orphaned = false
	return nil
}

func (p *Payment) transitionTo(target PaymentStatus, now time.Time) error {
	if !p.Status.CanTransitionTo(target) {
		if p.Status.IsTerminal() && target != PaymentStatusPending {
			return fmt.Errorf("%w: payment %d is %s", ErrAlreadyFinalized, p.ID, p.Status)
		}
		return fmt.Errorf("%w: payment %d %s -> %s", ErrInvalidStatusTransition, p.ID, p.Status, target)
	}
	p.Status = target
	p.UpdatedAt = now
	return nil
}

// PaymentTransition is one committed payment status change
type PaymentTransition struct {
	ID         string        `json:"id"`
	PaymentID  int64         `json:"payment_id"`
	FromStatus PaymentStatus `json:"from_status"`
	ToStatus   PaymentStatus `json:"to_status"`
	Source     PaymentSource `json:"source"`
	Reason     string        `json:"reason,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
