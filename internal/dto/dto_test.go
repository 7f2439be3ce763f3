package dto

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
)

func TestPhoneValidation(t *testing.T) {
	require.NoError(t, RegisterValidators())
	require.NoError(t, RegisterValidators())

	tests := []struct {
		phone string
		valid bool
	}{
		{"", true},
		{"0712345678", true},
		{"+254 712-345-678", true},
		{"712345678", true},
		{"12345", false},
		{"0812345678x9", false},
	}
	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&InitiatePaymentRequest{PhoneNumber: tt.phone})
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			details, ok := FieldErrors(err)
			require.True(t, ok)
			assert.Equal(t, TagPhone, details["PhoneNumber"])
		})
	}
}

func TestListBookingsQuery_StatusFilter(t *testing.T) {
	assert.Nil(t, (&ListBookingsQuery{}).StatusFilter())

	f := (&ListBookingsQuery{Status: "confirmed"}).StatusFilter()
	require.NotNil(t, f)
	assert.Equal(t, domain.BookingStatusConfirmed, *f)
}

func TestFromBooking(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := &domain.Booking{
		ID:          42,
		Quantity:    2,
		UnitPrice:   decimal.NewFromInt(500),
		TotalAmount: decimal.NewFromInt(1000),
		Status:      domain.BookingStatusPending,
		ExpiresAt:   now.Add(time.Minute),
	}

	resp := FromBooking(b, now)
	assert.Equal(t, "EVENT000042", resp.Reference)
	assert.Equal(t, "1000.00", resp.TotalAmount)
	assert.True(t, resp.CanPay)

	resp = FromBooking(b, now.Add(2*time.Minute))
	assert.False(t, resp.CanPay)
}

func TestFromPayment(t *testing.T) {
	assert.Nil(t, FromPayment(nil))

	p := &domain.Payment{ID: 1, BookingID: 42, Amount: decimal.Zero, PhoneNumber: domain.FreePhoneNumber, Status: domain.PaymentStatusSuccessful, ReceiptNumber: "FREE000042"}
	resp := FromPayment(p)
	assert.Equal(t, "0.00", resp.Amount)
	assert.Equal(t, "FREE000042", resp.ReceiptNumber)
}
