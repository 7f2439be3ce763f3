package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Jeffmuturi45/EVENTIFY/internal/dto"
	"github.com/Jeffmuturi45/EVENTIFY/internal/service"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/response"
)

// PaymentHandler handles payment HTTP requests
type PaymentHandler struct {
	paymentService service.PaymentService
	now            func() time.Time
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, now: time.Now}
}

// Initiate handles starting, retrying or completing for free the payment of a booking
// POST /api/v1/bookings/:id/payment
func (h *PaymentHandler) Initiate(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	bookingID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req dto.InitiatePaymentRequest
	// free bookings may be paid with an empty body
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}

	result, err := h.paymentService.InitiatePayment(c.Request.Context(), userID, bookingID, req.PhoneNumber)
	if err != nil {
		respondError(c, err)
		return
	}

	var booking *dto.BookingResponse
	if result.Booking != nil {
		booking = dto.FromBooking(result.Booking, h.now())
	}
	c.JSON(http.StatusOK, response.Success(&dto.InitiatePaymentResponse{
		Payment:         dto.FromPayment(result.Payment),
		Booking:         booking,
		CustomerMessage: result.CustomerMessage,
		Warning:         result.Warning,
	}))
}

// Get handles viewing a payment. A pending payment is refreshed from the provider first.
// GET /api/v1/payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	payment, err := h.paymentService.PollStatus(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.FromPayment(payment)))
}

// Recheck handles a manual status re-check
// POST /api/v1/payments/:id/recheck
func (h *PaymentHandler) Recheck(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.paymentService.Recheck(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(&dto.RecheckResponse{
		Payment:    dto.FromPayment(result.Payment),
		Successful: result.Successful,
	}))
}

// Transitions handles retrieving a payment's audit trail
// GET /api/v1/payments/:id/transitions
func (h *PaymentHandler) Transitions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	transitions, err := h.paymentService.ListTransitions(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.List(dto.FromTransitions(transitions), len(transitions), ""))
}
