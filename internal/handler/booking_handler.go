package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Jeffmuturi45/EVENTIFY/internal/dto"
	"github.com/Jeffmuturi45/EVENTIFY/internal/service"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/response"
)

// BookingHandler handles booking HTTP requests
type BookingHandler struct {
	bookingService service.BookingService
	now            func() time.Time
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService, now: time.Now}
}

// Create handles ticket reservation
// POST /api/v1/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.bookingService.CreateBooking(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(&dto.CreateBookingResponse{
		Booking: dto.FromBooking(result.Booking, h.now()),
		Payment: dto.FromPayment(result.Payment),
		Warning: result.Warning,
	}))
}

// List handles listing the caller's bookings
// GET /api/v1/bookings
func (h *BookingHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var query dto.ListBookingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	bookings, err := h.bookingService.ListBookings(c.Request.Context(), userID, query.StatusFilter())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.List(dto.FromBookings(bookings, h.now()), len(bookings), query.Status))
}

// Get handles retrieving a booking
// GET /api/v1/bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookingService.GetBooking(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.FromBooking(booking, h.now())))
}

// Cancel handles cancelling a pending booking
// POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookingService.CancelBooking(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.FromBooking(booking, h.now())))
}
