package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
	"github.com/Jeffmuturi45/EVENTIFY/internal/dto"
	"github.com/Jeffmuturi45/EVENTIFY/internal/gateway"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/middleware"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/response"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/telemetry"
)

// respondError maps domain errors onto the response envelope and tags the
// request span with the error code
func respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	resp := errorResponse(err)
	if resp.Error.Code == response.ErrCodeInternalError {
		logger.ErrorCtx(ctx, "request failed", zap.String("path", c.FullPath()), zap.Error(err))
		if traceID := telemetry.GetTraceID(ctx); traceID != "" {
			resp.Error.Details = map[string]string{"trace_id": traceID}
		}
	}
	telemetry.SetSpanAttributes(ctx, telemetry.ErrorTypeAttr(resp.Error.Code))
	c.JSON(response.GetHTTPStatus(resp.Error.Code), resp)
}

func errorResponse(err error) *response.Response {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		return response.Error(response.ErrCodeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrInsufficientInventory):
		return response.Error(response.ErrCodeInsufficientStock, err.Error())
	case errors.Is(err, domain.ErrEventNotBookable):
		return response.Error(response.ErrCodeEventNotBookable, err.Error())
	case errors.Is(err, domain.ErrInvalidPhoneNumber):
		return response.Error(response.ErrCodeInvalidPhone, "Phone number must be a Kenyan mobile number")
	case errors.Is(err, domain.ErrBookingNotPayable):
		return response.Error(response.ErrCodeBookingExpired, "Booking can no longer be paid")
	case errors.Is(err, domain.ErrEventNotFound):
		return response.NotFound("Event not found")
	case errors.Is(err, domain.ErrTicketClassNotFound):
		return response.NotFound("Ticket class not found")
	case errors.Is(err, domain.ErrBookingNotFound):
		return response.NotFound("Booking not found")
	case errors.Is(err, domain.ErrPaymentNotFound):
		return response.NotFound("Payment not found")
	case errors.Is(err, domain.ErrInvalidStatusTransition), errors.Is(err, domain.ErrAlreadyFinalized):
		return response.Error(response.ErrCodeConflict, err.Error())
	case errors.Is(err, domain.ErrGatewayRejected):
		return response.Error(response.ErrCodePaymentFailed, gateway.Reason(err))
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return response.ServiceUnavailable("Payment provider is unavailable, please retry: " + gateway.Reason(err))
	default:
		return response.InternalError("Internal server error")
	}
}

// respondBindError reports validation failures per field when it can
func respondBindError(c *gin.Context, err error) {
	if details, ok := dto.FieldErrors(err); ok {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(details))
		return
	}
	c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid "+name))
		return 0, false
	}
	return id, true
}

func currentUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User not authenticated"))
		return "", false
	}
	return userID, true
}
