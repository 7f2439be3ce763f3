package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/internal/dto"
	"github.com/Jeffmuturi45/EVENTIFY/internal/gateway"
	"github.com/Jeffmuturi45/EVENTIFY/internal/service"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
)

// CallbackTokenHeader carries the shared callback secret when the query parameter is not used
const CallbackTokenHeader = "X-Callback-Token"

const maxCallbackBody = 64 << 10

// CallbackHandler receives payment provider webhooks.
// It always answers 200 with the provider's acknowledgement shape.
type CallbackHandler struct {
	paymentService service.PaymentService
	secret         string
	log            *logger.Logger
}

// NewCallbackHandler creates a new CallbackHandler. An empty secret accepts every callback.
func NewCallbackHandler(paymentService service.PaymentService, secret string) *CallbackHandler {
	return &CallbackHandler{
		paymentService: paymentService,
		secret:         secret,
		log:            logger.Get().Component("callback_handler"),
	}
}

// MPesa handles the STK push result webhook
// POST /api/v1/payments/mpesa/callback
func (h *CallbackHandler) MPesa(c *gin.Context) {
	ctx := c.Request.Context()

	token := c.Query("token")
	if token == "" {
		token = c.GetHeader(CallbackTokenHeader)
	}
	if !gateway.VerifyCallbackToken(h.secret, token) {
		h.log.WithContext(ctx).Warn("unauthenticated payment callback", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusOK, dto.CallbackRejected)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		h.log.WithContext(ctx).Warn("failed to read payment callback", zap.Error(err))
		c.JSON(http.StatusOK, dto.CallbackRejected)
		return
	}

	if err := h.paymentService.HandleCallback(ctx, raw); err != nil {
		if errors.Is(err, gateway.ErrMalformedCallback) {
			c.JSON(http.StatusOK, dto.CallbackRejected)
			return
		}
		// the provider retries on its own schedule; keep answering in its format
		h.log.WithContext(ctx).Error("failed to apply payment callback", zap.Error(err))
	}

	c.JSON(http.StatusOK, dto.CallbackAccepted)
}
