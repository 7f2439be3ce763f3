package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
)

// LogSink records deliveries in the log. Used when Kafka is disabled.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.Get()
	}
	return &LogSink{log: log.Component("ticket_sink")}
}

func (s *LogSink) DeliverTicket(ctx context.Context, b *domain.Booking, p *domain.Payment) DeliveryResult {
	fields := []zap.Field{
		zap.Int64("booking_id", b.ID),
		zap.String("reference", b.Reference()),
		zap.String("user_id", b.UserID),
		zap.Int("quantity", b.Quantity),
	}
	if p != nil {
		fields = append(fields, zap.String("receipt", p.ReceiptNumber))
	}
	s.log.WithContext(ctx).Info("ticket issued", fields...)
	return DeliveryResult{Delivered: true, Detail: "logged"}
}
