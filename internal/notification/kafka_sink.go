package notification

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/kafka"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
)

// TopicTicketIssued carries one message per confirmed booking
const TopicTicketIssued = "ticket.issued"

// TicketIssuedEvent is published when a booking is confirmed. The mail
// service downstream attaches TicketPDF to the confirmation email.
type TicketIssuedEvent struct {
	EventType        string    `json:"event_type"`
	BookingID        int64     `json:"booking_id"`
	BookingReference string    `json:"booking_reference"`
	PaymentID        int64     `json:"payment_id"`
	UserID           string    `json:"user_id"`
	EventID          int64     `json:"event_id"`
	EventTitle       string    `json:"event_title,omitempty"`
	Venue            string    `json:"venue,omitempty"`
	StartDate        time.Time `json:"start_date,omitempty"`
	Category         string    `json:"category"`
	Quantity         int       `json:"quantity"`
	TotalAmount      string    `json:"total_amount"`
	ReceiptNumber    string    `json:"receipt_number"`
	TicketPDF        []byte    `json:"ticket_pdf,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *TicketIssuedEvent) Key() string {
	return strconv.FormatInt(e.BookingID, 10)
}

// KafkaSink renders the ticket and publishes it for the mail service
type KafkaSink struct {
	publisher kafka.Publisher
	topic     string
	events    EventReader
	renderer  *TicketRenderer
	now       func() time.Time
	log       *logger.Logger
}

// NewKafkaSink creates a KafkaSink; an empty topic uses TopicTicketIssued
func NewKafkaSink(publisher kafka.Publisher, topic string, events EventReader, renderer *TicketRenderer) *KafkaSink {
	if topic == "" {
		topic = TopicTicketIssued
	}
	if renderer == nil {
		renderer = NewTicketRenderer(nil)
	}
	return &KafkaSink{
		publisher: publisher,
		topic:     topic,
		events:    events,
		renderer:  renderer,
		now:       time.Now,
		log:       logger.Get().Component("ticket_sink"),
	}
}

// DeliverTicket publishes a TicketIssuedEvent. A missing event or a render
// failure still publishes, without the PDF.
func (s *KafkaSink) DeliverTicket(ctx context.Context, b *domain.Booking, p *domain.Payment) DeliveryResult {
	log := s.log.WithContext(ctx).WithFields(zap.Int64("booking_id", b.ID))

	var event *domain.Event
	if s.events != nil {
		e, err := s.events.GetEvent(ctx, b.EventID)
		if err != nil {
			log.Warn("failed to load event for ticket", zap.Error(err))
		} else {
			event = e
		}
	}

	ticket := NewTicket(event, b, p)
	msg := &TicketIssuedEvent{
		EventType:        TopicTicketIssued,
		BookingID:        b.ID,
		BookingReference: ticket.BookingReference,
		UserID:           b.UserID,
		EventID:          b.EventID,
		EventTitle:       ticket.EventTitle,
		Venue:            ticket.Venue,
		StartDate:        ticket.StartDate,
		Category:         string(b.Category),
		Quantity:         b.Quantity,
		TotalAmount:      b.TotalAmount.StringFixed(2),
		ReceiptNumber:    ticket.ReceiptNumber,
		Timestamp:        s.now().UTC(),
	}
	if p != nil {
		msg.PaymentID = p.ID
	}

	pdf, err := s.renderer.Render(ticket)
	if err != nil {
		log.Warn("failed to render ticket", zap.Error(err))
	} else {
		msg.TicketPDF = pdf
	}

	headers := map[string]string{"event_type": TopicTicketIssued}
	if err := s.publisher.PublishJSON(ctx, s.topic, msg, headers); err != nil {
		log.Error("failed to publish ticket", zap.Error(err))
		return DeliveryResult{Detail: "ticket publication failed: " + err.Error()}
	}

	log.Info("ticket published", zap.String("topic", s.topic), zap.Int("pdf_bytes", len(msg.TicketPDF)))
	return DeliveryResult{Delivered: true, Detail: "published to " + s.topic}
}

var _ kafka.Message = (*TicketIssuedEvent)(nil)
