package notification

import (
	"context"
	"fmt"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
)

// DeliveryResult reports whether a ticket reached its destination
type DeliveryResult struct {
	Delivered bool
	Detail    string
}

// Sink delivers the ticket of a confirmed booking. It is called after the
// booking was committed and its failure never undoes the confirmation.
type Sink interface {
	DeliverTicket(ctx context.Context, booking *domain.Booking, payment *domain.Payment) DeliveryResult
}

// SafeDeliver calls the sink and turns a panic into a failed result
func SafeDeliver(ctx context.Context, sink Sink, booking *domain.Booking, payment *domain.Payment) (res DeliveryResult) {
	if sink == nil {
		return DeliveryResult{Detail: "no notification sink configured"}
	}
	defer func() {
		if r := recover(); r != nil {
			res = DeliveryResult{Detail: fmt.Sprintf("notification sink panicked: %v", r)}
		}
	}()
	return sink.DeliverTicket(ctx, booking, payment)
}

// EventReader is the slice of the event repository a sink needs to describe a ticket
type EventReader interface {
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
}
