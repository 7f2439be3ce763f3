package inventory

import (
	"context"
	"fmt"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
	"github.com/Jeffmuturi45/EVENTIFY/internal/repository"
)

// TicketClassReader is the slice of EventRepository the ledger needs
type TicketClassReader interface {
	GetTicketClass(ctx context.Context, id int64) (*domain.TicketClass, error)
}

// Ledger answers whether a ticket class can cover a reservation.
// It only reads; deduction happens when a booking is confirmed.
type Ledger struct {
	classes TicketClassReader
}

// NewLedger creates a Ledger over the event repository
func NewLedger(classes TicketClassReader) *Ledger {
	return &Ledger{classes: classes}
}

var _ TicketClassReader = (repository.EventRepository)(nil)

// CheckAndReserve reads the current ticket class and checks it against quantity.
// No lock is held once it returns, so two callers may both pass for the last tickets.
func (l *Ledger) CheckAndReserve(ctx context.Context, ticketClassID int64, quantity int) (*domain.TicketClass, error) {
	tc, err := l.classes.GetTicketClass(ctx, ticketClassID)
	if err != nil {
		return nil, err
	}
	if err := CheckAvailability(tc, quantity); err != nil {
		return nil, err
	}
	return tc, nil
}

// CheckAvailability returns domain.ErrInsufficientInventory when quantity exceeds what is left
func CheckAvailability(tc *domain.TicketClass, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if quantity > tc.QuantityAvailable {
		return fmt.Errorf("%w: requested %d, %d left in %s", domain.ErrInsufficientInventory,
			quantity, tc.QuantityAvailable, tc.Category)
	}
	return nil
}
