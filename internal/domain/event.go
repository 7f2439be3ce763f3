package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a ticketed event. Events are managed outside this service and read here.
type Event struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Venue          string     `json:"venue"`
	Address        string     `json:"address,omitempty"`
	City           string     `json:"city,omitempty"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        time.Time  `json:"end_date"`
	TotalCapacity  int        `json:"total_capacity"`
	TicketsSold    int        `json:"tickets_sold"`
	IsActive       bool       `json:"is_active"`
	IsFeatured     bool       `json:"is_featured"`
	IsComingSoon   bool       `json:"is_coming_soon"`
	BookingOpensAt *time.Time `json:"booking_opens_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Event display statuses
const (
	EventStatusComingSoon = "coming_soon"
	EventStatusSoldOut    = "sold_out"
	EventStatusPast       = "past"
	EventStatusOngoing    = "ongoing"
	EventStatusAvailable  = "available"
)

// Available returns the number of unsold tickets across all classes
func (e *Event) Available() int {
	return e.TotalCapacity - e.TicketsSold
}

func (e *Event) IsSoldOut() bool {
	return e.TicketsSold >= e.TotalCapacity
}

func (e *Event) IsUpcoming(now time.Time) bool {
	return e.StartDate.After(now)
}

func (e *Event) IsPast(now time.Time) bool {
	return e.EndDate.Before(now)
}

// CanBook reports whether new reservations are accepted at now.
// A coming-soon event opens once its booking-open time has passed.
func (e *Event) CanBook(now time.Time) bool {
	if !e.IsActive || e.IsSoldOut() || !e.IsUpcoming(now) {
		return false
	}
	if e.IsComingSoon {
		return e.BookingOpensAt != nil && !now.Before(*e.BookingOpensAt)
	}
	if e.BookingOpensAt != nil && now.Before(*e.BookingOpensAt) {
		return false
	}
	return true
}

// DisplayStatus returns the status shown on event cards
func (e *Event) DisplayStatus(now time.Time) string {
	switch {
	case e.IsComingSoon:
		return EventStatusComingSoon
	case e.IsSoldOut():
		return EventStatusSoldOut
	case e.IsPast(now):
		return EventStatusPast
	case !e.StartDate.After(now) && !e.EndDate.Before(now):
		return EventStatusOngoing
	default:
		return EventStatusAvailable
	}
}

// TicketCategory is the tier of a ticket class
type TicketCategory string

const (
	TicketCategoryFree    TicketCategory = "free"
	TicketCategoryRegular TicketCategory = "regular"
	TicketCategoryVIP     TicketCategory = "vip"
	TicketCategoryVVIP    TicketCategory = "vvip"
)

func (c TicketCategory) IsValid() bool {
	switch c {
	case TicketCategoryFree, TicketCategoryRegular, TicketCategoryVIP, TicketCategoryVVIP:
		return true
	}
	return false
}

// TicketClass is a priced tier of an event; at most one per (event, category)
type TicketClass struct {
	ID                int64           `json:"id"`
	EventID           int64           `json:"event_id"`
	Category          TicketCategory  `json:"category"`
	Price             decimal.Decimal `json:"price"`
	QuantityAvailable int             `json:"quantity_available"`
	Description       string          `json:"description,omitempty"`
}

func (tc *TicketClass) IsAvailable() bool {
	return tc.QuantityAvailable > 0
}
